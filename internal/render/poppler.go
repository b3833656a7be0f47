package render

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultDPI          = 150
	DefaultMaxDimension = 2048
)

type Config struct {
	PdftoppmBin  string
	PdfinfoBin   string
	DPI          int
	MaxDimension int // long side in pixels
}

func (c Config) withDefaults() Config {
	if c.PdftoppmBin == "" {
		c.PdftoppmBin = "pdftoppm"
	}
	if c.PdfinfoBin == "" {
		c.PdfinfoBin = "pdfinfo"
	}
	if c.DPI <= 0 {
		c.DPI = DefaultDPI
	}
	if c.MaxDimension <= 0 {
		c.MaxDimension = DefaultMaxDimension
	}
	return c
}

// Poppler renders through the pdfinfo and pdftoppm command line tools.
type Poppler struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

type PopplerOption func(*Poppler)

func WithRunner(r Runner) PopplerOption {
	return func(p *Poppler) {
		if r != nil {
			p.runner = r
		}
	}
}

func NewPoppler(cfg Config, logger *slog.Logger, opts ...PopplerOption) *Poppler {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Poppler{
		cfg:    cfg.withDefaults(),
		runner: ExecRunner{Logger: logger},
		logger: logger,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

func (p *Poppler) Open(ctx context.Context, doc []byte) (Document, error) {
	if len(doc) == 0 {
		return nil, ErrEmptyDocument
	}
	start := time.Now()

	dir, err := os.MkdirTemp("", "pt-render-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	path := filepath.Join(dir, "document.pdf")
	if err := os.WriteFile(path, doc, 0o600); err != nil {
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("write document: %w", err)
	}

	out, errb, err := p.runner.Run(ctx, p.cfg.PdfinfoBin, path)
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("pdfinfo: %w: %s", err, truncate(strings.TrimSpace(string(errb)), 512))
	}
	pages, err := parsePageCount(out)
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, err
	}

	p.logger.Debug("render.open.ok",
		"pages", pages,
		"bytes", len(doc),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return &popplerDoc{p: p, dir: dir, path: path, pages: pages}, nil
}

// parsePageCount reads the "Pages:" line of pdfinfo output.
func parsePageCount(out []byte) (int, error) {
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		key, val, ok := strings.Cut(sc.Text(), ":")
		if !ok || strings.TrimSpace(key) != "Pages" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil {
			return 0, fmt.Errorf("pdfinfo: bad page count %q", strings.TrimSpace(val))
		}
		return n, nil
	}
	return 0, fmt.Errorf("pdfinfo: no page count in output")
}

type popplerDoc struct {
	p     *Poppler
	dir   string
	path  string
	pages int
}

func (d *popplerDoc) PageCount() int { return d.pages }

func (d *popplerDoc) RenderPage(ctx context.Context, index int) (Page, error) {
	if index < 0 || index >= d.pages {
		return Page{}, fmt.Errorf("%w: %d of %d", ErrPageIndex, index, d.pages)
	}
	n := strconv.Itoa(index + 1)
	prefix := filepath.Join(d.dir, "page-"+n)

	_, errb, err := d.p.runner.Run(ctx, d.p.cfg.PdftoppmBin,
		"-png", "-singlefile",
		"-f", n, "-l", n,
		"-r", strconv.Itoa(d.p.cfg.DPI),
		"-scale-to", strconv.Itoa(d.p.cfg.MaxDimension),
		d.path, prefix,
	)
	if err != nil {
		return Page{}, fmt.Errorf("pdftoppm page %s: %w: %s", n, err, truncate(strings.TrimSpace(string(errb)), 512))
	}

	out := prefix + ".png"
	f, err := os.Open(out)
	if err != nil {
		return Page{}, fmt.Errorf("pdftoppm page %s produced no image: %w", n, err)
	}
	defer func() {
		_ = f.Close()
		_ = os.Remove(out)
	}()

	img, err := png.Decode(f)
	if err != nil {
		return Page{}, fmt.Errorf("decode page %s: %w", n, err)
	}
	b := img.Bounds()
	return Page{Width: b.Dx(), Height: b.Dy(), Image: img}, nil
}

func (d *popplerDoc) Close() error {
	return os.RemoveAll(d.dir)
}
