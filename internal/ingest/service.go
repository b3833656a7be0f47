// Package ingest turns PDF bytes into a stored session of PNG pages.
package ingest

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/pipetakeoff/internal/common"
	"github.com/joseph-ayodele/pipetakeoff/internal/entity"
	"github.com/joseph-ayodele/pipetakeoff/internal/render"
)

const DefaultWorkers = 4

// PageSink receives the fully rendered page list of one document.
type PageSink interface {
	Create(pages [][]byte, fileName string) string
}

type Service struct {
	renderer render.Renderer
	sink     PageSink
	workers  int
	logger   *slog.Logger
}

func NewService(renderer render.Renderer, sink PageSink, workers int, logger *slog.Logger) *Service {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{renderer: renderer, sink: sink, workers: workers, logger: logger}
}

// Ingest renders every page of doc and publishes them as one session. A session
// is created only when all pages succeed and ctx is still live.
func (s *Service) Ingest(ctx context.Context, doc []byte, fileName string) (entity.UploadResult, error) {
	start := time.Now()
	logger := common.LoggerFrom(ctx, s.logger).With("file_name", fileName)

	pages, err := s.renderAll(ctx, doc)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			logger.Warn("ingest.abandoned", "error", ctxErr)
			return entity.UploadResult{}, ctxErr
		}
		logger.Error("ingest.failed", "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return entity.UploadResult{}, fmt.Errorf("%w: %w", common.ErrIngestionFailed, err)
	}
	if err := ctx.Err(); err != nil {
		logger.Warn("ingest.abandoned", "error", err)
		return entity.UploadResult{}, err
	}

	id := s.sink.Create(pages, fileName)
	logger.Info("ingest.ok",
		"session_id", id,
		"page_count", len(pages),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return entity.UploadResult{SessionID: id, FileName: fileName, PageCount: len(pages)}, nil
}

// IngestFile reads path from disk and ingests it under its base name.
func (s *Service) IngestFile(ctx context.Context, path string) (entity.UploadResult, error) {
	doc, err := os.ReadFile(path)
	if err != nil {
		return entity.UploadResult{}, fmt.Errorf("read %s: %w", path, err)
	}
	return s.Ingest(ctx, doc, filepath.Base(path))
}

func (s *Service) renderAll(ctx context.Context, doc []byte) ([][]byte, error) {
	d, err := s.renderer.Open(ctx, doc)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := d.Close(); cerr != nil {
			s.logger.Warn("ingest.close_failed", "error", cerr)
		}
	}()

	n := d.PageCount()
	if n <= 0 {
		return nil, render.ErrNoPages
	}

	pages := make([][]byte, n)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i := range n {
		g.Go(func() error {
			page, err := d.RenderPage(gctx, i)
			if err != nil {
				return fmt.Errorf("page %d: %w", i+1, err)
			}
			var buf bytes.Buffer
			if err := png.Encode(&buf, page.Image); err != nil {
				return fmt.Errorf("encode page %d: %w", i+1, err)
			}
			pages[i] = buf.Bytes()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return pages, nil
}
