package render

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	name string
	args []string
}

// fakeRunner answers pdfinfo with a fixed page count and makes pdftoppm
// write a small PNG at the requested prefix.
type fakeRunner struct {
	mu        sync.Mutex
	calls     []call
	info      string
	infoErr   error
	renderErr error
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, call{name: name, args: args})
	f.mu.Unlock()

	switch name {
	case "pdfinfo":
		if f.infoErr != nil {
			return nil, []byte("Syntax Error: broken"), f.infoErr
		}
		return []byte(f.info), nil, nil
	case "pdftoppm":
		if f.renderErr != nil {
			return nil, []byte("render failed"), f.renderErr
		}
		prefix := args[len(args)-1]
		file, err := os.Create(prefix + ".png")
		if err != nil {
			return nil, nil, err
		}
		defer file.Close()
		img := image.NewRGBA(image.Rect(0, 0, 40, 20))
		img.Set(1, 1, color.Black)
		return nil, nil, png.Encode(file, img)
	}
	return nil, nil, errors.New("unexpected command " + name)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPopplerOpenAndRender(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{info: "Title: plan\nPages:          2\nEncrypted: no\n"}
	p := NewPoppler(Config{}, quietLogger(), WithRunner(runner))

	doc, err := p.Open(context.Background(), []byte("%PDF-1.7 fake"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = doc.Close() })
	assert.Equal(t, 2, doc.PageCount())

	page, err := doc.RenderPage(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 40, page.Width)
	assert.Equal(t, 20, page.Height)
	require.NotNil(t, page.Image)

	last := runner.calls[len(runner.calls)-1]
	assert.Equal(t, "pdftoppm", last.name)
	assert.Equal(t, []string{"-png", "-singlefile", "-f", "2", "-l", "2", "-r", "150", "-scale-to", "2048"}, last.args[:10])
}

func TestPopplerRenderPageRejectsBadIndex(t *testing.T) {
	t.Parallel()

	p := NewPoppler(Config{}, quietLogger(), WithRunner(&fakeRunner{info: "Pages: 1\n"}))
	doc, err := p.Open(context.Background(), []byte("%PDF"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = doc.Close() })

	_, err = doc.RenderPage(context.Background(), 1)
	assert.ErrorIs(t, err, ErrPageIndex)
	_, err = doc.RenderPage(context.Background(), -1)
	assert.ErrorIs(t, err, ErrPageIndex)
}

func TestPopplerOpenFailures(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		doc     []byte
		runner  *fakeRunner
		wantErr string
	}{
		{name: "empty", doc: nil, runner: &fakeRunner{}, wantErr: "empty document"},
		{name: "pdfinfo fails", doc: []byte("junk"), runner: &fakeRunner{infoErr: errors.New("exit status 1")}, wantErr: "Syntax Error"},
		{name: "no page line", doc: []byte("junk"), runner: &fakeRunner{info: "Title: x\n"}, wantErr: "no page count"},
		{name: "bad count", doc: []byte("junk"), runner: &fakeRunner{info: "Pages: many\n"}, wantErr: "bad page count"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p := NewPoppler(Config{}, quietLogger(), WithRunner(tc.runner))
			_, err := p.Open(context.Background(), tc.doc)
			require.Error(t, err)
			assert.ErrorContains(t, err, tc.wantErr)
		})
	}
}

func TestPopplerCloseRemovesTempDir(t *testing.T) {
	t.Parallel()

	p := NewPoppler(Config{}, quietLogger(), WithRunner(&fakeRunner{info: "Pages: 1\n"}))
	doc, err := p.Open(context.Background(), []byte("%PDF"))
	require.NoError(t, err)

	dir := doc.(*popplerDoc).dir
	_, err = os.Stat(dir)
	require.NoError(t, err)

	require.NoError(t, doc.Close())
	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err))
}

func TestPopplerRenderFailureCarriesStderr(t *testing.T) {
	t.Parallel()

	p := NewPoppler(Config{DPI: 72, MaxDimension: 1024}, quietLogger(),
		WithRunner(&fakeRunner{info: "Pages: 3\n", renderErr: errors.New("exit status 99")}))
	doc, err := p.Open(context.Background(), []byte("%PDF"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = doc.Close() })

	_, err = doc.RenderPage(context.Background(), 0)
	require.Error(t, err)
	assert.ErrorContains(t, err, "render failed")
}
