// Package extract turns uploaded document bytes into plain text. PDFs are
// tried through their text layer first; scanned PDFs and images go through
// OCR. The text-layer pass is cheap, so it always runs before the expensive
// rasterize-and-recognize path.
package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"
)

// ErrEmptyResult is returned when OCR completes but recognizes no text.
// It is distinct from an engine failure: the recognizer ran and found nothing.
var ErrEmptyResult = errors.New("ocr completed but extracted text is empty")

const (
	mimePDF = "application/pdf"

	// defaultMinTextLength is the trimmed text-layer length below which a PDF
	// is treated as scanned and sent to OCR. 50 characters filters out PDFs
	// whose "text layer" is only artifacts (page numbers, producer metadata)
	// while accepting any digitally-produced document.
	defaultMinTextLength = 50

	defaultPageWorkers = 4
)

// TextParser extracts the embedded text layer of a PDF.
type TextParser interface {
	Text(data []byte) (string, error)
}

// Rasterizer renders each page of a PDF file to an image in outDir and
// returns the image paths in page order.
type Rasterizer interface {
	Rasterize(ctx context.Context, pdfPath, outDir string) ([]string, error)
}

// Recognizer runs OCR over a single image.
type Recognizer interface {
	Recognize(ctx context.Context, image []byte) (string, error)
}

// Options tune the extraction strategy.
type Options struct {
	// MinTextLength is the text-layer acceptance threshold; <= 0 uses the default.
	MinTextLength int
	// PageWorkers bounds concurrent per-page OCR; <= 0 uses the default.
	PageWorkers int
}

// Engine implements the two-tier extraction strategy.
type Engine struct {
	parser      TextParser
	raster      Rasterizer
	ocr         Recognizer
	minTextLen  int
	pageWorkers int
	logger      *slog.Logger
}

// NewEngine creates an Engine from its three collaborators.
func NewEngine(parser TextParser, raster Rasterizer, ocr Recognizer, opts Options) *Engine {
	minLen := opts.MinTextLength
	if minLen <= 0 {
		minLen = defaultMinTextLength
	}
	workers := opts.PageWorkers
	if workers <= 0 {
		workers = defaultPageWorkers
	}
	return &Engine{
		parser:      parser,
		raster:      raster,
		ocr:         ocr,
		minTextLen:  minLen,
		pageWorkers: workers,
		logger:      slog.Default(),
	}
}

// Extract produces the plain text of a document. PDFs whose text layer meets
// the threshold return without OCR; anything else is recognized image by image.
func (e *Engine) Extract(ctx context.Context, data []byte, mimeType string) (string, error) {
	if mimeType == mimePDF {
		return e.extractPDF(ctx, data)
	}
	return e.ocrImage(ctx, data)
}

func (e *Engine) extractPDF(ctx context.Context, data []byte) (string, error) {
	text, err := e.parser.Text(data)
	if err != nil {
		return "", fmt.Errorf("parsing pdf text layer: %w", err)
	}

	text = strings.TrimSpace(text)
	if len(text) >= e.minTextLen {
		return text, nil
	}

	e.logger.Debug("text layer below threshold, falling back to OCR",
		"text_length", len(text), "threshold", e.minTextLen)
	return e.ocrPDF(ctx, data)
}

// ocrPDF rasterizes every page into a scratch directory, recognizes the pages
// concurrently, and joins the page texts in page order. The scratch directory
// is removed on every path before returning.
func (e *Engine) ocrPDF(ctx context.Context, data []byte) (string, error) {
	scratch, err := os.MkdirTemp("", "doctalk-extract-*")
	if err != nil {
		return "", fmt.Errorf("creating scratch directory: %w", err)
	}
	defer os.RemoveAll(scratch)

	srcPath := filepath.Join(scratch, "source.pdf")
	if err := os.WriteFile(srcPath, data, 0o600); err != nil {
		return "", fmt.Errorf("writing source pdf: %w", err)
	}

	pages, err := e.raster.Rasterize(ctx, srcPath, scratch)
	if err != nil {
		return "", fmt.Errorf("rasterizing pdf: %w", err)
	}
	if len(pages) == 0 {
		return "", fmt.Errorf("rasterizing pdf: no pages produced")
	}

	results := make([]string, len(pages))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(e.pageWorkers)

	for i, page := range pages {
		g.Go(func() error {
			img, err := os.ReadFile(page)
			if err != nil {
				return fmt.Errorf("reading page image %d: %w", i+1, err)
			}
			text, err := e.recognize(gCtx, img)
			if err != nil {
				return fmt.Errorf("page %d: %w", i+1, err)
			}
			results[i] = text
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	return strings.Join(results, "\n"), nil
}

func (e *Engine) ocrImage(ctx context.Context, data []byte) (string, error) {
	return e.recognize(ctx, data)
}

func (e *Engine) recognize(ctx context.Context, image []byte) (string, error) {
	text, err := e.ocr.Recognize(ctx, image)
	if err != nil {
		return "", fmt.Errorf("running ocr: %w", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyResult
	}
	return text, nil
}
