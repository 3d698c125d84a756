package extract

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// defaultDPI is the rasterization density for OCR input. 600 DPI keeps small
// print legible to the recognizer at the cost of larger page images.
const defaultDPI = 600

// Poppler rasterizes PDF pages to PNG images. The PDF is split into
// single-page files with pdfcpu, then each page is rendered by the poppler
// pdftoppm binary.
type Poppler struct {
	// DPI is the render density; <= 0 uses the default (600).
	DPI int
}

func (p *Poppler) Rasterize(ctx context.Context, pdfPath, outDir string) ([]string, error) {
	dpi := p.DPI
	if dpi <= 0 {
		dpi = defaultDPI
	}

	if err := api.ValidateFile(pdfPath, nil); err != nil {
		return nil, fmt.Errorf("validating pdf: %w", err)
	}

	pagesDir := filepath.Join(outDir, "pages")
	if err := os.MkdirAll(pagesDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating pages directory: %w", err)
	}
	if err := api.SplitFile(pdfPath, pagesDir, 1, nil); err != nil {
		return nil, fmt.Errorf("splitting pdf into pages: %w", err)
	}

	pagePDFs, err := orderedPagePDFs(pagesDir)
	if err != nil {
		return nil, err
	}

	images := make([]string, 0, len(pagePDFs))
	for i, pagePDF := range pagePDFs {
		outPrefix := filepath.Join(outDir, fmt.Sprintf("page-%04d", i+1))
		cmd := exec.CommandContext(ctx, "pdftoppm",
			"-r", strconv.Itoa(dpi),
			"-png",
			"-singlefile",
			pagePDF, outPrefix,
		)
		var stderr bytes.Buffer
		cmd.Stderr = &stderr
		if err := cmd.Run(); err != nil {
			return nil, fmt.Errorf("rendering page %d: %w (%s)", i+1, err, strings.TrimSpace(stderr.String()))
		}
		images = append(images, outPrefix+".png")
	}
	return images, nil
}

// orderedPagePDFs lists the single-page files produced by the split in page
// order. pdfcpu names them <stem>_<page>.pdf, so ordering is numeric on the
// trailing page number, not lexicographic.
func orderedPagePDFs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading pages directory: %w", err)
	}

	type page struct {
		path string
		num  int
	}
	var pages []page
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".pdf") {
			continue
		}
		num, err := pageNumber(name)
		if err != nil {
			return nil, err
		}
		pages = append(pages, page{path: filepath.Join(dir, name), num: num})
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("split produced no pages in %s", dir)
	}

	sort.Slice(pages, func(i, j int) bool { return pages[i].num < pages[j].num })

	paths := make([]string, len(pages))
	for i, p := range pages {
		paths[i] = p.path
	}
	return paths, nil
}

func pageNumber(name string) (int, error) {
	stem := strings.TrimSuffix(name, ".pdf")
	idx := strings.LastIndex(stem, "_")
	if idx < 0 {
		return 0, fmt.Errorf("unexpected page file name %q", name)
	}
	num, err := strconv.Atoi(stem[idx+1:])
	if err != nil {
		return 0, fmt.Errorf("parsing page number from %q: %w", name, err)
	}
	return num, nil
}
