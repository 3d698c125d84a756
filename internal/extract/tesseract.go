package extract

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// defaultLanguages matches the documents this system was built for.
const defaultLanguages = "eng+por"

// Tesseract recognizes text in images by invoking the tesseract binary with
// the image on stdin and collecting the recognized text from stdout.
type Tesseract struct {
	// Languages is the tesseract -l argument; empty uses the default (eng+por).
	Languages string
}

func (t *Tesseract) Recognize(ctx context.Context, image []byte) (string, error) {
	langs := t.Languages
	if langs == "" {
		langs = defaultLanguages
	}

	cmd := exec.CommandContext(ctx, "tesseract", "stdin", "stdout", "-l", langs)
	cmd.Stdin = bytes.NewReader(image)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail != "" {
			return "", fmt.Errorf("running tesseract: %w (%s)", err, detail)
		}
		return "", fmt.Errorf("running tesseract: %w", err)
	}
	return stdout.String(), nil
}
