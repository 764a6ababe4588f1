// Package ocr provides best-effort captcha text recognition behind a
// provider interface.
package ocr

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/mvanwyk/entrada/internal/config"
	. "github.com/mvanwyk/entrada/internal/logging"
)

// Recognizer extracts text from an image. Implementations return an
// empty string (not an error) when nothing was recognized.
type Recognizer interface {
	RecognizeText(ctx context.Context, imagePath string) (string, error)
}

// NewRecognizer builds a recognizer from config.
func NewRecognizer(cfg config.OCRConfig) (Recognizer, error) {
	switch cfg.Provider {
	case "", "tesseract":
		bin := cfg.Bin
		if bin == "" {
			bin = "tesseract"
		}
		return &Tesseract{Bin: bin}, nil
	case "disabled":
		return Disabled{}, nil
	default:
		return nil, fmt.Errorf("unknown ocr provider: %s", cfg.Provider)
	}
}

// Tesseract shells out to the tesseract CLI.
type Tesseract struct {
	Bin string
}

// RecognizeText runs tesseract over the image and returns the recognized
// text with whitespace stripped. Captchas are single tokens, so embedded
// spaces are recognition noise and removed.
func (t *Tesseract) RecognizeText(ctx context.Context, imagePath string) (string, error) {
	cmd := exec.CommandContext(ctx, t.Bin, imagePath, "stdout", "--psm", "7")

	var out, errBuf bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errBuf

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("tesseract failed: %w (%s)", err, strings.TrimSpace(errBuf.String()))
	}

	text := strings.Join(strings.Fields(out.String()), "")
	L_debug("ocr: recognized", "path", imagePath, "text", text)
	return text, nil
}

// Disabled always recognizes nothing, forcing the manual captcha path.
type Disabled struct{}

func (Disabled) RecognizeText(ctx context.Context, imagePath string) (string, error) {
	return "", nil
}
