package portal

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	. "github.com/mvanwyk/entrada/internal/logging"
)

// captchaPrefix names the temp files captcha images are written to.
const captchaPrefix = "entrada-captcha-"

// fetchCaptcha grabs the captcha image off the page, normalizes it to a
// grayscale PNG (the recognizer copes much better without the colored
// noise background) and writes it to a temp file. The caller must run
// cleanup when done.
func fetchCaptcha(page Page, selector string) (path string, cleanup func(), err error) {
	el, err := page.Element(selector)
	if err != nil {
		return "", nil, fmt.Errorf("captcha image not found: %w", err)
	}

	data, err := el.Resource()
	if err != nil {
		return "", nil, fmt.Errorf("failed to fetch captcha image: %w", err)
	}

	if mt := mimetype.Detect(data); !strings.HasPrefix(mt.String(), "image/") {
		return "", nil, fmt.Errorf("captcha resource is not an image (%s)", mt)
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return "", nil, fmt.Errorf("failed to decode captcha image: %w", err)
	}
	img = imaging.Grayscale(img)

	path = filepath.Join(os.TempDir(), captchaPrefix+uuid.NewString()+".png")
	if err := imaging.Save(img, path); err != nil {
		return "", nil, fmt.Errorf("failed to write captcha image: %w", err)
	}

	cleanup = func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			L_debug("portal: captcha cleanup failed", "path", path, "error", err)
		}
	}
	return path, cleanup, nil
}

// removeStaleCaptchas deletes captcha temp files left over from attempts
// that crashed before their cleanup ran.
func removeStaleCaptchas() {
	matches, err := filepath.Glob(filepath.Join(os.TempDir(), captchaPrefix+"*.png"))
	if err != nil {
		return
	}
	for _, m := range matches {
		os.Remove(m)
	}
}
