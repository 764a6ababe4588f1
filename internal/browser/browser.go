// Package browser implements the automation resource handle on top of
// go-rod. Each user session gets its own browser process, launched
// headless with a fixed desktop viewport.
package browser

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/mvanwyk/entrada/internal/config"
	. "github.com/mvanwyk/entrada/internal/logging"
	"github.com/mvanwyk/entrada/internal/portal"
)

// findTimeout bounds how long Element waits for a descriptor to match.
// The portal's pages are fully rendered after WaitLoad, so a short wait
// is enough to absorb late DOM updates.
const findTimeout = 10 * time.Second

// Launcher builds per-user browser handles from config.
type Launcher struct {
	cfg config.BrowserConfig
}

// NewLauncher creates a launcher with the given browser config.
func NewLauncher(cfg config.BrowserConfig) *Launcher {
	return &Launcher{cfg: cfg}
}

// NewPage launches a fresh browser and opens a page for the user.
// Satisfies session.LaunchFunc.
func (lc *Launcher) NewPage(userID int64) (portal.Page, error) {
	l := launcher.New().
		Headless(lc.cfg.Headless).
		Set("disable-dev-shm-usage").
		Set("disable-gpu")

	if lc.cfg.Bin != "" {
		l = l.Bin(lc.cfg.Bin)
	}

	window := lc.cfg.Window
	if window == "" {
		window = "1920,1080"
	}
	l = l.Set("window-size", window)

	// Needed when running as root in a container
	if lc.cfg.NoSandbox {
		l = l.Set("no-sandbox")
	}

	if lc.cfg.Stealth {
		l = l.Set("disable-blink-features", "AutomationControlled")
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	var page *rod.Page
	if lc.cfg.Stealth {
		page, err = stealth.Page(b)
	} else {
		page, err = b.Page(proto.TargetCreateTarget{})
	}
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	L_info("browser: launched", "user", userID, "headless", lc.cfg.Headless)
	return &Handle{browser: b, page: page}, nil
}

// Handle is one live browser + page pair implementing portal.Page.
type Handle struct {
	browser *rod.Browser
	page    *rod.Page
}

// Navigate loads the URL and waits for the load event.
func (h *Handle) Navigate(url string) error {
	if err := h.page.Navigate(url); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	if err := h.page.WaitLoad(); err != nil {
		return fmt.Errorf("page load failed for %s: %w", url, err)
	}
	return nil
}

// Element finds the first element matching the descriptor, waiting up to
// findTimeout for it to appear.
func (h *Handle) Element(selector string) (portal.Element, error) {
	p := h.page.Timeout(findTimeout)

	var el *rod.Element
	var err error
	if isXPath(selector) {
		el, err = p.ElementX(selector)
	} else {
		el, err = p.Element(selector)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s", portal.ErrNotFound, selector)
	}
	return &element{el: el.CancelTimeout(), page: h.page}, nil
}

// Elements returns all current matches without waiting.
func (h *Handle) Elements(selector string) ([]portal.Element, error) {
	var els rod.Elements
	var err error
	if isXPath(selector) {
		els, err = h.page.ElementsX(selector)
	} else {
		els, err = h.page.Elements(selector)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", selector, err)
	}

	out := make([]portal.Element, 0, len(els))
	for _, el := range els {
		out = append(out, &element{el: el, page: h.page})
	}
	return out, nil
}

// Alive probes the browser connection. Rod has no direct liveness check,
// so issue a trivial CDP call and recover if the client is already gone.
func (h *Handle) Alive() (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			L_debug("browser: liveness probe panicked, browser is dead", "panic", r)
			ok = false
		}
	}()
	_, err := h.browser.Call(nil, "", "Browser.getVersion", nil)
	return err == nil
}

// Close shuts the browser down. Safe to call while another goroutine is
// mid-operation on the page; its next call will fail fast.
func (h *Handle) Close() error {
	return h.browser.Close()
}

// isXPath reports whether the descriptor is an XPath expression. The
// portal profiles use absolute paths, which always start with "/" or "(".
func isXPath(selector string) bool {
	return strings.HasPrefix(selector, "/") || strings.HasPrefix(selector, "(")
}
