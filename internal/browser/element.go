package browser

import (
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	. "github.com/mvanwyk/entrada/internal/logging"
)

// element wraps a rod element, implementing portal.Element.
type element struct {
	el   *rod.Element
	page *rod.Page
}

func (e *element) Text() (string, error) {
	text, err := e.el.Text()
	if err != nil {
		return "", fmt.Errorf("failed to read element text: %w", err)
	}
	return text, nil
}

func (e *element) Attribute(name string) (string, bool, error) {
	val, err := e.el.Attribute(name)
	if err != nil {
		return "", false, fmt.Errorf("failed to read attribute %s: %w", name, err)
	}
	if val == nil {
		return "", false, nil
	}
	return *val, true, nil
}

func (e *element) Input(text string) error {
	if err := e.el.Input(text); err != nil {
		return fmt.Errorf("failed to type into element: %w", err)
	}
	return nil
}

func (e *element) Clear() error {
	if _, err := e.el.Eval(`() => { this.value = "" }`); err != nil {
		return fmt.Errorf("failed to clear element: %w", err)
	}
	return nil
}

// Resource fetches the bytes behind the element, e.g. the image data of
// a captcha <img> without a second network round trip.
func (e *element) Resource() ([]byte, error) {
	data, err := e.el.Resource()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch element resource: %w", err)
	}
	return data, nil
}

// clickStrategy is one way of activating an element. Strategies are
// tried in order; the first success wins.
type clickStrategy struct {
	name string
	fn   func(e *element) error
}

var clickStrategies = []clickStrategy{
	{"js-dispatch", func(e *element) error {
		_, err := e.el.Eval(`() => this.click()`)
		return err
	}},
	{"pointer", func(e *element) error {
		if err := e.el.ScrollIntoView(); err != nil {
			return err
		}
		if err := e.el.Hover(); err != nil {
			return err
		}
		return e.el.Click(proto.InputMouseButtonLeft, 1)
	}},
	{"forced-visibility", func(e *element) error {
		_, err := e.el.Eval(`() => {
			this.style.opacity = "1";
			this.style.display = "block";
			this.style.visibility = "visible";
		}`)
		if err != nil {
			return err
		}
		return e.el.Click(proto.InputMouseButtonLeft, 1)
	}},
}

// Click activates the element, escalating through the click strategies.
// Portal buttons are sometimes overlapped or styled invisible, so a
// direct pointer click alone is not reliable.
func (e *element) Click() error {
	var lastErr error
	for _, s := range clickStrategies {
		if err := s.fn(e); err != nil {
			L_debug("browser: click strategy failed", "strategy", s.name, "error", err)
			lastErr = err
			continue
		}
		L_debug("browser: clicked", "strategy", s.name)
		e.page.WaitStable(time.Second)
		return nil
	}
	return fmt.Errorf("all click strategies failed: %w", lastErr)
}
