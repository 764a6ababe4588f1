package portal

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"sync"
	"time"

	"github.com/mvanwyk/entrada/internal/creds"
)

// fakeElement implements Element for tests.
type fakeElement struct {
	text     string
	attrs    map[string]string
	inputs   []string
	clicks   int
	clickErr error
	resource []byte
	cleared  bool
}

func (e *fakeElement) Text() (string, error) { return e.text, nil }

func (e *fakeElement) Attribute(name string) (string, bool, error) {
	v, ok := e.attrs[name]
	return v, ok, nil
}

func (e *fakeElement) Input(text string) error {
	e.inputs = append(e.inputs, text)
	return nil
}

func (e *fakeElement) Clear() error {
	e.cleared = true
	return nil
}

func (e *fakeElement) Click() error {
	e.clicks++
	return e.clickErr
}

func (e *fakeElement) Resource() ([]byte, error) { return e.resource, nil }

// fakePage serves elements from per-navigation-cycle maps: the first
// Navigate serves cycles[0], the second cycles[1], and so on.
type fakePage struct {
	cycles []map[string][]*fakeElement
	idx    int
	navs   int
	urls   []string
}

func (p *fakePage) Navigate(url string) error {
	p.navs++
	p.urls = append(p.urls, url)
	if p.navs > 1 && p.idx < len(p.cycles)-1 {
		p.idx++
	}
	return nil
}

func (p *fakePage) current() map[string][]*fakeElement {
	if len(p.cycles) == 0 {
		return nil
	}
	return p.cycles[p.idx]
}

func (p *fakePage) Element(selector string) (Element, error) {
	els := p.current()[selector]
	if len(els) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, selector)
	}
	return els[0], nil
}

func (p *fakePage) Elements(selector string) ([]Element, error) {
	els := p.current()[selector]
	out := make([]Element, 0, len(els))
	for _, el := range els {
		out = append(out, el)
	}
	return out, nil
}

func (p *fakePage) Alive() bool  { return true }
func (p *fakePage) Close() error { return nil }

// promptAnswer is one scripted reply from the fake user.
type promptAnswer struct {
	text string
	err  error
}

// fakePrompter replays scripted answers and records everything pushed to
// the user.
type fakePrompter struct {
	answers []promptAnswer
	prompts []string
	images  []string
	notices []string
}

func (f *fakePrompter) pop() (string, error) {
	if len(f.answers) == 0 {
		return "", fmt.Errorf("no scripted answer left")
	}
	a := f.answers[0]
	f.answers = f.answers[1:]
	return a.text, a.err
}

func (f *fakePrompter) RequestText(userID int64, prompt string, timeout time.Duration) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.pop()
}

func (f *fakePrompter) RequestImageText(userID int64, imagePath, caption, prompt string, timeout time.Duration) (string, error) {
	f.images = append(f.images, imagePath)
	f.prompts = append(f.prompts, prompt)
	return f.pop()
}

func (f *fakePrompter) Notify(userID int64, text string) {
	f.notices = append(f.notices, text)
}

// memStore is an in-memory CredentialStore.
type memStore struct {
	mu sync.Mutex
	m  map[int64]creds.Credentials
}

func newMemStore() *memStore {
	return &memStore{m: make(map[int64]creds.Credentials)}
}

func (s *memStore) Lookup(userID int64) (creds.Credentials, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.m[userID]
	return c, ok, nil
}

func (s *memStore) Save(userID int64, c creds.Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[userID] = c
	return nil
}

func (s *memStore) Delete(userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, userID)
	return nil
}

// fakeOCR always recognizes the same text; "" simulates a miss.
type fakeOCR string

func (f fakeOCR) RecognizeText(ctx context.Context, imagePath string) (string, error) {
	return string(f), nil
}

// captchaBytes is a small valid PNG for captcha elements.
func captchaBytes() []byte {
	var buf bytes.Buffer
	png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 16, 8)))
	return buf.Bytes()
}

// testProfile uses simple selectors and zero settle delays.
func testProfile() *Profile {
	return &Profile{
		URL: "https://portal.test/login",
		Login: LoginSelectors{
			Username:     "#user",
			Password:     "#pass",
			CaptchaImage: "#cimg",
			CaptchaInput: "#cin",
			Submit:       "#submit",
		},
		FailureMarker:  "#fail",
		SuccessMarkers: []string{"#ok1", "#ok2"},
		Steps: []Step{
			{Name: "open data entry", Selector: "#step1"},
			{Name: "select record", Selector: "#step2", Verify: "#verify2"},
			{Name: "open form", Selector: "#step3"},
		},
		FieldDenylist: []string{"viewstate", "validation", "hidden", "logout"},
		LabelPrefix:   "Form_txt",
		ValueInput:    "#val",
		SaveButton:    "#save",
	}
}

// loginCycle builds the element map for one navigation cycle of the
// login form, plus any markers the submit should reveal.
func loginCycle(markers map[string]string) map[string][]*fakeElement {
	cycle := map[string][]*fakeElement{
		"#user":   {{}},
		"#pass":   {{}},
		"#cimg":   {{resource: captchaBytes()}},
		"#cin":    {{}},
		"#submit": {{}},
	}
	for sel, text := range markers {
		cycle[sel] = []*fakeElement{{text: text}}
	}
	return cycle
}
