package portal

import (
	"context"
	"strings"
	"time"

	"github.com/mvanwyk/entrada/internal/creds"
	. "github.com/mvanwyk/entrada/internal/logging"
	"github.com/mvanwyk/entrada/internal/ocr"
)

// Prompter is the human-input bridge as seen from the orchestrator.
// Implemented by internal/bridge.
type Prompter interface {
	RequestText(userID int64, prompt string, timeout time.Duration) (string, error)
	RequestImageText(userID int64, imagePath, caption, prompt string, timeout time.Duration) (string, error)
	Notify(userID int64, text string)
}

// CredentialStore persists portal credentials per user.
type CredentialStore interface {
	Lookup(userID int64) (creds.Credentials, bool, error)
	Save(userID int64, c creds.Credentials) error
	Delete(userID int64) error
}

// Orchestrator drives the login and post-login workflows for one portal.
// It is stateless across calls; all per-user state lives in the session,
// the credential store and the bridge.
type Orchestrator struct {
	profile   *Profile
	prompter  Prompter
	creds     CredentialStore
	ocr       ocr.Recognizer
	inputWait time.Duration
}

// NewOrchestrator wires an orchestrator for the given portal profile.
func NewOrchestrator(profile *Profile, prompter Prompter, store CredentialStore, rec ocr.Recognizer, inputWait time.Duration) *Orchestrator {
	if inputWait <= 0 {
		inputWait = 60 * time.Second
	}
	return &Orchestrator{
		profile:   profile,
		prompter:  prompter,
		creds:     store,
		ocr:       rec,
		inputWait: inputWait,
	}
}

// Login runs one automatic attempt and, when the result is ambiguous
// (typically a misread captcha), exactly one manual attempt. No further
// retries: repeated wrong-captcha submissions get accounts flagged.
func (o *Orchestrator) Login(ctx context.Context, userID int64, page Page) Outcome {
	c, ok := o.obtainCredentials(userID)
	if !ok {
		o.prompter.Notify(userID, "❌ Login failed: no valid credentials provided.")
		return OutcomeInvalidCredentials
	}

	o.prompter.Notify(userID, "🌀 Attempting automatic login…")
	out := o.attempt(ctx, userID, page, c, false)
	switch out {
	case OutcomeSuccess:
		o.persist(userID, c)
		o.prompter.Notify(userID, "🎉 Automatic login successful! Now try /operations")
		return OutcomeSuccess
	case OutcomeInvalidCredentials:
		o.purge(userID)
		o.prompter.Notify(userID, "❌ Login failed: invalid credentials. Please try again with the correct username and password.")
		return OutcomeInvalidCredentials
	case OutcomeFailed:
		return OutcomeFailed
	}

	o.prompter.Notify(userID, "📝 Automatic captcha failed, switching to manual entry…")
	out = o.attempt(ctx, userID, page, c, true)
	switch out {
	case OutcomeSuccess:
		o.persist(userID, c)
		o.prompter.Notify(userID, "🎉 Manual login successful! Now try /operations")
		return OutcomeSuccess
	case OutcomeInvalidCredentials:
		o.purge(userID)
		o.prompter.Notify(userID, "❌ Login failed: invalid credentials. Please try again with the correct username and password.")
		return OutcomeInvalidCredentials
	default:
		o.prompter.Notify(userID, "❌ Login failed: could not confirm a successful login.")
		return OutcomeFailed
	}
}

// attempt is one navigation cycle: fresh page, credentials, captcha,
// submit, inspect. Failures inside the steps never escalate past the
// returned outcome.
func (o *Orchestrator) attempt(ctx context.Context, userID int64, page Page, c creds.Credentials, manual bool) Outcome {
	if err := page.Navigate(o.profile.URL); err != nil {
		L_warn("portal: navigate failed", "user", userID, "error", err)
		o.prompter.Notify(userID, "❌ Could not reach the portal.")
		return OutcomeFailed
	}
	o.settle(o.profile.NavigateSettle)

	if err := o.enterCredentials(page, c); err != nil {
		L_warn("portal: entering credentials failed", "user", userID, "error", err)
		o.prompter.Notify(userID, "❌ Could not fill in the login form.")
		return OutcomeFailed
	}

	captchaPath, cleanup, err := fetchCaptcha(page, o.profile.Login.CaptchaImage)
	if err != nil {
		L_warn("portal: captcha fetch failed", "user", userID, "error", err)
		o.prompter.Notify(userID, "❌ Could not fetch the captcha image.")
		return OutcomeFailed
	}
	defer cleanup()

	var captchaText string
	if manual {
		captchaText, err = o.prompter.RequestImageText(userID, captchaPath,
			"📝 Please enter the captcha text:",
			"Type the captcha text shown in the image above:",
			o.inputWait)
		if err != nil {
			L_warn("portal: manual captcha not received", "user", userID, "error", err)
			o.prompter.Notify(userID, "⚠️ No captcha received in time. Please try /login again.")
			return OutcomeFailed
		}
		captchaText = strings.TrimSpace(captchaText)
		if captchaText == "" {
			return OutcomeFailed
		}
	} else {
		captchaText, err = o.ocr.RecognizeText(ctx, captchaPath)
		if err != nil {
			L_debug("portal: ocr failed", "user", userID, "error", err)
		}
		if captchaText == "" {
			// Nothing recognized; fall through to the manual attempt
			return OutcomeCaptchaFailed
		}
		o.prompter.Notify(userID, "🔍 Recognized captcha: "+captchaText)
	}

	if err := o.fillAndSubmit(page, captchaText); err != nil {
		L_warn("portal: submit failed", "user", userID, "error", err)
		o.prompter.Notify(userID, "❌ Could not submit the login form.")
		return OutcomeFailed
	}
	o.settle(o.profile.SubmitSettle)

	return o.inspect(page)
}

func (o *Orchestrator) enterCredentials(page Page, c creds.Credentials) error {
	userEl, err := page.Element(o.profile.Login.Username)
	if err != nil {
		return err
	}
	if err := userEl.Input(c.Username); err != nil {
		return err
	}

	passEl, err := page.Element(o.profile.Login.Password)
	if err != nil {
		return err
	}
	return passEl.Input(c.Password)
}

func (o *Orchestrator) fillAndSubmit(page Page, captchaText string) error {
	in, err := page.Element(o.profile.Login.CaptchaInput)
	if err != nil {
		return err
	}
	if err := in.Input(captchaText); err != nil {
		return err
	}

	submit, err := page.Element(o.profile.Login.Submit)
	if err != nil {
		return err
	}
	return submit.Click()
}

// inspect classifies the page after a submit. It runs once per
// navigation cycle: the explicit failure marker first (an
// invalid/incorrect match is terminal), then the success markers in
// order, otherwise ambiguous.
func (o *Orchestrator) inspect(page Page) Outcome {
	markers, err := page.Elements(o.profile.FailureMarker)
	if err == nil && len(markers) > 0 {
		text, _ := markers[0].Text()
		lower := strings.ToLower(strings.TrimSpace(text))
		if strings.Contains(lower, "invalid") || strings.Contains(lower, "incorrect") {
			return OutcomeInvalidCredentials
		}
		L_debug("portal: failure marker present", "text", text)
		return OutcomeCaptchaFailed
	}

	for _, marker := range o.profile.SuccessMarkers {
		els, err := page.Elements(marker)
		if err == nil && len(els) > 0 {
			return OutcomeSuccess
		}
	}

	return OutcomeCaptchaFailed
}

// obtainCredentials loads stored credentials or asks the user for them.
// Freshly entered credentials are only persisted after a confirmed
// successful login.
func (o *Orchestrator) obtainCredentials(userID int64) (creds.Credentials, bool) {
	c, ok, err := o.creds.Lookup(userID)
	if err != nil {
		L_warn("portal: credential lookup failed", "user", userID, "error", err)
	}
	if ok {
		return c, true
	}

	o.prompter.Notify(userID, "⚠️ No saved credentials found. Please provide your login details.")

	username, err := o.prompter.RequestText(userID, "📝 Please enter your username:", o.inputWait)
	if err != nil || strings.TrimSpace(username) == "" {
		return creds.Credentials{}, false
	}

	password, err := o.prompter.RequestText(userID, "🔑 Please enter your password:", o.inputWait)
	if err != nil || password == "" {
		return creds.Credentials{}, false
	}

	return creds.Credentials{Username: strings.TrimSpace(username), Password: password}, true
}

func (o *Orchestrator) persist(userID int64, c creds.Credentials) {
	if err := o.creds.Save(userID, c); err != nil {
		L_warn("portal: saving credentials failed", "user", userID, "error", err)
	}
}

func (o *Orchestrator) purge(userID int64) {
	if err := o.creds.Delete(userID); err != nil {
		L_warn("portal: deleting credentials failed", "user", userID, "error", err)
	}
}

func (o *Orchestrator) settle(d Duration) {
	if d > 0 {
		time.Sleep(time.Duration(d))
	}
}
