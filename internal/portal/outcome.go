package portal

// Outcome classifies a login attempt.
type Outcome int

const (
	// OutcomeFailed covers transient failures: input timeouts, page
	// errors, interaction failures. Retrying later is allowed.
	OutcomeFailed Outcome = iota

	// OutcomeSuccess means a success marker was found; credentials are
	// persisted.
	OutcomeSuccess

	// OutcomeInvalidCredentials means the portal explicitly rejected the
	// credentials; they are purged and never retried silently.
	OutcomeInvalidCredentials

	// OutcomeCaptchaFailed means no explicit failure and no success
	// marker, which in practice is a wrong captcha. The automatic path
	// falls through to the manual one.
	OutcomeCaptchaFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeInvalidCredentials:
		return "invalid-credentials"
	case OutcomeCaptchaFailed:
		return "captcha-failed"
	default:
		return "failed"
	}
}
