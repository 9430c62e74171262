package port

import "context"

// CaptchaResult carries the verdict of a bot-score check.
type CaptchaResult struct {
	Valid  bool
	Score  float64
	Reason string
}

// CaptchaVerifier scores a client-supplied captcha token. Implementations
// that are not configured with a secret must pass every request so that the
// gate degrades open rather than locking registration out.
type CaptchaVerifier interface {
	Verify(ctx context.Context, token, expectedAction string) (CaptchaResult, error)
	Enforced() bool
}
