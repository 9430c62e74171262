// Package captcha implements the reCAPTCHA v3 bot-score gate.
package captcha

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/vyapar-labs/b2b-platform/internal/core/port"
	"github.com/vyapar-labs/b2b-platform/internal/infra/config"
)

// Verifier scores client tokens against the reCAPTCHA siteverify endpoint.
// With no secret configured the gate stays open: every token passes with a
// full score, and a warning is logged once at construction.
type Verifier struct {
	secret    string
	threshold float64
	verifyURL string
	enforce   bool
	client    *http.Client
	logger    *zap.Logger
}

var _ port.CaptchaVerifier = (*Verifier)(nil)

// NewVerifier constructs the verifier from config.
func NewVerifier(cfg config.CaptchaSettings, log *zap.Logger) *Verifier {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	v := &Verifier{
		secret:    cfg.SecretKey,
		threshold: cfg.Threshold,
		verifyURL: cfg.VerifyURL,
		enforce:   cfg.Enforce,
		client:    &http.Client{Timeout: timeout},
		logger:    log,
	}

	if v.threshold <= 0 {
		v.threshold = 0.5
	}
	if v.secret == "" {
		log.Warn("captcha secret not configured, bot-score gate is open")
	}

	return v
}

// Enforced reports whether registrations must pass the gate.
func (v *Verifier) Enforced() bool {
	return v.enforce && v.secret != ""
}

type siteverifyResponse struct {
	Success    bool     `json:"success"`
	Score      float64  `json:"score"`
	Action     string   `json:"action"`
	ErrorCodes []string `json:"error-codes"`
}

// Verify scores the token. The verdict fails when the API rejects the
// token, the action does not match, or the score is below the threshold.
func (v *Verifier) Verify(ctx context.Context, token, expectedAction string) (port.CaptchaResult, error) {
	if v.secret == "" {
		return port.CaptchaResult{Valid: true, Score: 1.0, Reason: "captcha not configured"}, nil
	}
	if token == "" {
		return port.CaptchaResult{Valid: false, Reason: "missing captcha token"}, nil
	}

	form := url.Values{}
	form.Set("secret", v.secret)
	form.Set("response", token)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.verifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return port.CaptchaResult{}, fmt.Errorf("build captcha request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.client.Do(req)
	if err != nil {
		return port.CaptchaResult{}, fmt.Errorf("captcha verify request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return port.CaptchaResult{}, fmt.Errorf("captcha verify status %d", resp.StatusCode)
	}

	var payload siteverifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return port.CaptchaResult{}, fmt.Errorf("decode captcha response: %w", err)
	}

	if !payload.Success {
		return port.CaptchaResult{
			Score:  payload.Score,
			Reason: "rejected: " + strings.Join(payload.ErrorCodes, ","),
		}, nil
	}
	if expectedAction != "" && payload.Action != "" && payload.Action != expectedAction {
		return port.CaptchaResult{
			Score:  payload.Score,
			Reason: fmt.Sprintf("action mismatch: got %q", payload.Action),
		}, nil
	}
	if payload.Score < v.threshold {
		return port.CaptchaResult{
			Score:  payload.Score,
			Reason: fmt.Sprintf("score %.2f below threshold %.2f", payload.Score, v.threshold),
		}, nil
	}

	return port.CaptchaResult{Valid: true, Score: payload.Score}, nil
}
