package port

import (
	"context"
	"time"
)

// EmailSender delivers verification codes to account owners.
type EmailSender interface {
	SendOTP(ctx context.Context, to, code string, expiresAt time.Time) error
}
