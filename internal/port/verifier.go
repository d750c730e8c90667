package port

import (
	"context"

	"permitflow/internal/domain"
)

// IDVerifier checks a reference number against the permit office's records. It never returns an
// error; failures are reported as unsuccessful results.
type IDVerifier interface {
	VerifyID(ctx context.Context, kind domain.VerifyKind, id string) domain.VerificationResult
}
