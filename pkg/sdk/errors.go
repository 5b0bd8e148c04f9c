package matchdex

import (
	"errors"

	"github.com/talentcloud/matchdex/internal/domain"
)

// Sentinel errors surfaced by the client. Compare with errors.Is.
var (
	ErrProfileNotFound   = domain.ErrProfileNotFound
	ErrInvalidProfile    = domain.ErrInvalidProfile
	ErrInvalidWeights    = domain.ErrInvalidWeights
	ErrModelUnavailable  = domain.ErrModelUnavailable
	ErrVectorDimMismatch = domain.ErrVectorDimMismatch
	ErrQuotaExceeded     = domain.ErrEmbeddingQuotaExceeded
)

// IsNotFound reports whether err means the profile does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrProfileNotFound)
}
