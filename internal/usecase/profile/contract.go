package profile

import (
	"context"

	"github.com/talentcloud/matchdex/internal/domain"
	repo "github.com/talentcloud/matchdex/internal/repository/profile"
)

// Store is the persistence surface the profile service needs (ISP).
type Store interface {
	Upsert(ctx context.Context, rec domain.ProfileRecord, vec []float32, lowConfidence bool) (bool, error)
	Get(ctx context.Context, id string) (repo.Stored, error)
	Delete(ctx context.Context, id string) error
	All(ctx context.Context, fn func(repo.Stored) error) error
	Count(ctx context.Context) (candidates, jobs int, err error)
}

// Invalidator bumps the match-result cache generation after corpus changes.
type Invalidator interface {
	Bump(ctx context.Context)
}
