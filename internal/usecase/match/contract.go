package match

import (
	"context"

	"github.com/talentcloud/matchdex/internal/domain"
	repo "github.com/talentcloud/matchdex/internal/repository/profile"
)

// Store is the persistence surface the ranking coordinator needs (ISP).
type Store interface {
	Get(ctx context.Context, id string) (repo.Stored, error)
	GetMulti(ctx context.Context, ids []string) (map[string]repo.Stored, error)
}

// ResultCache is the transparent ranked-result cache. A nil-safe no-op
// implementation disables caching without changing any result.
type ResultCache interface {
	Get(ctx context.Context, key string) ([]domain.MatchResult, bool)
	Put(ctx context.Context, key string, results []domain.MatchResult)
	Generation(ctx context.Context) int64
}
