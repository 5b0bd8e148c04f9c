// Package profile persists structured profile records and their embedding
// vectors as redis hashes, one hash per profile.
package profile

import (
	"context"
	"fmt"
	"strings"

	"github.com/talentcloud/matchdex/internal/domain"
)

var keyPrefix = domain.KeyPrefix + "profile:"

// store is the consumer interface for profile persistence (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Del(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// Stored pairs a record with its persisted embedding vector.
type Stored struct {
	Record        domain.ProfileRecord
	Vector        []float32
	LowConfidence bool
}

// Repo stores profile records and vectors.
type Repo struct {
	store store
}

// New creates a profile repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// Upsert writes the record and vector. Returns true when the profile did not
// exist before.
func (r *Repo) Upsert(ctx context.Context, rec domain.ProfileRecord, vec []float32, lowConfidence bool) (bool, error) {
	key := keyPrefix + rec.ID

	existed, err := r.store.Exists(ctx, key)
	if err != nil {
		return false, fmt.Errorf("check profile %s: %w", rec.ID, err)
	}

	fields, err := toFields(rec, vec, lowConfidence)
	if err != nil {
		return false, fmt.Errorf("encode profile %s: %w", rec.ID, err)
	}
	if err := r.store.HSet(ctx, key, fields); err != nil {
		return false, fmt.Errorf("store profile %s: %w", rec.ID, err)
	}
	return !existed, nil
}

// Get returns one stored profile.
func (r *Repo) Get(ctx context.Context, id string) (Stored, error) {
	fields, err := r.store.HGetAll(ctx, keyPrefix+id)
	if err != nil {
		return Stored{}, fmt.Errorf("load profile %s: %w", id, err)
	}
	if len(fields) == 0 {
		return Stored{}, fmt.Errorf("profile %s: %w", id, domain.ErrProfileNotFound)
	}

	rec, vec, err := fromFields(fields)
	if err != nil {
		return Stored{}, fmt.Errorf("decode profile %s: %w", id, err)
	}
	return Stored{Record: rec, Vector: vec, LowConfidence: fields[fieldLowConfidence] == "1"}, nil
}

// GetMulti bulk-loads profiles. Missing ids are silently omitted from the
// result: a match query tolerates candidates deleted mid-flight.
func (r *Repo) GetMulti(ctx context.Context, ids []string) (map[string]Stored, error) {
	if len(ids) == 0 {
		return map[string]Stored{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = keyPrefix + id
	}

	all, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("bulk load profiles: %w", err)
	}

	out := make(map[string]Stored, len(ids))
	for i, fields := range all {
		if len(fields) == 0 {
			continue
		}
		rec, vec, err := fromFields(fields)
		if err != nil {
			return nil, fmt.Errorf("decode profile %s: %w", ids[i], err)
		}
		out[ids[i]] = Stored{Record: rec, Vector: vec, LowConfidence: fields[fieldLowConfidence] == "1"}
	}
	return out, nil
}

// Delete removes a profile. Deleting an absent profile is a no-op.
func (r *Repo) Delete(ctx context.Context, id string) error {
	if err := r.store.Del(ctx, keyPrefix+id); err != nil {
		return fmt.Errorf("delete profile %s: %w", id, err)
	}
	return nil
}

// All streams every stored profile through fn, used to warm the index at
// startup and for full reindexing.
func (r *Repo) All(ctx context.Context, fn func(Stored) error) error {
	keys, err := r.store.Scan(ctx, keyPrefix+"*")
	if err != nil {
		return fmt.Errorf("scan profiles: %w", err)
	}

	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("profile scan canceled: %w", err)
		}

		fields, err := r.store.HGetAll(ctx, key)
		if err != nil {
			return fmt.Errorf("load %s: %w", key, err)
		}
		if len(fields) == 0 {
			// Deleted between SCAN and HGETALL.
			continue
		}
		rec, vec, err := fromFields(fields)
		if err != nil {
			return fmt.Errorf("decode %s: %w", key, err)
		}
		if err := fn(Stored{Record: rec, Vector: vec, LowConfidence: fields[fieldLowConfidence] == "1"}); err != nil {
			return err
		}
	}
	return nil
}

// Count returns per-kind profile counts.
func (r *Repo) Count(ctx context.Context) (candidates, jobs int, err error) {
	keys, err := r.store.Scan(ctx, keyPrefix+"*")
	if err != nil {
		return 0, 0, fmt.Errorf("scan profiles: %w", err)
	}
	for _, key := range keys {
		fields, err := r.store.HGetAll(ctx, key)
		if err != nil {
			return 0, 0, fmt.Errorf("load %s: %w", key, err)
		}
		switch domain.Kind(fields[fieldKind]) {
		case domain.KindCandidate:
			candidates++
		case domain.KindJob:
			jobs++
		}
	}
	return candidates, jobs, nil
}

// IDFromKey strips the storage prefix from a scanned key.
func IDFromKey(key string) string {
	return strings.TrimPrefix(key, keyPrefix)
}
