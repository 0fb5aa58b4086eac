// Package profile fetches player-chosen profile metadata (currently just a
// profile picture URL) by wallet address, per spec.md §4.5. Results are
// cached with a TTL; the backing store is a Postgres table reached through
// pgx, matching the SUPABASE_URL/SUPABASE_SERVICE_ROLE_KEY wiring the
// platform's Supabase project exposes.
package profile

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	gocache "github.com/patrickmn/go-cache"
)

// Profile is the subset of player metadata the combat room needs to
// populate a joining player's display fields.
type Profile struct {
	Address        string
	ProfilePicture string
}

const defaultTTL = 2 * time.Minute

// Store is the minimal persistence surface the Profile Service needs.
type Store interface {
	FetchProfile(ctx context.Context, address string) (Profile, bool, error)
}

// Service is the Profile Service: a cached key/value profile fetch.
type Service struct {
	store Store
	cache *gocache.Cache
}

// New returns a Service backed by store. A nil store makes every lookup a
// cache-only no-op that returns not-found, matching an unconfigured
// deployment (no SUPABASE_URL set).
func New(store Store, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Service{store: store, cache: gocache.New(ttl, ttl*2)}
}

// Fetch resolves a profile for address, using the cache when fresh.
// Callers are expected to bound ctx with a short timeout (spec.md §4.5
// mandates 1,200ms for the combat room's join-time lookup); a timeout or
// any other error simply means the join proceeds with defaults.
func (s *Service) Fetch(ctx context.Context, address string) (Profile, bool) {
	if v, ok := s.cache.Get(address); ok {
		p := v.(Profile)
		return p, true
	}
	if s.store == nil {
		return Profile{}, false
	}
	p, found, err := s.store.FetchProfile(ctx, address)
	if err != nil || !found {
		return Profile{}, false
	}
	s.cache.SetDefault(address, p)
	return p, true
}

// PgxStore implements Store against a Postgres `player_profiles` table via
// pgx's connection pool.
type PgxStore struct {
	pool *pgxpool.Pool
}

// NewPgxStore wraps an already-connected pool.
func NewPgxStore(pool *pgxpool.Pool) *PgxStore {
	return &PgxStore{pool: pool}
}

func (s *PgxStore) FetchProfile(ctx context.Context, address string) (Profile, bool, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT address, profile_picture FROM player_profiles WHERE address = $1`, address)

	var p Profile
	if err := row.Scan(&p.Address, &p.ProfilePicture); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Profile{}, false, nil
		}
		return Profile{}, false, err
	}
	return p, true, nil
}
