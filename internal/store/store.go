package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/amanullahtanweer/teamsync/internal/analysis"
	"github.com/amanullahtanweer/teamsync/internal/config"
	"github.com/amanullahtanweer/teamsync/internal/logger"
)

var (
	ErrNotFound  = errors.New("transcript not found")
	ErrInvalidID = errors.New("invalid transcript id")
)

// Store persists transcripts by ID. List returns them oldest upload first.
type Store interface {
	Save(ctx context.Context, t *analysis.Transcript) error
	Get(ctx context.Context, id string) (*analysis.Transcript, error)
	List(ctx context.Context) ([]*analysis.Transcript, error)
	Rename(ctx context.Context, id, displayName string) (*analysis.Transcript, error)
	Delete(ctx context.Context, id string) error
	Close() error
}

// New opens the backend selected by the configuration.
func New(cfg *config.Config, log *logger.Logger) (Store, error) {
	switch cfg.Storage.Backend {
	case config.BackendFile:
		return NewFileStore(cfg.Storage.Dir, log)
	case config.BackendRedis:
		r := cfg.Storage.Redis
		return NewRedisStore(RedisOptions{
			Addr:     r.Addr,
			Password: r.Password,
			DB:       r.DB,
			Prefix:   r.Prefix,
		}, log)
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.Storage.Backend)
	}
}

// IDs end up in file names and redis keys, so only a conservative
// alphabet is accepted.
func validateID(id string) error {
	if id == "" || len(id) > 128 {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return fmt.Errorf("%w: %q", ErrInvalidID, id)
		}
	}
	return nil
}
