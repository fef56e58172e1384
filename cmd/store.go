package cmd

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/regprobe/internal/config"
	"github.com/xkilldash9x/regprobe/internal/recorder"
	"github.com/xkilldash9x/regprobe/internal/store"
)

// runStore is the slice of store.Store the commands use.
type runStore interface {
	EnsureSchema(ctx context.Context) error
	SaveRun(ctx context.Context, run recorder.RunRecord) error
	RecentRuns(ctx context.Context, limit int) ([]store.RunSummary, error)
}

// storeProvider creates the run history store. Tests swap it for a fake.
type storeProvider interface {
	// Create returns the store and a cleanup function releasing its resources.
	Create(ctx context.Context, cfg *config.Config, logger *zap.Logger) (runStore, func(), error)
}

type defaultStoreProvider struct{}

// Create connects to PostgreSQL and makes sure the history tables exist.
func (defaultStoreProvider) Create(ctx context.Context, cfg *config.Config, logger *zap.Logger) (runStore, func(), error) {
	if cfg.Database.URL == "" {
		return nil, nil, fmt.Errorf("database URL is not configured (REGPROBE_DATABASE_URL)")
	}
	st, pool, err := store.Connect(ctx, cfg.Database.URL, logger)
	if err != nil {
		return nil, nil, err
	}
	if err := st.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return st, pool.Close, nil
}

var stores storeProvider = defaultStoreProvider{}
