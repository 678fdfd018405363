package repository

import (
	"context"
	"fmt"
	"github.com/adamlounds/diacates-go/config"
	"github.com/adamlounds/diacates-go/models"
	bucketstore "github.com/adamlounds/diacates-go/stores/bucket"
	sqlitestore "github.com/adamlounds/diacates-go/stores/sqlite"
	slogctx "github.com/veqryn/slog-context"
	"log/slog"
	"time"
)

// Repositories is the storage backend chosen by config.
type Repositories struct {
	Entries models.EntryRepository
	Auth    models.AuthRepository
	close   func() error
}

func (r *Repositories) Close() error {
	if r.close == nil {
		return nil
	}
	return r.close()
}

// Open connects to the configured storage. Bucket storage is loaded into
// memory before Open returns.
func Open(ctx context.Context, cfg config.StorageConfig, loc *time.Location) (*Repositories, error) {
	log := slogctx.FromCtx(ctx)

	if cfg.Backend == "sqlite" {
		store, err := sqlitestore.New(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		err = store.Ping(ctx)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		log.Info("using sqlite storage", slog.String("path", cfg.SQLitePath))
		return &Repositories{
			Entries: NewSQLiteEntryRepository(store, loc),
			Auth:    NewSQLiteAuthRepository(store),
			close:   store.Close,
		}, nil
	}

	store, err := bucketstore.New(cfg.S3Config, cfg.DataDir)
	if err != nil {
		return nil, err
	}
	repos, err := openBucket(ctx, store, loc)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	log.Info("using bucket storage",
		slog.Bool("s3", cfg.S3Config != nil),
		slog.String("dataDir", cfg.DataDir),
	)
	return repos, nil
}

// openBucket checks the bucket is reachable, then loads subjects and
// entries into memory.
func openBucket(ctx context.Context, store *bucketstore.BucketStore, loc *time.Location) (*Repositories, error) {
	err := store.Ping(ctx)
	if err != nil {
		return nil, fmt.Errorf("cannot reach bucket: %w", err)
	}

	entryRepo := NewBucketEntryRepository(store, loc)
	authRepo := NewBucketAuthRepository(store)
	err = authRepo.Boot(ctx)
	if err != nil {
		return nil, fmt.Errorf("cannot boot auth subjects: %w", err)
	}
	err = entryRepo.Boot(ctx)
	if err != nil {
		return nil, fmt.Errorf("cannot boot entries: %w", err)
	}
	return &Repositories{
		Entries: entryRepo,
		Auth:    authRepo,
		close:   store.Close,
	}, nil
}
