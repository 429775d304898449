package repository

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/UKPLab/aacl2022-TexPrax/internal/config"
	"github.com/UKPLab/aacl2022-TexPrax/internal/repository"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/do/v2"
)

const databaseInitTimeout = 15 * time.Second

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (repository.Repository, error) {
		cfg := do.MustInvoke[*config.Config](i)
		ctx, cancel := context.WithTimeout(context.Background(), databaseInitTimeout)
		defer cancel()
		return Open(ctx, cfg)
	})
}

// Open connects the configured store and applies the schema.
func Open(ctx context.Context, cfg *config.Config) (repository.Repository, error) {
	if cfg.DatabaseType == config.DatabasePostgres {
		return openPostgres(ctx, cfg.DatabaseURL)
	}
	return openSQLite(ctx, cfg.DatabaseURL)
}

func openPostgres(ctx context.Context, url string) (repository.Repository, error) {
	p, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}
	if err := p.Ping(ctx); err != nil {
		p.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if err := RunMigration(ctx, p); err != nil {
		p.Close()
		return nil, fmt.Errorf("failed to run migration: %w", err)
	}
	return NewPostgresRepository(p), nil
}

func openSQLite(ctx context.Context, path string) (repository.Repository, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := OpenSQLite(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := RunSQLiteMigration(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migration: %w", err)
	}
	return NewSQLiteRepository(db), nil
}
