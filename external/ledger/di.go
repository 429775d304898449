package ledger

import (
	"context"
	"log/slog"
	"time"

	"github.com/UKPLab/aacl2022-TexPrax/internal/config"
	"github.com/UKPLab/aacl2022-TexPrax/internal/ledger"
	"github.com/UKPLab/aacl2022-TexPrax/internal/repository"
	"github.com/samber/do/v2"
)

const redisInitTimeout = 10 * time.Second

// RegisterDI provides the Redis ledger when REDIS_URL is set and falls back
// to the repository's action_ledger table otherwise.
func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (ledger.Ledger, error) {
		cfg := do.MustInvoke[*config.Config](i)
		if cfg.RedisURL == "" {
			slog.Info("using repository action ledger")
			return do.MustInvoke[repository.Repository](i), nil
		}
		ctx, cancel := context.WithTimeout(context.Background(), redisInitTimeout)
		defer cancel()
		l, err := NewRedisLedger(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		slog.Info("using redis action ledger")
		return l, nil
	})
}
