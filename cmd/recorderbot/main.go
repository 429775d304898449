package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	classifierimpl "github.com/UKPLab/aacl2022-TexPrax/external/classifier"
	configloader "github.com/UKPLab/aacl2022-TexPrax/external/config"
	"github.com/UKPLab/aacl2022-TexPrax/external/discord"
	"github.com/UKPLab/aacl2022-TexPrax/external/httpserver"
	ledgerimpl "github.com/UKPLab/aacl2022-TexPrax/external/ledger"
	"github.com/UKPLab/aacl2022-TexPrax/external/matrix"
	repositoryimpl "github.com/UKPLab/aacl2022-TexPrax/external/repository"
	trackingimpl "github.com/UKPLab/aacl2022-TexPrax/external/tracking"
	"github.com/UKPLab/aacl2022-TexPrax/internal/bot"
	"github.com/UKPLab/aacl2022-TexPrax/internal/chat"
	"github.com/UKPLab/aacl2022-TexPrax/internal/config"
	"github.com/UKPLab/aacl2022-TexPrax/internal/ledger"
	"github.com/UKPLab/aacl2022-TexPrax/internal/repository"
	"github.com/samber/do/v2"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const gatewayConnectTimeout = 20 * time.Second

var rootCmd = &cobra.Command{
	Use:          "recorderbot",
	Short:        "Chat bot that records problems, causes and solutions to the teamboard",
	SilenceUsage: true,
	RunE:         runBot,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema and exit",
	RunE:  runMigrate,
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the teamboard tasks filed by the bot account to a CSV file",
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringP("output", "o", "outputfile.csv", "CSV file to write")
	rootCmd.AddCommand(migrateCmd, exportCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	slog.Info("startup: loading configuration")
	cfg, err := configloader.Load()
	if err != nil {
		slog.Error("config validation failed", "error", err)
		return nil, err
	}
	initLogger(cfg)
	slog.Info("startup: configuration loaded", "env", cfg.Env, "gateway", cfg.ChatGateway, "database", cfg.DatabaseType)
	return cfg, nil
}

func initLogger(cfg *config.Config) {
	logLevel := slog.LevelInfo
	if cfg.IsDevelopment() {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))
}

func setupDI(cfg *config.Config) do.Injector {
	injector := do.New()

	do.ProvideValue(injector, cfg)
	repositoryimpl.RegisterDI(injector)
	ledgerimpl.RegisterDI(injector)
	switch cfg.ChatGateway {
	case config.GatewayDiscord:
		discord.RegisterDI(injector)
	default:
		matrix.RegisterDI(injector)
	}
	classifierimpl.RegisterDI(injector)
	trackingimpl.RegisterDI(injector)
	bot.RegisterDI(injector)

	return injector
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	repo, err := repositoryimpl.Open(cmd.Context(), cfg)
	if err != nil {
		slog.Error("migration failed", "error", err)
		return err
	}
	repo.Close()
	slog.Info("migration completed")
	return nil
}

func runExport(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	path, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		slog.Error("failed to create export file", "path", path, "error", err)
		return err
	}

	client := trackingimpl.NewTeamboardClient(cfg.TrackingBaseURL, cfg.TrackingUsername, cfg.TrackingPassword, cfg.TrackingGroup)
	if err := client.ExportCreatedTasks(cmd.Context(), f); err != nil {
		f.Close()
		slog.Error("export failed", "error", err)
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	slog.Info("export completed", "path", path)
	return nil
}

func runBot(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	slog.Info("startup: building dependency graph")
	injector := setupDI(cfg)

	repo, err := do.Invoke[repository.Repository](injector)
	if err != nil {
		slog.Error("failed to open repository", "error", err)
		return err
	}
	defer repo.Close()

	l, err := do.Invoke[ledger.Ledger](injector)
	if err != nil {
		slog.Error("failed to resolve action ledger", "error", err)
		return err
	}
	if closer, ok := l.(interface{ Close() error }); ok {
		defer func() {
			if err := closer.Close(); err != nil {
				slog.Error("ledger close failed", "error", err)
			}
		}()
	}

	gw, err := do.Invoke[chat.Gateway](injector)
	if err != nil {
		slog.Error("failed to resolve chat gateway", "error", err)
		return err
	}
	b, err := do.Invoke[*bot.Bot](injector)
	if err != nil {
		slog.Error("failed to resolve bot", "error", err)
		return err
	}
	loop, err := do.Invoke[*bot.Loop](injector)
	if err != nil {
		slog.Error("failed to resolve event loop", "error", err)
		return err
	}

	// Handlers must be registered before Connect so no early event is lost.
	loop.Attach(gw)

	connectCtx, cancel := context.WithTimeout(cmd.Context(), gatewayConnectTimeout)
	defer cancel()
	slog.Info("startup: connecting to chat gateway", "gateway", cfg.ChatGateway)
	if err := gw.Connect(connectCtx); err != nil {
		slog.Error("gateway connect failed", "error", err)
		return err
	}
	defer func() {
		if err := gw.Close(); err != nil {
			slog.Error("gateway close failed", "error", err)
		}
	}()
	b.SetBotUserID(gw.BotUserID())
	slog.Info("startup: gateway connected", "bot_user_id", gw.BotUserID())

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("startup: entering event loop")
		return loop.Run(ctx)
	})
	g.Go(func() error {
		slog.Info("startup: entering gateway run loop")
		return gw.Run(ctx)
	})
	if cfg.HTTPAddr != "" {
		srv := httpserver.NewServer(cfg.HTTPAddr, repo)
		g.Go(func() error {
			return srv.Run(ctx)
		})
	}

	err = g.Wait()
	slog.Info("shutting down")
	if err != nil && ctx.Err() == nil {
		slog.Error("bot stopped unexpectedly", "error", err)
		return err
	}
	return nil
}
