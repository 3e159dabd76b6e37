package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/memohai/tgmirror/internal/archive"
	"github.com/memohai/tgmirror/internal/channel"
	"github.com/memohai/tgmirror/internal/channel/adapters/discord"
	"github.com/memohai/tgmirror/internal/channel/adapters/telegram"
	"github.com/memohai/tgmirror/internal/channel/route"
	"github.com/memohai/tgmirror/internal/config"
	"github.com/memohai/tgmirror/internal/handlers"
	"github.com/memohai/tgmirror/internal/healthcheck"
	channelchecker "github.com/memohai/tgmirror/internal/healthcheck/checkers/channel"
	journalchecker "github.com/memohai/tgmirror/internal/healthcheck/checkers/journal"
	routeschecker "github.com/memohai/tgmirror/internal/healthcheck/checkers/routes"
	"github.com/memohai/tgmirror/internal/journal"
	amqpjournal "github.com/memohai/tgmirror/internal/journal/amqp"
	pgjournal "github.com/memohai/tgmirror/internal/journal/postgres"
	sqlitejournal "github.com/memohai/tgmirror/internal/journal/sqlite"
	"github.com/memohai/tgmirror/internal/logger"
	"github.com/memohai/tgmirror/internal/media"
	"github.com/memohai/tgmirror/internal/server"
	"github.com/memohai/tgmirror/internal/storage/providers/localfs"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the mirror and the admin API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	app := fx.New(
		fx.Provide(
			provideConfig,
			provideLogger,
			provideMimeResolver,
			provideClassifier,
			route.NewTable,
			provideRouteSource,
			route.NewReloader,
			provideTelegramAdapter,
			provideDiscordSender,
			provideFetchScheduler,
			provideArchiver,
			provideJournal,
			provideDispatchCoordinator,
			provideChannelManager,
			provideStatusReporter,
			provideServerHandler(handlers.NewPingHandler),
			provideServerHandler(handlers.NewAuthHandler),
			provideServerHandler(provideRoutesHandler),
			provideServerHandler(provideStatusHandler),
			provideServerHandler(handlers.NewJournalHandler),
			provideServer,
		),
		fx.Invoke(
			startRouteReloader,
			startChannelManager,
			startServer,
		),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
		}),
	)
	if err := app.Err(); err != nil {
		return err
	}
	app.Run()
	return nil
}

func provideServerHandler(fn any) any {
	return fx.Annotate(
		fn,
		fx.As(new(server.Handler)),
		fx.ResultTags(`group:"server_handlers"`),
	)
}

func provideConfig() (config.Config, error) {
	return loadConfig()
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func provideMimeResolver(cfg config.Config) *media.MimeResolver {
	return media.NewMimeResolver(media.WithRegistryFallback(!cfg.Mirror.StrictMime))
}

func provideClassifier(mimes *media.MimeResolver) *channel.Classifier {
	return channel.NewClassifier(mimes)
}

func provideRouteSource(cfg config.Config) route.Source {
	if path := strings.TrimSpace(cfg.Routes.File); path != "" {
		return route.FileSource{Path: path}
	}
	return route.StaticSource(cfg.Routes.Channels)
}

func provideTelegramAdapter(log *slog.Logger, cfg config.Config) *telegram.Adapter {
	return telegram.NewAdapter(log, telegramConfig(cfg))
}

func telegramConfig(cfg config.Config) telegram.Config {
	return telegram.Config{
		BotToken:       cfg.Telegram.BotToken,
		APIEndpoint:    cfg.Telegram.APIEndpoint,
		FileEndpoint:   cfg.Telegram.FileEndpoint,
		PollTimeout:    cfg.Telegram.PollTimeout,
		RenderEntities: cfg.Telegram.RenderEntities,
		MaxBytes:       cfg.Mirror.MaxAttachmentBytes,
	}
}

func provideDiscordSender(log *slog.Logger, cfg config.Config) (*discord.Sender, error) {
	return discord.NewSender(log, discord.Config{
		RequestTimeout: cfg.Discord.Timeout(),
		RatePerMinute:  cfg.Discord.RatePerMinute,
	})
}

func provideFetchScheduler(log *slog.Logger, cfg config.Config, adapter *telegram.Adapter) *channel.FetchScheduler {
	return channel.NewFetchScheduler(log, adapter,
		channel.WithFetchConcurrency(cfg.Mirror.FetchConcurrency),
		channel.WithFetchTimeout(cfg.Mirror.FetchTimeoutDuration()),
	)
}

func provideArchiver(log *slog.Logger, cfg config.Config) (*archive.Archiver, error) {
	if !cfg.Archive.Enabled {
		return nil, nil
	}
	provider, err := localfs.New(cfg.Archive.Root)
	if err != nil {
		return nil, fmt.Errorf("init archive provider: %w", err)
	}
	return archive.New(log, provider), nil
}

func provideJournal(lc fx.Lifecycle, log *slog.Logger, cfg config.Config) (journal.Journal, error) {
	j, err := openJournal(log, cfg.Journal)
	if err != nil {
		return nil, fmt.Errorf("journal %s: %w", cfg.Journal.Driver, err)
	}
	lc.Append(fx.Hook{OnStop: func(ctx context.Context) error { return j.Close() }})
	return j, nil
}

func openJournal(log *slog.Logger, cfg config.JournalConfig) (journal.Journal, error) {
	switch cfg.Driver {
	case "postgres":
		return pgjournal.Open(context.Background(), log, cfg.Postgres.DSN())
	case "sqlite":
		return sqlitejournal.Open(log, cfg.SQLite.Path)
	case "amqp":
		return amqpjournal.Dial(log, amqpjournal.Config{
			URL:        cfg.AMQP.URL,
			Exchange:   cfg.AMQP.Exchange,
			RoutingKey: cfg.AMQP.RoutingKey,
		})
	default:
		return journal.Noop{}, nil
	}
}

func provideDispatchCoordinator(log *slog.Logger, cfg config.Config, table *route.Table, sender *discord.Sender, archiver *archive.Archiver, j journal.Journal) *channel.DispatchCoordinator {
	opts := []channel.DispatchOption{
		channel.WithDefaultIdentity(cfg.Mirror.DefaultUsername, cfg.Mirror.DefaultAvatarURL),
	}
	if archiver != nil {
		opts = append(opts, channel.WithArchiver(archiver))
	}
	if _, noop := j.(journal.Noop); !noop {
		opts = append(opts, channel.WithReportSink(journal.NewSink(log, j)))
	}
	return channel.NewDispatchCoordinator(log, table, sender, opts...)
}

func provideChannelManager(log *slog.Logger, cfg config.Config, table *route.Table, classifier *channel.Classifier, scheduler *channel.FetchScheduler, coordinator *channel.DispatchCoordinator, adapter *telegram.Adapter) *channel.Manager {
	mgr := channel.NewManager(log, table, classifier, scheduler, coordinator,
		channel.WithWorkers(cfg.Mirror.Workers, cfg.Mirror.QueueSize),
	)
	mgr.AddReceiver(adapter)
	return mgr
}

func provideStatusReporter(log *slog.Logger, cfg config.Config, mgr *channel.Manager, table *route.Table, j journal.Journal) *healthcheck.Aggregator {
	var pinger journalchecker.Pinger
	if p, ok := j.(journalchecker.Pinger); ok {
		pinger = p
	}
	return healthcheck.NewAggregator(
		channelchecker.NewChecker(log, mgr),
		routeschecker.NewChecker(table),
		journalchecker.NewChecker(log, cfg.Journal.Driver, pinger),
	)
}

func provideRoutesHandler(log *slog.Logger, table *route.Table, reloader *route.Reloader) *handlers.RoutesHandler {
	return handlers.NewRoutesHandler(log, table, reloader)
}

func provideStatusHandler(log *slog.Logger, reporter *healthcheck.Aggregator) *handlers.StatusHandler {
	return handlers.NewStatusHandler(log, reporter)
}

type serverParams struct {
	fx.In
	Logger         *slog.Logger
	Config         config.Config
	ServerHandlers []server.Handler `group:"server_handlers"`
}

func provideServer(params serverParams) *server.Server {
	return server.NewServer(params.Logger, params.Config.Server.Addr, params.Config.Auth.JWTSecret, params.ServerHandlers...)
}

func startRouteReloader(lc fx.Lifecycle, cfg config.Config, reloader *route.Reloader) {
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(startCtx context.Context) error {
			if _, err := reloader.Reload(startCtx); err != nil {
				return fmt.Errorf("initial routes: %w", err)
			}
			return reloader.Start(ctx, cfg.Routes.ReloadSchedule)
		},
		OnStop: func(stopCtx context.Context) error { cancel(); return reloader.Stop(stopCtx) },
	})
}

func startChannelManager(lc fx.Lifecycle, channelManager *channel.Manager) {
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error { channelManager.Start(ctx); return nil },
		OnStop:  func(stopCtx context.Context) error { cancel(); return channelManager.Shutdown(stopCtx) },
	})
}

func startServer(lc fx.Lifecycle, logger *slog.Logger, cfg config.Config, srv *server.Server, shutdowner fx.Shutdowner) {
	if !cfg.Server.Enabled {
		logger.Info("admin api disabled by config")
		return
	}
	if !cfg.AdminEnabled() {
		logger.Warn("auth.jwt_secret is empty; only /ping and /health are served")
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Stop(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server stop: %w", err)
			}
			return nil
		},
	})
}
