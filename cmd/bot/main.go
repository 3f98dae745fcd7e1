package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/Baughn/emul/internal/bot"
	"github.com/Baughn/emul/internal/config"
	"github.com/Baughn/emul/internal/history"
	"github.com/Baughn/emul/internal/interject"
	"github.com/Baughn/emul/internal/irc"
	"github.com/Baughn/emul/internal/llm"
	"github.com/Baughn/emul/internal/metrics"
	"github.com/Baughn/emul/internal/roster"
	"github.com/Baughn/emul/internal/scheduler"
	"github.com/Baughn/emul/internal/storage"
	"github.com/Baughn/emul/internal/store"
	"github.com/Baughn/emul/internal/tools"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("warning: .env file not found: %v", err)
	}
	cfg := config.New()

	logger := newLogger(cfg.Debug)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		logger.Fatal("failed to open database", zap.String("path", cfg.DBPath), zap.Error(err))
	}
	defer st.Close()

	if cfg.InitialAdmin != "" {
		added, err := st.EnsureInitialAdmin(ctx, cfg.InitialAdmin)
		if err != nil {
			logger.Fatal("failed to seed initial admin", zap.Error(err))
		}
		if added {
			logger.Info("seeded initial admin", zap.String("nick", cfg.InitialAdmin))
		}
	}

	rosterSvc, err := roster.New(ctx, st)
	if err != nil {
		logger.Fatal("failed to load roster", zap.Error(err))
	}

	hist := history.NewManager(cfg.HistoryLines, st)

	model := cfg.GeminiModel
	if cfg.LLMProvider == config.ProviderOpenAI {
		model = cfg.OpenAIModel
	}
	llmClient, err := llm.NewFactory(cfg).CreateClient(ctx, string(cfg.LLMProvider), model)
	if err != nil {
		logger.Fatal("failed to create llm client", zap.Error(err))
	}
	logger.Info("llm client ready",
		zap.String("provider", string(cfg.LLMProvider)), zap.String("model", model))

	httpClient := &http.Client{Timeout: 15 * time.Second}

	registry := tools.NewRegistry(cfg.ToolTimeout)
	registry.Register(tools.NewDice())
	var starter tools.Starter = &tools.LogStarter{Log: logger.Named("download")}
	if cfg.DownloadHookURL != "" {
		starter = &tools.WebhookStarter{URL: cfg.DownloadHookURL, Client: httpClient}
	}
	registry.Register(tools.NewDownload(httpClient, starter))
	registry.Register(tools.NewImage(httpClient))

	var rec storage.Recorder
	if cfg.AuditLogPath != "" {
		fr, err := storage.NewFileRecorder(cfg.AuditLogPath)
		if err != nil {
			logger.Warn("audit log disabled", zap.String("path", cfg.AuditLogPath), zap.Error(err))
		} else {
			rec = fr
		}
	}

	conn := irc.New(irc.Options{
		Server:           cfg.IRCServer,
		Port:             cfg.IRCPort,
		Nick:             cfg.IRCNick,
		UseTLS:           cfg.IRCUseTLS,
		NickservPassword: cfg.NickservPassword,
		Autojoin:         rosterSvc.Channels,
		Log:              logger.Named("irc"),
	})

	engine := bot.New(bot.Options{
		Conn:    conn,
		Roster:  rosterSvc,
		History: hist,
		LLM:     llmClient,
		Tools:   registry,
		Interjecter: interject.New(interject.Options{
			Step:   interject.StepForMeanGap(cfg.InterjectMeanGap),
			MinGap: cfg.InterjectMinGap,
		}),
		MentionGate: interject.New(interject.Options{
			Step:   interject.StepForMeanGap(cfg.MentionMeanGap),
			MinGap: cfg.MentionMinGap,
		}),
		Recorder:      rec,
		Log:           logger.Named("bot"),
		PromptPath:    cfg.SystemPromptPath,
		HistoryTurns:  cfg.HistoryLines,
		MaxToolRounds: cfg.MaxToolRounds,
		LLMTimeout:    cfg.LLMTimeout,
	})
	conn.Attach(engine)

	if cfg.RetentionDays > 0 {
		sched := scheduler.New(cfg.RetentionSpec, logger.Named("scheduler"))
		retention := time.Duration(cfg.RetentionDays) * 24 * time.Hour
		sched.SetMaintenanceFunc(func(ctx context.Context) error {
			n, err := st.PruneMessagesBefore(ctx, time.Now().Add(-retention))
			if err != nil {
				return err
			}
			logger.Info("pruned archived messages", zap.Int64("rows", n))
			return nil
		})
		if err := sched.Start(); err != nil {
			logger.Fatal("failed to start retention schedule", zap.Error(err))
		}
		defer sched.Stop()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return conn.Run(gctx) })
	if cfg.MetricsAddr != "" {
		g.Go(func() error { return metrics.Serve(gctx, cfg.MetricsAddr) })
	}

	logger.Info("emul is up", zap.String("nick", cfg.IRCNick), zap.String("server", cfg.IRCServer))
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("exiting on error", zap.Error(err))
	}
	engine.Shutdown()
	logger.Info("shut down cleanly")
}

func newLogger(debug bool) *zap.Logger {
	zcfg := zap.NewProductionConfig()
	if debug {
		zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		zcfg.Development = true
	}
	logger, err := zcfg.Build()
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	return logger
}
