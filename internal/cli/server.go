package cli

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"

	"vocab-quiz-service/internal/app"
	"vocab-quiz-service/internal/config"
	"vocab-quiz-service/internal/domain"
	"vocab-quiz-service/internal/infra/excel"
	"vocab-quiz-service/internal/infra/memory"
	"vocab-quiz-service/internal/infra/postgres"
	infraredis "vocab-quiz-service/internal/infra/redis"
	"vocab-quiz-service/internal/infra/sqlite"
	"vocab-quiz-service/internal/scheduler"
	transport "vocab-quiz-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

// backends holds the optional storage connections; nil fields are not configured.
type backends struct {
	redis  *redis.Client
	pool   *pgxpool.Pool
	bun    *bun.DB
	sqlite *sqlx.DB
}

func (b backends) Close() {
	if b.redis != nil {
		_ = b.redis.Close()
	}
	if b.pool != nil {
		b.pool.Close()
	}
	if b.bun != nil {
		_ = b.bun.Close()
	}
	if b.sqlite != nil {
		_ = b.sqlite.Close()
	}
}

func connect(ctx context.Context, cfg config.Config, log logrus.FieldLogger) (backends, error) {
	var b backends
	if cfg.Redis.Addr != "" {
		b.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
			return b, err
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return b, err
		}
		b.pool = pool
		b.bun = postgres.OpenBun(cfg.Postgres.URL)
	}
	if cfg.SQLite.Path != "" {
		db, err := sqlite.Open(ctx, cfg.SQLite.Path)
		if err != nil {
			b.Close()
			return b, err
		}
		b.sqlite = db
	}
	return b, nil
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger, err := config.NewLogger(cfg)
	if err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	weekStart, err := cfg.FirstWeekday()
	if err != nil {
		return err
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	b, err := connect(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer b.Close()

	profile := domain.Profile{UserID: cfg.User.ID, Username: cfg.User.Username, DisplayName: cfg.User.DisplayName}
	writeTimeout := config.TTLDuration(cfg.Persist.WriteTimeout, 5*time.Second)
	notifications := transport.NewNotifications()

	vocab, err := vocabularyRepository(cfg, b, logger)
	if err != nil {
		return err
	}

	var progressStore app.ProgressStore = memory.NewProgressStore()
	switch {
	case b.redis != nil:
		progressStore = infraredis.NewProgressStore(b.redis, profile.UserID, config.TTLDuration(cfg.Redis.TTL, 0))
	case b.sqlite != nil:
		progressStore = sqlite.NewProgressStore(b.sqlite, profile.UserID)
	}

	var ledgerStore app.LedgerStore = memory.NewLedgerStore()
	var streakStore app.StreakStore = memory.NewStreakStore()
	switch {
	case b.bun != nil:
		ledgerStore = postgres.NewLedgerStore(b.bun)
		streakStore = postgres.NewStreakStore(b.bun)
	case b.sqlite != nil:
		ledgerStore = sqlite.NewLedgerStore(b.sqlite)
		streakStore = sqlite.NewStreakStore(b.sqlite)
	}

	var publisher app.LeaderboardPublisher = memory.NewLeaderboard()
	var sink app.ResultSink = memory.NewResultSink()
	var board transport.LeaderboardReader
	if b.redis != nil {
		redisBoard := infraredis.NewLeaderboard(b.redis)
		publisher, board = redisBoard, redisBoard
		sink = infraredis.NewResultSink(b.redis, profile.UserID, cfg.Results.Limit)
	}

	ledger := app.NewScoreLedger(ledgerStore, profile.UserID, logger, app.LedgerOptions{
		Location:     loc,
		WeekStart:    weekStart,
		WriteTimeout: writeTimeout,
	})
	if err := ledger.Load(ctx); err != nil {
		return err
	}
	streak := app.NewStreakEngine(streakStore, profile, logger, app.StreakOptions{
		BaseTarget:   cfg.Streak.BaseTarget,
		Increment:    cfg.Streak.Increment,
		Location:     loc,
		WriteTimeout: writeTimeout,
		Publisher:    publisher,
		Notifier:     notifications,
	})
	if err := streak.Load(ctx); err != nil {
		return err
	}

	service := app.NewLearningService(app.Dependencies{
		Vocabulary: vocab,
		Progress:   app.NewProgressTracker(progressStore, logger, writeTimeout),
		Ledger:     ledger,
		Streak:     streak,
		Sink:       sink,
		Log:        logger,
	})
	defer service.Close()

	rollover := scheduler.New(streak, loc, logger)
	if err := rollover.Start(); err != nil {
		return err
	}
	defer rollover.Stop()

	wsHandler := transport.NewWSHandler(service, notifications, cfg.LimitToFifteen(), logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "ok")
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	transport.NewRESTHandler(service, board, logger).Register(mux)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		logger.WithField("port", finalPort).Info("starting vocabulary quiz service")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("failed to start server")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Info("shutting down server...")
	case <-ctx.Done():
		logger.Info("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// vocabularyRepository picks the vocabulary source: Postgres, then the configured
// workbook, then a small built-in sample; Redis caches it when available.
func vocabularyRepository(cfg config.Config, b backends, log logrus.FieldLogger) (app.VocabularyRepository, error) {
	var loader memory.VocabularyLoader
	switch {
	case b.pool != nil:
		loader = postgres.NewVocabularyLoader(b.pool)
	case cfg.Vocabulary.File != "" && fileExists(cfg.Vocabulary.File):
		importCfg := excel.DefaultImportConfig()
		importCfg.FilePath = cfg.Vocabulary.File
		importCfg.SheetName = cfg.Vocabulary.Sheet
		workbook, result, err := excel.NewWorkbookLoader(importCfg)
		if err != nil {
			return nil, err
		}
		log.WithFields(logrus.Fields{"file": cfg.Vocabulary.File, "topics": len(result.Topics), "skipped": result.Skipped}).
			Info("vocabulary workbook loaded")
		loader = workbook
	default:
		log.Warn("no vocabulary source configured, serving the built-in sample")
		loader = memory.NewStaticVocabularyLoader(sampleVocabulary())
	}

	ttl := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	if b.redis != nil {
		return infraredis.NewVocabularyRepository(b.redis, loader, ttl), nil
	}
	return memory.NewVocabularyRepository(loader, ttl), nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// sampleVocabulary provides a minimal topic; swap in a workbook or Postgres in production.
func sampleVocabulary() map[domain.TopicKey][]domain.VocabularyItem {
	return map[domain.TopicKey][]domain.VocabularyItem{
		{Level: "HSK1", Chapter: "1", Topic: "greetings"}: {
			{Index: 1, Word: "你好", Pinyin: "nǐ hǎo", EnglishDefinition: "hello", QuestionTemplateA: "Which word means \"hello\"?"},
			{Index: 2, Word: "谢谢", Pinyin: "xiè xie", EnglishDefinition: "thank you", QuestionTemplateA: "Which word means \"thank you\"?"},
			{Index: 3, Word: "再见", Pinyin: "zài jiàn", EnglishDefinition: "goodbye", QuestionTemplateA: "Which word means \"goodbye\"?"},
			{Index: 4, Word: "对不起", Pinyin: "duì bu qǐ", EnglishDefinition: "sorry", QuestionTemplateA: "Which word means \"sorry\"?"},
			{Index: 5, Word: "没关系", Pinyin: "méi guān xi", EnglishDefinition: "it doesn't matter", QuestionTemplateA: "Which word means \"it doesn't matter\"?"},
		},
	}
}
