package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gorm.io/gorm"

	"github.com/SAP-F-2025/exam-service/internal/cache"
	"github.com/SAP-F-2025/exam-service/internal/config"
	"github.com/SAP-F-2025/exam-service/internal/events"
	"github.com/SAP-F-2025/exam-service/internal/repositories"
	"github.com/SAP-F-2025/exam-service/internal/repositories/postgres"
	"github.com/SAP-F-2025/exam-service/internal/scheduler"
	"github.com/SAP-F-2025/exam-service/internal/services"
	"github.com/SAP-F-2025/exam-service/internal/utils"
	"github.com/SAP-F-2025/exam-service/pkg"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "exam-service",
		Short:        "Exam scoring and ranking service",
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.String("log-level", "", "Log level (debug, info, warn, error)")
	pf.String("log-format", "", "Log format (text, json)")
	pf.String("database-url", "", "PostgreSQL connection URL")
	pf.String("redis-url", "", "Redis connection URL")

	serve := serveCmd()
	root.AddCommand(
		serve,
		workerCmd(),
		migrateCmd(),
		reconcileCmd(),
		concludeCmd(),
		resultsCmd(),
		simulateCmd(),
	)
	root.RunE = serve.RunE
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())
	_ = v.BindPFlags(cmd.InheritedFlags())

	v.SetEnvPrefix("EXAM_SERVICE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("exam-service")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/exam-service")
	v.AddConfigPath("/etc/exam-service")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	}

	return v
}

// loadConfig layers flags, EXAM_SERVICE_* variables and the optional config
// file over the plain environment read by config.LoadConfig.
func loadConfig(cmd *cobra.Command) (*config.Config, *viper.Viper, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	v := viperForCmd(cmd)
	override := func(key string, dst *string) {
		if s := v.GetString(key); s != "" {
			*dst = s
		}
	}
	override("log-level", &cfg.LogLevel)
	override("log-format", &cfg.LogFormat)
	override("database-url", &cfg.DatabaseURL)
	override("redis-url", &cfg.RedisURL)
	override("port", &cfg.Port)
	if v.IsSet("batch-size") {
		cfg.ConclusionBatchSize = config.ClampBatchSize(v.GetInt("batch-size"))
	}

	return cfg, v, nil
}

// app holds the wired dependencies shared by every subcommand.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	db        *gorm.DB
	redis     *redis.Client
	repo      repositories.Repository
	publisher events.EventPublisher
	queue     *scheduler.Queue
	jobs      *scheduler.RedisScheduler
	services  services.ServiceManager
}

func newApp(ctx context.Context, cmd *cobra.Command) (*app, error) {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger := utils.NewLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	db, err := pkg.InitDatabase(cfg)
	if err != nil {
		return nil, err
	}

	redisClient, err := pkg.NewRedisClient(ctx, cfg)
	if err != nil {
		_ = pkg.CloseDatabase(db)
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger, db: db, redis: redisClient}

	store := postgres.NewRepository(db)
	papers := cache.NewCachedPaperRepository(
		store.Paper(),
		cache.NewRedisCache(redisClient, "exam-service:cache:", logger),
		cfg.PaperCacheTTL,
		logger,
	)
	a.repo = repositories.WithPapers(store, papers)

	a.publisher, err = cfg.Events.CreateEventPublisher(logger)
	if err != nil {
		logger.Error("Failed to create event publisher, falling back to mock", "error", err)
		a.publisher = events.NewMockEventPublisher(logger)
	}

	jobPub, jobSub, err := cfg.Events.CreateJobTransport(logger)
	if err != nil {
		a.close()
		return nil, err
	}
	a.queue, err = scheduler.NewQueue(jobPub, jobSub, cfg.Events.JobsTopic, logger)
	if err != nil {
		a.close()
		return nil, err
	}
	a.jobs = scheduler.NewRedisScheduler(redisClient, a.queue, scheduler.RedisSchedulerConfig{
		PollInterval: cfg.SchedulerPollInterval,
	}, logger)

	a.services = services.NewServiceManager(services.Dependencies{
		Repo:      a.repo,
		Publisher: a.publisher,
		Jobs:      a.jobs,
		Locker:    scheduler.NewExamLock(redisClient, "exam-service:lock:conclude:", cfg.ExamLockTTL),
		Logger:    logger,
		Conclusion: services.ConclusionConfig{
			BatchSize: cfg.ConclusionBatchSize,
			Reconcile: cfg.ConclusionReconcile,
		},
	})
	services.NewJobHandlers(a.services.Exam(), a.services.Conclusion(), logger).Register(a.queue)

	return a, nil
}

func (a *app) close() {
	if a.queue != nil {
		if err := a.queue.Close(); err != nil {
			a.logger.Warn("Failed to close job queue", "error", err)
		}
	}
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.Warn("Failed to close event publisher", "error", err)
		}
	}
	if err := a.redis.Close(); err != nil {
		a.logger.Warn("Failed to close redis client", "error", err)
	}
	if err := pkg.CloseDatabase(a.db); err != nil {
		a.logger.Warn("Failed to close database", "error", err)
	}
}
