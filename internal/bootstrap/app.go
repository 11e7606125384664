package bootstrap

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"policychat/internal/ai"
	"policychat/internal/analytics"
	appsvc "policychat/internal/app"
	"policychat/internal/chunk"
	"policychat/internal/config"
	"policychat/internal/embedding"
	"policychat/internal/extract"
	"policychat/internal/memory"
	"policychat/internal/model"
	"policychat/internal/pkg/logger"
	mysqlClient "policychat/internal/platform/mysql"
	rabbitmqClient "policychat/internal/platform/rabbitmq"
	redisClient "policychat/internal/platform/redis"
	"policychat/internal/repository"
	"policychat/internal/worker"
)

type App struct {
	Config       *config.Config
	MySQL        *gorm.DB
	Redis        *redis.Client
	MQConn       *amqp.Connection
	Embedder     embedding.Provider
	Memory       *memory.Store
	Analytics    *analytics.Sink
	Publisher    *rabbitmqClient.JobPublisher
	IngestWorker *worker.IngestWorker

	StartedAt time.Time
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}
	logger.Init(cfg.App.LogLevel, cfg.App.Env)

	mysqlDB, err := mysqlClient.New(ctx, cfg.MySQLDSN())
	if err != nil {
		return nil, err
	}
	if err := mysqlDB.AutoMigrate(&model.Document{}, &model.Segment{}, &model.SearchQuery{}); err != nil {
		return nil, fmt.Errorf("auto migrate tables failed: %w", err)
	}

	redisCli, err := redisClient.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, err
	}

	mqConn, err := rabbitmqClient.New(ctx, cfg.RabbitMQ.URL)
	if err != nil {
		return nil, err
	}

	embedder, err := embedding.NewFactory().Get(cfg.Embedding)
	if err != nil {
		return nil, fmt.Errorf("build embedding provider failed: %w", err)
	}

	docRepo := repository.NewDocumentRepository(mysqlDB)
	segRepo := repository.NewSegmentRepository(mysqlDB)
	ingestService := appsvc.NewIngestService(
		docRepo,
		segRepo,
		extract.NewCascade(),
		embedder,
		chunk.Options{
			ChunkSize:       cfg.Ingest.ChunkSize,
			ChunkOverlap:    cfg.Ingest.ChunkOverlap,
			MinChunkSize:    cfg.Ingest.MinChunkSize,
			SentencePrepass: cfg.Ingest.SentencePrepass,
		},
	)

	ingestWorker := worker.NewIngestWorker(mqConn, ingestService, cfg.RabbitMQ.ProcessQueue)
	if err := ingestWorker.Start(ctx); err != nil {
		return nil, fmt.Errorf("start ingest worker failed: %w", err)
	}

	return &App{
		Config:       cfg,
		MySQL:        mysqlDB,
		Redis:        redisCli,
		MQConn:       mqConn,
		Embedder:     embedder,
		Memory:       buildMemory(cfg),
		Analytics:    analytics.NewSink(redisCli, time.Duration(cfg.Redis.AnalyticsTTLSeconds)*time.Second, cfg.Redis.AnalyticsMaxRecords),
		Publisher:    rabbitmqClient.NewJobPublisher(mqConn, cfg.RabbitMQ.ProcessQueue),
		IngestWorker: ingestWorker,
		StartedAt:    time.Now(),
	}, nil
}

func buildMemory(cfg *config.Config) *memory.Store {
	if !cfg.Memory.Enabled {
		return nil
	}
	memCfg := memory.Config{
		RecentWindow:          cfg.Memory.RecentWindow,
		MaxSessions:           cfg.Memory.MaxSessions,
		MaxMessagesPerSession: cfg.Memory.MaxMessagesPerSession,
		SessionTTL:            time.Duration(cfg.Memory.SessionTTLMinutes) * time.Minute,
	}
	if cfg.Memory.LLMSummarizer {
		memCfg.Summarizer = appsvc.NewLLMSummarizer(ai.NewClient(), ai.ChatConfig{
			BaseURL: cfg.LLM.BaseURL,
			APIKey:  cfg.LLM.APIKey,
			Model:   cfg.LLM.Model,
		})
	}
	return memory.NewStore(memCfg)
}

func (a *App) Close() error {
	var closeErr error
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = err
		}
	}
	if a.IngestWorker != nil {
		a.IngestWorker.Close()
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil {
			closeErr = err
		}
	}
	if a.MySQL != nil {
		sqlDB, err := a.MySQL.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				closeErr = err
			}
		}
	}
	return closeErr
}
