package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yoockh/yoocv/config"
	"github.com/yoockh/yoocv/internal/cache"
	"github.com/yoockh/yoocv/internal/changes"
	"github.com/yoockh/yoocv/internal/extractor"
	"github.com/yoockh/yoocv/internal/jobsearch"
	"github.com/yoockh/yoocv/internal/observability"
	"github.com/yoockh/yoocv/internal/progress"
	"github.com/yoockh/yoocv/internal/providers/llm"
	mongorepo "github.com/yoockh/yoocv/internal/repositories/mongo"
	pgrepo "github.com/yoockh/yoocv/internal/repositories/postgres"
	"github.com/yoockh/yoocv/internal/scoring"
	"github.com/yoockh/yoocv/internal/services"
	"github.com/yoockh/yoocv/internal/storage"
	"github.com/yoockh/yoocv/internal/tailoring"
	"github.com/yoockh/yoocv/internal/textextract"
	"github.com/yoockh/yoocv/internal/workers"
)

// application holds the wired components shared by the serve and worker commands.
type application struct {
	cfg config.Config
	log *logrus.Logger

	broadcaster *progress.Broadcaster
	relay       *progress.RedisRelay
	docs        services.DocumentService
	jobs        services.JobService
	pipeline    services.PipelineService
	pool        *workers.PipelineWorkerPool

	closers []func() error
}

func (a *application) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.WithError(err).Warn("close failed")
		}
	}
}

func connect(cfg config.Config, log *logrus.Logger) error {
	if err := config.InitMongo(cfg); err != nil {
		return fmt.Errorf("mongodb init: %w", err)
	}
	log.Info("MongoDB connected")

	if err := config.InitPostgres(cfg); err != nil {
		return fmt.Errorf("postgres init: %w", err)
	}
	log.Info("PostgreSQL connected")

	if err := config.InitRedis(cfg); err != nil {
		return fmt.Errorf("redis init: %w", err)
	}
	log.Info("Redis connected")
	return nil
}

func newBlobStore(ctx context.Context, cfg config.Config) (storage.BlobStore, func() error, error) {
	switch strings.ToLower(cfg.StorageBackend) {
	case "minio":
		s, err := storage.NewMinIOStore(ctx, storage.MinIOConfig{
			Endpoint:  cfg.MinIOEndpoint,
			AccessKey: cfg.MinIOAccessKey,
			SecretKey: cfg.MinIOSecretKey,
			Bucket:    cfg.MinIOBucket,
			Location:  cfg.MinIOLocation,
			UseSSL:    cfg.MinIOUseSSL,
		})
		return s, func() error { return nil }, err
	default:
		s, err := storage.NewGCSStore(ctx, cfg.GCSBucket)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	}
}

func newLLM(ctx context.Context, cfg config.Config, log *logrus.Logger) (llm.Provider, error) {
	var (
		p   llm.Provider
		err error
	)
	switch strings.ToLower(cfg.LLMProvider) {
	case "gemini":
		p, err = llm.NewGeminiAPI(ctx, cfg.GeminiAPIKey, cfg.LLMModel)
	default:
		p, err = llm.NewVertexGemini(ctx, cfg.GCPProjectID, cfg.GCPLocation, cfg.LLMModel)
	}
	if err != nil {
		return nil, err
	}
	return llm.WithRetry(p, llm.RetryPolicy{
		MaxElapsed: 90 * time.Second,
		Initial:    time.Second,
		Max:        15 * time.Second,
	}, log), nil
}

func newTextExtractor(ctx context.Context, cfg config.Config, log *logrus.Logger) textextract.Extractor {
	chain := &textextract.Chain{}
	if cfg.TikaURL != "" {
		chain.Tika = textextract.NewTika(cfg.TikaURL, cfg.TikaTimeout)
	}
	pdf, err := textextract.NewEinoPDF(ctx)
	if err != nil {
		log.WithError(err).Warn("local pdf parser unavailable, using tika only")
	} else {
		chain.PDF = pdf
	}
	return chain
}

func build(ctx context.Context, cfg config.Config, log *logrus.Logger) (*application, error) {
	observability.InitMetrics()

	if err := connect(cfg, log); err != nil {
		return nil, err
	}
	a := &application{cfg: cfg, log: log}
	a.closers = append(a.closers,
		func() error { return config.MongoClient.Disconnect(context.Background()) },
		config.RedisClient.Close,
	)
	if sqlDB, err := config.PostgresDB.DB(); err == nil {
		a.closers = append(a.closers, sqlDB.Close)
	}

	blobs, closeBlobs, err := newBlobStore(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("blob store: %w", err)
	}
	a.closers = append(a.closers, closeBlobs)

	provider, err := newLLM(ctx, cfg, log)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("llm provider: %w", err)
	}
	a.closers = append(a.closers, provider.Close)

	rdb := config.RedisClient
	docRepo := mongorepo.NewDocumentRepo(config.MongoDatabase(cfg))
	jobRepo := pgrepo.NewJobRepo(config.PostgresDB)

	a.broadcaster = progress.NewBroadcaster(32, log)
	a.relay = progress.NewRedisRelay(rdb, a.broadcaster, log)

	status := services.NewStatusService(docRepo, a.relay, log)
	engine := changes.NewEngine(log)
	queue := workers.NewRedisQueue(rdb, cfg.TaskStream)

	a.docs = services.NewDocumentService(services.DocumentDeps{
		Docs:           docRepo,
		Jobs:           jobRepo,
		Status:         status,
		Blobs:          blobs,
		Queue:          queue,
		Engine:         engine,
		Log:            log,
		MaxUploadBytes: cfg.MaxUploadBytes(),
		SignedURLTTL:   cfg.SignedURLTTL,
	})

	var source jobsearch.Source
	if cfg.JobSearchAPIKey != "" {
		source = jobsearch.NewHTTPSource(cfg.JobSearchURL, cfg.JobSearchAPIKey, cfg.JobSearchAPIHost, cfg.JobSearchTimeout)
	} else {
		log.Warn("JOB_SEARCH_API_KEY not set, job search disabled")
	}
	finder := jobsearch.NewFinder(source, cache.NewRedisCache(rdb, app+":cache:"), log)
	a.jobs = services.NewJobService(jobRepo, finder, log)

	a.pipeline = services.NewPipelineService(services.PipelineDeps{
		Docs:      docRepo,
		Jobs:      jobRepo,
		Status:    status,
		Blobs:     blobs,
		Text:      newTextExtractor(ctx, cfg, log),
		Extractor: extractor.New(provider, log),
		Analyzer:  scoring.NewAnalyzer(provider, log),
		Planner:   tailoring.NewPlanner(provider, log),
		Engine:    engine,
		Log:       log,
	})

	a.pool = &workers.PipelineWorkerPool{
		Redis:       rdb,
		Pipeline:    a.pipeline,
		Lease:       cache.NewRedisLease(rdb, app+":lease:"),
		NumWorkers:  cfg.WorkerCount,
		Logger:      log,
		Stream:      cfg.TaskStream,
		TaskTimeout: cfg.TaskTimeout,
	}
	return a, nil
}

func (a *application) startWorkers(ctx context.Context) error {
	if a.cfg.WorkerCount == 0 {
		return errors.New("WORKER_COUNT is 0")
	}
	return a.pool.Start(ctx)
}
