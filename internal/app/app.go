// Package app assembles the payment-proof stack from configuration. Both the
// daemon and the batch CLI build on it.
package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/devkiraa/makeTicket-sub003/internal/common"
	"github.com/devkiraa/makeTicket-sub003/internal/events"
	"github.com/devkiraa/makeTicket-sub003/internal/export"
	"github.com/devkiraa/makeTicket-sub003/internal/lock"
	"github.com/devkiraa/makeTicket-sub003/internal/metrics"
	"github.com/devkiraa/makeTicket-sub003/internal/ocr"
	"github.com/devkiraa/makeTicket-sub003/internal/repository"
	"github.com/devkiraa/makeTicket-sub003/internal/review"
)

const defaultSQLiteDSN = "file:payverify.db"

// App holds the wired services and the resources they own.
type App struct {
	Config     *common.Config
	Repo       repository.SubmissionRepository
	Reviews    *review.Service
	Export     *export.Service
	Metrics    *metrics.Metrics
	Recognizer ocr.Recognizer

	pool      *pgxpool.Pool
	redis     *redis.Client
	publisher events.Publisher
	logger    *slog.Logger
}

// Option adjusts an App before the review service is built.
type Option func(*options)

type options struct {
	recognizer ocr.Recognizer
}

// WithRecognizer replaces the tesseract extractor.
func WithRecognizer(r ocr.Recognizer) Option {
	return func(o *options) { o.recognizer = r }
}

// New connects storage, the optional lock and event backends, and builds the
// review and export services. Call Close when done.
func New(ctx context.Context, cfg *common.Config, logger *slog.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{Config: cfg, Metrics: metrics.New(), logger: logger}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	if err := a.openRepository(ctx); err != nil {
		return nil, err
	}

	var refLock lock.ReferenceLock = lock.Nop{}
	if cfg.Redis.Addr != "" {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := a.redis.Ping(ctx).Err(); err != nil {
			// submissions still work unlocked; the lock reports its own errors
			logger.Warn("app.redis.unavailable", "addr", cfg.Redis.Addr, "error", err)
		}
		refLock = lock.NewRedisReferenceLock(a.redis, cfg.Redis.LockTTL, logger)
	}

	a.publisher = events.Nop{}
	if len(cfg.Kafka.Brokers) > 0 {
		a.publisher = events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
		logger.Info("app.kafka.enabled", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	}

	a.Recognizer = o.recognizer
	if a.Recognizer == nil {
		a.Recognizer = NewRecognizer(cfg.OCR, logger)
	}

	a.Reviews = review.NewService(a.Recognizer, a.Repo, review.DirStore{Dir: cfg.Uploads.Dir},
		review.WithReferenceLock(refLock),
		review.WithPublisher(a.publisher),
		review.WithMetrics(a.Metrics),
		review.WithMaxBytes(cfg.Uploads.MaxBytes),
		review.WithLogger(logger),
	)
	a.Export = export.NewService(a.Reviews, logger)

	ok = true
	return a, nil
}

// NewRecognizer builds the tesseract extractor with the configured timeout
// and rate limit.
func NewRecognizer(cfg common.OCRConfig, logger *slog.Logger) ocr.Recognizer {
	var rec ocr.Recognizer = ocr.NewExtractor(ocr.Config{
		Tesseract:           cfg.Tesseract,
		TesseractLang:       cfg.Lang,
		TessdataDir:         cfg.TessdataDir,
		EnableTSVConfidence: cfg.TSVConfidence,
		PSM:                 cfg.PSM,
		OEM:                 cfg.OEM,
	}, logger)
	rec = ocr.Timeout(rec, cfg.Timeout)
	if cfg.RatePerSecond > 0 {
		burst := max(cfg.Burst, 1)
		rec = ocr.RateLimited(rec, rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst))
	}
	return rec
}

func (a *App) openRepository(ctx context.Context) error {
	db := a.Config.Database
	switch db.Driver {
	case "sqlite":
		dsn := db.DSN
		if dsn == "" {
			dsn = defaultSQLiteDSN
		}
		repo, err := repository.NewSQLiteSubmissionRepository(ctx, dsn, a.logger)
		if err != nil {
			return eris.Wrap(err, "app: open sqlite")
		}
		a.Repo = repo
		a.logger.Info("app.repository", "driver", "sqlite", "dsn", dsn)
		return nil
	case "postgres":
		pool, err := repository.Open(ctx, repository.Config{
			DSN:              db.DSN,
			MaxConns:         db.MaxConns,
			MinConns:         db.MinConns,
			MaxConnLifetime:  db.MaxConnLifetime,
			MaxConnIdleTime:  db.MaxConnIdleTime,
			DialTimeout:      db.DialTimeout,
			StatementTimeout: db.StatementTimeout,
		}, a.logger)
		if err != nil {
			return err
		}
		a.pool = pool
		if err := repository.HealthCheck(ctx, pool, 5*time.Second, a.logger); err != nil {
			return err
		}
		if err := repository.MigratePostgres(ctx, pool); err != nil {
			return eris.Wrap(err, "app: migrate")
		}
		a.Repo = repository.NewPostgresSubmissionRepository(pool, a.logger)
		a.logger.Info("app.repository", "driver", "postgres")
		return nil
	}
	return common.NewAppError("CONFIG_ERROR", "unknown database driver "+db.Driver, common.ErrInvalidInput)
}

// Health reports whether the database answers.
func (a *App) Health(ctx context.Context) error {
	if a.pool != nil {
		return repository.HealthCheck(ctx, a.pool, 0, a.logger)
	}
	if a.Repo == nil {
		return errors.New("repository not open")
	}
	_, err := a.Repo.CountPending(ctx)
	return err
}

// Close releases everything New opened. Safe to call on a partial App.
func (a *App) Close() {
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.Warn("app.publisher.close_failed", "error", err)
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("app.redis.close_failed", "error", err)
		}
	}
	if a.Repo != nil {
		if err := a.Repo.Close(); err != nil {
			a.logger.Warn("app.repository.close_failed", "error", err)
		}
	}
	if a.pool != nil {
		repository.Close(a.pool, a.logger)
	}
}
