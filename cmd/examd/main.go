package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	api "github.com/mind-engage/placement-exam/internal/api/http"
	"github.com/mind-engage/placement-exam/internal/config"
	"github.com/mind-engage/placement-exam/internal/db"
	"github.com/mind-engage/placement-exam/internal/exam"
	"github.com/mind-engage/placement-exam/internal/logging"
	"github.com/mind-engage/placement-exam/internal/metrics"
	"github.com/mind-engage/placement-exam/internal/records"
	"github.com/mind-engage/placement-exam/internal/storage"
	syncx "github.com/mind-engage/placement-exam/internal/sync"
	"github.com/mind-engage/placement-exam/internal/telemetry"
)

func main() {
	configDir := flag.String("config", ".", "directory holding config.yaml")
	importFile := flag.String("import-questions", "", "replace the question bank with this JSON file and exit")
	flag.Parse()

	cfg, err := config.Load(*configDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "invalid config:", err)
		os.Exit(1)
	}

	log, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log, *importFile); err != nil {
		os.Exit(fatal(log, err))
	}
}

// fatal logs err and flushes buffered output before the caller exits;
// os.Exit skips deferred calls.
func fatal(log *zap.Logger, err error) int {
	log.Error("examd stopped", zap.Error(err))
	_ = log.Sync()
	return 1
}

func run(cfg *config.Config, log *zap.Logger, importFile string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Init(ctx, cfg.Tracing, "examd")
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(sctx)
	}()

	be, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer be.close()
	store, events := be.store, be.events

	if cfg.Events.AMQPURL != "" {
		amqp, err := syncx.NewAMQPSink(cfg.Events.AMQPURL, cfg.Events.Exchange)
		if err != nil {
			return err
		}
		defer amqp.Close()
		events = syncx.Fanout{events, amqp}
	}

	blobs, err := openBlobs(ctx, cfg)
	if err != nil {
		return err
	}

	m := metrics.New()
	svc := exam.NewService(store,
		exam.WithLogger(log),
		exam.WithBlobStore(blobs),
		exam.WithEvents(events),
		exam.WithMetrics(m),
		exam.WithExamLimit(cfg.Exam.QuestionsPerSection),
		exam.WithExpectedTotal(cfg.Exam.ExpectedTotal),
		exam.WithLocks(be.locks),
	)

	if importFile != "" {
		return importQuestions(ctx, svc, importFile, log)
	}

	router := api.NewRouter(api.RouterOptions{
		Service:        svc,
		Metrics:        m,
		CORSOrigins:    cfg.CORSOrigins(),
		RatePerMinute:  cfg.RateLimit.RequestsPerMinute,
		RateBurst:      cfg.RateLimit.Burst,
		MaxUploadBytes: cfg.Upload.MaxBytes,
		AccessLog:      true,
		Events:         be.feed,
		Ready: func(ctx context.Context) error {
			_, err := store.LoadAll(ctx, records.KindQuestion)
			return err
		},
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		log.Info("listening",
			zap.String("addr", cfg.HTTPAddr),
			zap.String("mode", string(cfg.Mode)),
			zap.String("store", cfg.Store.Driver),
			zap.String("blob", cfg.Blob.Driver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	log.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(sctx)
}

type backend struct {
	store  records.Store
	events exam.EventSink
	locks  *records.Locks
	feed   api.EventFeed
	close  func()
}

func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (*backend, error) {
	if cfg.Store.Driver == "file" {
		fs, err := records.NewFileStore(cfg.Store.DataDir)
		if err != nil {
			return nil, fmt.Errorf("file store: %w", err)
		}
		return &backend{
			store:  fs,
			events: syncx.LogSink{Log: log.Named("events")},
			locks:  records.NewLocks(),
			close:  func() {},
		}, nil
	}

	driver, err := db.ParseDriver(cfg.Store.Driver)
	if err != nil {
		return nil, err
	}
	octx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	dbh, err := db.Open(octx, driver, cfg.Store.DSN)
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}

	// Several instances may share one postgres database.
	locks := records.NewLocks()
	if driver == db.DriverPostgres {
		locks = records.NewLocks(records.WithFence(records.NewAdvisoryFence(dbh)))
	}
	repo := syncx.NewEventRepo(dbh, cfg.SiteID)
	return &backend{
		store:  records.NewSQLStore(dbh),
		events: repo,
		locks:  locks,
		feed:   repo,
		close:  func() { _ = dbh.Close() },
	}, nil
}

func openBlobs(ctx context.Context, cfg *config.Config) (storage.BlobStore, error) {
	switch cfg.Blob.Driver {
	case "minio":
		return storage.NewMinioStore(ctx, storage.MinioConfig{
			Endpoint:  cfg.Blob.MinioEndpoint,
			AccessKey: cfg.Blob.MinioAccessKey,
			SecretKey: cfg.Blob.MinioSecretKey,
			Bucket:    cfg.Blob.MinioBucket,
			UseSSL:    cfg.Blob.MinioUseSSL,
		})
	default:
		return storage.NewFSStore(cfg.Blob.BasePath)
	}
}

func importQuestions(ctx context.Context, svc *exam.Service, path string, log *zap.Logger) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var qs []exam.Question
	if err := json.Unmarshal(b, &qs); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if err := svc.ImportQuestions(ctx, qs); err != nil {
		return err
	}
	log.Info("imported questions", zap.String("file", path), zap.Int("count", len(qs)))
	return nil
}
