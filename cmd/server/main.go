package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"permitflow/internal/config"
	"permitflow/internal/email/noop"
	"permitflow/internal/email/ses"
	"permitflow/internal/extraction"
	"permitflow/internal/handler"
	"permitflow/internal/logger"
	"permitflow/internal/metrics"
	"permitflow/internal/ocr"
	"permitflow/internal/ocr/pdftext"
	"permitflow/internal/ocr/pdftoppm"
	"permitflow/internal/ocr/providers"
	"permitflow/internal/port"
	"permitflow/internal/preview"
	"permitflow/internal/router"
	"permitflow/internal/service"
	"permitflow/internal/storage/memory"
	s3storage "permitflow/internal/storage/s3"
	"permitflow/internal/submission"
	"permitflow/internal/verification"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	zlog, err := logger.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer func() { _ = zlog.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// Text extraction
	providers.Register()
	engines, err := ocr.NewEngineFactory(&cfg.OCR, zlog)
	if err != nil {
		return fmt.Errorf("failed to initialize OCR providers: %w", err)
	}
	extractor := extraction.NewAdapter(engines, pdftoppm.New(cfg.Rasterizer.Binary), cfg.OCR, m, zlog).
		WithTextLayer(pdftext.New())

	// Preview staging
	probes := map[string]handler.ReadinessProbe{}
	var (
		store      port.ObjectStorage
		bucket     string
		previewH   *handler.PreviewHandler
		expirySecs = cfg.S3.PresignExpiry
	)
	switch cfg.Preview.Provider {
	case "s3":
		s3Store, s3Err := s3storage.NewStore(ctx, &cfg.S3)
		if s3Err != nil {
			return fmt.Errorf("failed to initialize S3 client: %w", s3Err)
		}
		store, bucket = s3Store, cfg.S3.Bucket
		probes["s3"] = func(ctx context.Context) error { return s3Store.Ping(ctx, cfg.S3.Bucket) }
	default:
		memStore := memory.NewStore(cfg.Preview.BaseURL)
		store, bucket = memStore, "previews"
		previewH = handler.NewPreviewHandler(memStore)
	}
	previews := preview.NewManager(store, bucket, expirySecs, zlog)

	// Acknowledgment email
	var sender port.EmailSender
	if cfg.Email.Provider == "ses" {
		sender, err = ses.NewSESSender(cfg.Email.Region, cfg.Email.FromAddress, cfg.Email.FromName, cfg.Email.PortalURL)
		if err != nil {
			return fmt.Errorf("failed to initialize SES sender: %w", err)
		}
	} else {
		sender = noop.NewNoopSender(cfg.Email.PortalURL, zlog)
	}

	verifier := verification.NewClient(cfg.Endpoints, cfg.Verification, m, zlog)
	coordinator := submission.NewCoordinator(cfg.Endpoints, cfg.Submission, m, zlog)

	maxUpload := cfg.Upload.MaxFileSizeMB << 20
	wizardSvc := service.NewWizardService(service.WizardDeps{
		Verifier:  verifier,
		Extractor: extractor,
		Submitter: coordinator,
		Previews:  previews,
		Email:     sender,
		Metrics:   m,
		Logger:    zlog,
	}, service.WizardConfig{
		Strict:            cfg.Verification.Strict,
		RedirectDelay:     cfg.Submission.RedirectDelay,
		MaxUploadBytes:    maxUpload,
		ExtractionWorkers: cfg.OCR.Concurrency,
		ExtractionTimeout: time.Duration(cfg.OCR.TimeoutSecs) * time.Second,
	})
	defer wizardSvc.Close()

	reaper := service.NewSessionReaper(wizardSvc, service.SessionReaperConfig{
		SweepInterval: cfg.Session.SweepInterval,
		IdleTTL:       cfg.Session.IdleTTL,
	}, zlog)
	reaperCtx, stopReaper := context.WithCancel(ctx)
	reaperDone := make(chan struct{})
	go func() {
		defer close(reaperDone)
		reaper.Start(reaperCtx)
	}()
	defer func() {
		stopReaper()
		<-reaperDone
	}()

	r := router.Setup(router.Handlers{
		Wizard:  handler.NewWizardHandler(wizardSvc, maxUpload, zlog),
		Form:    handler.NewFormHandler(zlog),
		Health:  handler.NewHealthHandler(probes),
		Preview: previewH,
	}, router.Options{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		Metrics:        m,
		Gatherer:       reg,
		Logger:         zlog,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		zlog.Info("server: listening", zap.String("addr", cfg.Server.Port), zap.String("preview_provider", cfg.Preview.Provider))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	zlog.Info("server: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}
