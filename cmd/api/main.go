package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/plusishibba-design/barcode-scanner-cloud/internal/application"
	appcapture "github.com/plusishibba-design/barcode-scanner-cloud/internal/application/capture"
	appproducts "github.com/plusishibba-design/barcode-scanner-cloud/internal/application/products"
	appscans "github.com/plusishibba-design/barcode-scanner-cloud/internal/application/scans"
	"github.com/plusishibba-design/barcode-scanner-cloud/internal/config"
	domcapture "github.com/plusishibba-design/barcode-scanner-cloud/internal/domain/capture"
	domproducts "github.com/plusishibba-design/barcode-scanner-cloud/internal/domain/products"
	domscans "github.com/plusishibba-design/barcode-scanner-cloud/internal/domain/scans"
	"github.com/plusishibba-design/barcode-scanner-cloud/internal/infra/ai/openai"
	"github.com/plusishibba-design/barcode-scanner-cloud/internal/infra/camera"
	"github.com/plusishibba-design/barcode-scanner-cloud/internal/infra/db"
	"github.com/plusishibba-design/barcode-scanner-cloud/internal/infra/events"
	"github.com/plusishibba-design/barcode-scanner-cloud/internal/infra/httpserver"
	minioStore "github.com/plusishibba-design/barcode-scanner-cloud/internal/infra/storage"
	"github.com/plusishibba-design/barcode-scanner-cloud/internal/metrics"
	"github.com/plusishibba-design/barcode-scanner-cloud/internal/middleware"
)

func main() {
	// path config.yaml
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	ctx := context.Background()

	stores, err := db.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("database init error: %v", err)
	}
	defer stores.Close()
	log.Printf("database ready driver=%s", cfg.Database.Driver)

	// raw CSV archive (optional)
	var archive domproducts.Archive
	if cfg.MinioEnabled() {
		store, err := minioStore.New(ctx,
			cfg.Minio.Endpoint,
			cfg.Minio.Region,
			cfg.Minio.BucketName,
			cfg.Minio.AccessKey,
			cfg.Minio.SecretKey,
			cfg.Minio.UseSSL,
		)
		if err != nil {
			log.Fatalf("minio init error: %v", err)
		}
		archive = store
	}

	// scan events (optional)
	var publisher domscans.EventPublisher = events.NoopPublisher{}
	if cfg.PubSubEnabled() {
		p, err := events.NewPubSubPublisher(ctx, cfg.PubSub.ProjectID, cfg.PubSub.Topic)
		if err != nil {
			log.Fatalf("pubsub init error: %v", err)
		}
		defer p.Close()
		publisher = p
	}

	// OCR (optional)
	var recognizer domcapture.Recognizer
	if cfg.OpenAI.APIKey != "" {
		recognizer = openai.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.Model)
	}

	productsSvc := appproducts.NewService(stores.Products, stores.ImportErrors, archive)
	productsSvc.ChunkSize = cfg.Import.ChunkSize
	productsSvc.ChunkDelay = cfg.Import.ChunkDelay

	scansSvc := &appscans.Service{
		Repo:   stores.Scans,
		Lookup: productsSvc,
		Events: publisher,
		Clock:  application.SystemClock{},
	}

	captureOpts := appcapture.Options{
		DedupWindow: cfg.Capture.DedupWindow,
		OCRInterval: cfg.Capture.OCRInterval,
		QueueSize:   cfg.Capture.QueueSize,
		Recognizer:  recognizer,
	}
	if len(cfg.Capture.CameraCommand) > 0 {
		command, contentType := cfg.Capture.CameraCommand, cfg.Capture.CameraContentType
		captureOpts.Camera = func(ctx context.Context) (domcapture.FrameSource, error) {
			src, err := camera.NewCommandSource(command, contentType)
			if err != nil {
				return nil, err
			}
			return src, nil
		}
		log.Printf("capture uses server camera command=%q", command[0])
	}
	sessions := appcapture.NewManager(scansSvc, captureOpts, cfg.Capture.SessionIdleTimeout)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.Register(reg)

	limiter := middleware.NewRateLimiter(cfg.Server.RateLimit.Capacity, cfg.Server.RateLimit.RefillPerSecond)
	defer limiter.Stop()

	health := map[string]middleware.HealthChecker{}
	if stores.DB != nil {
		health["database"] = &middleware.DatabaseHealthChecker{DB: stores.DB}
	}
	readiness := middleware.NewReadiness()

	handler := httpserver.NewRouter(scansSvc, productsSvc, sessions, httpserver.Options{
		CORSOrigins: cfg.Server.CORSOrigins,
		APIKeys:     cfg.Server.APIKeys,
		RateLimiter: limiter,
		Health:      health,
		Readiness:   readiness,
		Gatherer:    reg,
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // CSV imports run inside the request
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("server listening on %s ocr=%t archive=%t events=%t",
			addr, recognizer != nil, archive != nil, cfg.PubSubEnabled())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Println("shutting down server...")
	readiness.SetReady(false)

	ctx2, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		log.Printf("shutdown error: %v", err)
	}
	sessions.Close()
	log.Printf("capture sessions closed")
	scansSvc.Wait()
}
