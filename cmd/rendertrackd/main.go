// rendertrackd is the render-job status reconciliation daemon. It
// serves the client poll API and the backend callback endpoint, with an
// optional Prometheus metrics listener on a separate port.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"

	"github.com/vidforge/rendertrack/pkg/api"
	"github.com/vidforge/rendertrack/pkg/artifacts"
	"github.com/vidforge/rendertrack/pkg/backend"
	"github.com/vidforge/rendertrack/pkg/config"
	"github.com/vidforge/rendertrack/pkg/logging"
	"github.com/vidforge/rendertrack/pkg/metrics"
	"github.com/vidforge/rendertrack/pkg/progress"
	"github.com/vidforge/rendertrack/pkg/reconcile"
	"github.com/vidforge/rendertrack/pkg/retry"
	"github.com/vidforge/rendertrack/pkg/shutdown"
	"github.com/vidforge/rendertrack/pkg/store"
	"github.com/vidforge/rendertrack/pkg/trigger"
)

func main() {
	cfgFile := flag.String("config", "", "config file path (YAML)")
	flag.Parse()

	cfg, err := config.Load(*cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logging.New(cfg.LogLevel, cfg.LogFormat == "json")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Infow("starting rendertrackd",
		"listen_addr", cfg.ListenAddr,
		"store_driver", cfg.StoreDriver,
		"metrics_enabled", cfg.MetricsEnabled)

	// Store
	baseStore, err := store.NewStore(store.Config{Driver: cfg.StoreDriver, Path: cfg.StorePath})
	if err != nil {
		log.Fatalw("failed to create store", "error", err)
	}
	dataStore := store.WithRetry(baseStore, retry.DefaultConfig())

	// Backend clients
	var clients []backend.Client
	if cfg.Serverless.Enabled && cfg.Serverless.BaseURL != "" {
		clients = append(clients, backend.NewServerlessClient(cfg.Serverless.BaseURL, cfg.Serverless.APIKey))
	}
	if cfg.GPU.Enabled && cfg.GPU.BaseURL != "" {
		clients = append(clients, backend.NewGPUClient(cfg.GPU.BaseURL, cfg.GPU.APIKey))
	}
	if cfg.Local.Enabled && cfg.Local.BaseURL != "" {
		clients = append(clients, backend.NewLocalClient(cfg.Local.BaseURL))
	}
	if len(clients) == 0 {
		log.Warn("no backend clients configured, polls will answer from stored state only")
	}

	// Completion trigger collaborators
	var publish trigger.PublishTrigger
	if cfg.Triggers.PublishBaseURL != "" {
		publish = trigger.NewHTTPPublishTrigger(cfg.Triggers.PublishBaseURL)
	}
	var stages trigger.StageAdvancer
	if cfg.Triggers.StageBaseURL != "" {
		stages = trigger.NewHTTPStageAdvancer(cfg.Triggers.StageBaseURL)
	}
	dispatcher := trigger.NewDispatcher(publish, stages, log)

	// Artifact URL resolution
	var resolver artifacts.Resolver = artifacts.PassthroughResolver{}
	if cfg.Artifacts.Endpoint != "" {
		minioResolver, err := artifacts.NewMinioResolver(artifacts.MinioConfig{
			Endpoint:  cfg.Artifacts.Endpoint,
			AccessKey: cfg.Artifacts.AccessKeyID,
			SecretKey: cfg.Artifacts.SecretAccessKey,
			UseSSL:    cfg.Artifacts.UseSSL,
			Expiry:    cfg.Artifacts.PresignExpiry,
		})
		if err != nil {
			log.Fatalw("failed to create artifact resolver", "error", err)
		}
		resolver = minioResolver
		log.Infow("artifact presigning enabled", "endpoint", cfg.Artifacts.Endpoint)
	}

	// Callback identities
	identities, err := config.LoadIdentities(cfg.IdentitiesFile)
	if err != nil {
		log.Fatalw("failed to load callback identities", "error", err)
	}
	if identities.Empty() {
		log.Warn("no callback identities configured, all callbacks will be rejected")
	}

	reconciler := reconcile.New(dataStore, backend.NewResolver(clients...),
		progress.NewEstimator(), dispatcher, resolver, identities, log)

	// LIFO order: the store closes after both servers have drained
	mgr := shutdown.New(30*time.Second, log)
	mgr.Register(shutdown.CloseResource(dataStore, "store"))

	// Metrics server on its own listener
	if cfg.MetricsEnabled {
		exporter := metrics.NewExporter(dataStore)
		reconciler.SetMetricsRecorder(exporter)

		metricsRouter := mux.NewRouter()
		metricsRouter.Handle("/metrics", exporter).Methods("GET")
		metricsSrv := &http.Server{
			Addr:         cfg.MetricsAddr,
			Handler:      metricsRouter,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		}
		go func() {
			log.Infow("metrics server listening", "addr", cfg.MetricsAddr)
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Errorw("metrics server error", "error", err)
			}
		}()
		mgr.Register(shutdown.StopHTTPServer(metricsSrv, "metrics"))
	}

	// API server
	handler := api.NewHandler(reconciler, dataStore, log)
	router := mux.NewRouter()
	if cfg.APIKey != "" {
		router.Use(api.APIKeyMiddleware(cfg.APIKey))
	} else {
		log.Warn("no API key configured, client endpoints are unauthenticated")
	}
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	go func() {
		log.Infow("API server listening", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("API server error", "error", err)
		}
	}()
	mgr.Register(shutdown.StopHTTPServer(srv, "api"))

	mgr.Wait()
	// Let in-flight completion dispatches land before tearing down
	dispatcher.Wait()
	mgr.Shutdown()
}
