package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/spf13/cobra"

	"github.com/formbot-io/formbot/analyzer"
	"github.com/formbot-io/formbot/broadcast"
	"github.com/formbot-io/formbot/browser"
	"github.com/formbot-io/formbot/cmd/backend/handlers"
	"github.com/formbot-io/formbot/database"
	"github.com/formbot-io/formbot/display"
	"github.com/formbot-io/formbot/editing"
	"github.com/formbot-io/formbot/execution"
	"github.com/formbot-io/formbot/executor"
	"github.com/formbot-io/formbot/formfield"
	"github.com/formbot-io/formbot/formstep"
	"github.com/formbot-io/formbot/logger"
	"github.com/formbot-io/formbot/secrets"
	"github.com/formbot-io/formbot/storage"
	"github.com/formbot-io/formbot/task"
)

var configFile string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE:  runServer,
}

func init() {
	serveCmd.Flags().StringVarP(&configFile, "config", "c", "", "config file path")
	rootCmd.AddCommand(serveCmd)
}

func runServer(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	// Load configuration
	cfg, err := LoadConfig(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize logger
	log := logger.NewLogrusLogger(cfg.Log.Level)
	log.Info(ctx, "starting server", map[string]interface{}{
		"version": Version,
		"commit":  Commit,
		"date":    BuildDate,
	})

	// Connect to database
	dbCfg := database.Config{
		Host:         cfg.Database.Host,
		Port:         cfg.Database.Port,
		User:         cfg.Database.User,
		Password:     cfg.Database.Password,
		Database:     cfg.Database.Database,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
	}

	db, err := database.Connect(dbCfg)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	defer sqlDB.Close()

	log.Info(ctx, "database connected", map[string]interface{}{
		"host":     cfg.Database.Host,
		"port":     cfg.Database.Port,
		"database": cfg.Database.Database,
	})

	// Initialize stores
	taskStore := task.NewMySQLStore(db, log)
	stepStore := formstep.NewMySQLStore(db, log)
	fieldStore := formfield.NewMySQLStore(db, log)
	executionStore := execution.NewMySQLStore(db, log)

	// Blob storage for end-of-run screenshots
	blobStorage, err := storage.NewBlobStorage(storage.Config{
		Type:          cfg.Storage.Type,
		BaseDir:       cfg.Storage.BaseDir,
		Bucket:        cfg.Storage.S3Bucket,
		Region:        cfg.Storage.S3Region,
		PresignExpiry: cfg.Storage.S3PresignExpiry,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	screenshotStore := storage.NewScreenshotStore(blobStorage, log)

	// Event broadcaster
	broadcaster := broadcast.NewPusherBroadcaster(broadcast.Config{
		AppID:   cfg.Pusher.AppID,
		Key:     cfg.Pusher.Key,
		Secret:  cfg.Pusher.Secret,
		Host:    cfg.Pusher.Host,
		Cluster: cfg.Pusher.Cluster,
		Secure:  cfg.Pusher.Secure,
	}, log)

	// Virtual display pool
	pool := display.NewPool(display.Config{
		MaxSessions: cfg.Display.MaxSessions,
		DisplayBase: cfg.Display.DisplayBase,
		VNCPortBase: cfg.Display.VNCPortBase,
		GatewayPort: cfg.Display.GatewayPort,
		PublicHost:  cfg.Display.PublicHost,
		Resolution:  cfg.Display.Resolution,
	}, display.NewExecLauncher(), log)
	defer pool.Cleanup(ctx)

	// Browser runtime
	runtime := browser.NewRuntime(log)
	if err := runtime.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize browser runtime: %w", err)
	}
	defer runtime.Shutdown()

	// Task execution engine
	engine := executor.NewEngine(
		executor.Config{
			UploadDir:     cfg.Storage.BaseDir,
			ScreenshotDir: cfg.Executor.ScreenshotDir,
			ResumeTimeout: cfg.Executor.ResumeTimeout,
			EncryptionKey: secrets.DeriveKey(cfg.Security.EncryptionPassphrase),
		},
		taskStore, stepStore, fieldStore, executionStore,
		pool, executor.NewPlaywrightLauncher(runtime), broadcaster, screenshotStore, log,
	)
	runRegistry := executor.NewRegistry(cfg.Executor.MaxConcurrentRuns)

	// AI form classifier
	classifier, err := analyzer.NewBedrockClassifier(cfg.Bedrock.Region, cfg.Bedrock.ModelID, cfg.Bedrock.MaxTokens)
	if err != nil {
		return fmt.Errorf("failed to initialize classifier: %w", err)
	}
	analysisService := analyzer.NewService(runtime, classifier, broadcaster, log)

	// Interactive editing sessions
	editingRegistry := editing.NewRegistry(pool, log)
	editingRegistry.StartSweep()
	defer editingRegistry.StopSweep()
	defer editingRegistry.CleanupAll()

	// Setup router
	router := mux.NewRouter()

	healthHandler := handlers.NewHealthHandler(pool, editingRegistry)
	router.HandleFunc("/health", healthHandler.Health).Methods("GET")

	apiRouter := router.PathPrefix("/api/v1").Subrouter()
	apiRouter.Use(handlers.NewInternalKeyMiddleware(cfg.Security.InternalAPIKey, log).Handler)

	executeHandler := handlers.NewExecuteHandler(engine, runRegistry, executionStore, log)
	apiRouter.HandleFunc("/execute", executeHandler.Execute).Methods("POST")
	apiRouter.HandleFunc("/executions/{id}", executeHandler.GetExecution).Methods("GET")
	apiRouter.HandleFunc("/executions/{id}/cancel", executeHandler.Cancel).Methods("POST")
	apiRouter.HandleFunc("/tasks/{id}/executions", executeHandler.ListByTask).Methods("GET")

	displayHandler := handlers.NewDisplayHandler(pool, log)
	apiRouter.HandleFunc("/vnc/activate", displayHandler.Activate).Methods("POST")
	apiRouter.HandleFunc("/vnc/resume", displayHandler.Resume).Methods("POST")
	apiRouter.HandleFunc("/vnc/stop", displayHandler.Stop).Methods("POST")
	apiRouter.HandleFunc("/vnc/sessions", displayHandler.Sessions).Methods("GET")

	editingHandler := handlers.NewEditingHandler(editingRegistry, runtime, pool, broadcaster, cfg.Editing.ResumeTimeout, log)
	apiRouter.HandleFunc("/editing/start", editingHandler.Start).Methods("POST")
	apiRouter.HandleFunc("/editing/mode", editingHandler.SetMode).Methods("POST")
	apiRouter.HandleFunc("/editing/update-fields", editingHandler.UpdateFields).Methods("POST")
	apiRouter.HandleFunc("/editing/focus-field", editingHandler.FocusField).Methods("POST")
	apiRouter.HandleFunc("/editing/test-selector", editingHandler.TestSelector).Methods("POST")
	apiRouter.HandleFunc("/editing/fill-field", editingHandler.FillField).Methods("POST")
	apiRouter.HandleFunc("/editing/read-field-value", editingHandler.ReadFieldValue).Methods("POST")
	apiRouter.HandleFunc("/editing/navigate", editingHandler.Navigate).Methods("POST")
	apiRouter.HandleFunc("/editing/execute-login", editingHandler.ExecuteLogin).Methods("POST")
	apiRouter.HandleFunc("/editing/resume-login", editingHandler.ResumeLogin).Methods("POST")
	apiRouter.HandleFunc("/editing/confirm", editingHandler.Confirm).Methods("POST")
	apiRouter.HandleFunc("/editing/cancel", editingHandler.Cancel).Methods("POST")
	apiRouter.HandleFunc("/editing/cleanup", editingHandler.Cleanup).Methods("POST")

	analyzeHandler := handlers.NewAnalyzeHandler(analysisService, log)
	apiRouter.HandleFunc("/analyze", analyzeHandler.Analyze).Methods("POST")

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in a goroutine
	go func() {
		log.Info(ctx, "server listening", map[string]interface{}{
			"address": addr,
		})
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error(ctx, "server error", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info(ctx, "shutting down server", nil)

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info(ctx, "server stopped", nil)
	return nil
}
