package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"strava-home-bridge/internal/auth"
	"strava-home-bridge/internal/config"
	"strava-home-bridge/internal/coordinator"
	"strava-home-bridge/internal/database"
	"strava-home-bridge/internal/handlers"
	"strava-home-bridge/internal/images"
	"strava-home-bridge/internal/metrics"
	"strava-home-bridge/internal/middleware"
	"strava-home-bridge/internal/service"
	"strava-home-bridge/internal/strava"
	"strava-home-bridge/internal/webhook"
)

func main() {
	// Define CLI flags
	listSubscriptions := flag.Bool("list-subscriptions", false, "List all Strava webhook subscriptions")
	deleteSubscription := flag.String("delete-subscription", "", "Delete a Strava webhook subscription by ID")
	addAthlete := flag.String("add-athlete", "", "Onboard an athlete by ID (creates the integration record)")
	grantedScope := flag.String("scope", "", "Granted OAuth scope for -add-athlete (comma separated)")
	tokenFile := flag.String("token-file", "", "Path to a token JSON file to store for -add-athlete")

	flag.Parse()

	// Check if any CLI command was requested
	if *listSubscriptions || *deleteSubscription != "" || *addAthlete != "" {
		runCLI(*listSubscriptions, *deleteSubscription, *addAthlete, *grantedScope, *tokenFile)
		return
	}

	// Otherwise, start the server
	runServer()
}

func runCLI(listSubs bool, deleteSub, addAthlete, grantedScope, tokenFile string) {
	// Disable structured logging for CLI
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError, // Only show errors
	})))

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	subs := strava.NewSubscriptionClient(
		&http.Client{Timeout: 30 * time.Second},
		cfg.StravaClientID, cfg.StravaClientSecret, nil,
	)
	ctx := context.Background()

	// Handle commands
	switch {
	case listSubs:
		handleListSubscriptions(ctx, subs)
	case deleteSub != "":
		handleDeleteSubscription(ctx, subs, deleteSub)
	case addAthlete != "":
		handleAddAthlete(cfg, addAthlete, grantedScope, tokenFile)
	}
}

func handleAddAthlete(cfg *config.Config, idStr, grantedScope, tokenFile string) {
	athleteID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Invalid athlete ID: %s\n", idStr)
		os.Exit(1)
	}

	db, err := database.Open(cfg.DatabasePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to open database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.UpsertIntegration(athleteID, grantedScope); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to store integration: %v\n", err)
		os.Exit(1)
	}

	if tokenFile != "" {
		raw, err := os.ReadFile(tokenFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: Failed to read token file: %v\n", err)
			os.Exit(1)
		}
		if !json.Valid(raw) {
			fmt.Fprintf(os.Stderr, "Error: Token file is not valid JSON: %s\n", tokenFile)
			os.Exit(1)
		}
		if err := db.SaveToken(athleteID, raw); err != nil {
			fmt.Fprintf(os.Stderr, "Error: Failed to store token: %v\n", err)
			os.Exit(1)
		}
	}

	fmt.Printf("✓ Athlete %d onboarded\n", athleteID)
	if tokenFile == "" {
		fmt.Println("No token stored; provide -token-file before starting the server.")
	}
}

func handleListSubscriptions(ctx context.Context, subs *strava.SubscriptionClient) {
	subscriptions, err := subs.List(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to list subscriptions: %v\n", err)
		os.Exit(1)
	}

	if len(subscriptions) == 0 {
		fmt.Println("No active subscriptions found.")
		return
	}

	fmt.Printf("Found %d subscription(s):\n\n", len(subscriptions))
	for _, sub := range subscriptions {
		fmt.Printf("ID: %d\n", sub.ID)
		fmt.Printf("  Application ID: %d\n", sub.ApplicationID)
		fmt.Printf("  Callback URL: %s\n", sub.CallbackURL)
		fmt.Printf("  Created: %s\n", sub.CreatedAt)
		fmt.Printf("  Updated: %s\n", sub.UpdatedAt)
		fmt.Println()
	}
}

func handleDeleteSubscription(ctx context.Context, subs *strava.SubscriptionClient, idStr string) {
	subscriptionID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Invalid subscription ID: %s\n", idStr)
		os.Exit(1)
	}

	fmt.Printf("Deleting subscription %d...\n", subscriptionID)

	if err := subs.Delete(ctx, subscriptionID); err != nil {
		if _, ok := err.(*strava.NotFoundError); ok {
			fmt.Fprintf(os.Stderr, "Error: Subscription %d not found\n", subscriptionID)
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}

	fmt.Println("✓ Subscription deleted successfully!")
}

func runServer() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Set up logger
	logLevel := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Starting strava-home-bridge server",
		"host", cfg.Host,
		"port", cfg.Port,
		"database", cfg.DatabasePath,
		"log_level", cfg.LogLevel)

	// Open database
	db, err := database.Open(cfg.DatabasePath)
	if err != nil {
		logger.Error("Failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	logger.Info("Database opened successfully")

	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	oauthCfg := auth.NewOAuthConfig(cfg.StravaClientID, cfg.StravaClientSecret)

	integrations, err := db.ListIntegrations()
	if err != nil {
		logger.Error("Failed to list integrations", "error", err)
		os.Exit(1)
	}
	if len(integrations) == 0 {
		logger.Warn("No integrations stored; authorize at least one athlete before data can be fetched")
	}

	baseOpts := coordinator.Options{
		PhotosEnabled: cfg.PhotosEnabled,
		ActivityTypes: cfg.ActivityTypes,
		Units:         cfg.Units,
	}

	registry := coordinator.NewRegistry()
	caches := make(map[int64]*images.Cache, len(integrations))

	for _, integration := range integrations {
		session, err := auth.Session(rootCtx, oauthCfg, db, integration.AthleteID, logger)
		if err != nil {
			logger.Error("Failed to build authenticated session",
				"athlete_id", integration.AthleteID, "error", err)
			os.Exit(1)
		}

		opts := baseOpts
		if len(integration.Options) > 0 {
			if err := json.Unmarshal(integration.Options, &opts); err != nil {
				logger.Warn("Invalid stored options, using defaults",
					"athlete_id", integration.AthleteID, "error", err)
				opts = baseOpts
			}
		}

		client := strava.NewClient(session, logger)
		coord := coordinator.New(rootCtx, client, integration.AthleteID, opts, logger)
		registry.Register(coord)

		cache := images.NewCache(db, integration.AthleteID, cfg.MaxImages, logger)
		caches[integration.AthleteID] = cache
		coord.AddListener(func(snap *coordinator.Snapshot) {
			cache.Update(snap.Activities, snap.Images)
		})
	}

	// The first refresh gates startup. An integration that cannot fetch
	// anything at all is misconfigured and should fail loudly rather
	// than serve empty data.
	for _, coord := range registry.All() {
		if _, err := coord.RequestRefresh(rootCtx, metrics.TriggerCommand); err != nil {
			logger.Error("Initial refresh failed", "athlete_id", coord.OwnerID(), "error", err)
			os.Exit(1)
		}
	}

	// Reconcile the webhook subscription. Every integration shares the
	// same callback URL, so after the first pass the rest are no-ops.
	subs := strava.NewSubscriptionClient(
		&http.Client{Timeout: 30 * time.Second},
		cfg.StravaClientID, cfg.StravaClientSecret, logger,
	)
	probe := &http.Client{Timeout: 10 * time.Second}
	for _, integration := range integrations {
		reconciler := webhook.NewReconciler(subs, probe, db, integration.AthleteID,
			cfg.PublicURL, cfg.StravaVerifyToken, logger)
		if err := reconciler.Reconcile(rootCtx); err != nil {
			logger.Error("Webhook reconciliation failed",
				"athlete_id", integration.AthleteID, "error", err)
		}
	}

	// A missing write scope surfaces as a logged domain event so the
	// operator learns the athlete has to reauthorize.
	reauth := func(athleteID int64) {
		logger.Warn("Reauthorization required", "athlete_id", athleteID)
		if _, err := db.InsertEvent(database.EventTypeReauthRequired, athleteID, nil, nil); err != nil {
			logger.Error("Failed to record reauth_required event",
				"athlete_id", athleteID, "error", err)
		}
	}
	gearService := service.NewGearService(registry, db, reauth, logger)

	// Create handlers
	webhookHandler := handlers.NewWebhookHandler(registry, db)
	eventsHandler := handlers.NewEventsHandler(db, cfg.EventsAPIKey)
	cameraHandler := handlers.NewCameraHandler(caches)
	commandsHandler := handlers.NewCommandsHandler(gearService, cfg.EventsAPIKey)
	sensorsHandler := handlers.NewSensorsHandler(registry)

	// Set up HTTP routes
	mux := http.NewServeMux()

	mux.Handle(webhook.CallbackPath, middleware.WrapHandler(metrics.EndpointWebhook, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			// GET = verification
			webhookHandler.HandleVerification(w, r)
		case http.MethodPost:
			// POST = event
			webhookHandler.HandleEvent(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	}))

	// Camera endpoints
	mux.Handle("/camera/", middleware.WrapHandler(metrics.EndpointCamera, cameraHandler.HandleImage))

	// Events API endpoint
	mux.Handle("/events", middleware.WrapHandler(metrics.EndpointEvents, eventsHandler.HandleEvents))

	// Command endpoint (gear assignment, pod shoe selection)
	mux.Handle("/commands", middleware.WrapHandler(metrics.EndpointCommands, commandsHandler.HandleCommand))

	// Sensor projections of the latest snapshot
	mux.Handle("/sensors/", middleware.WrapHandler(metrics.EndpointSensors, sensorsHandler.HandleSensors))

	// Health check endpoint
	mux.Handle("/health", middleware.WrapHandler(metrics.EndpointHealth, func(w http.ResponseWriter, r *http.Request) {
		if err := db.Health(); err != nil {
			http.Error(w, "Database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}))

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Recurring refresh per coordinator
	refreshInterval := time.Duration(cfg.RefreshIntervalSeconds) * time.Second
	for _, coord := range registry.All() {
		go coord.Run(rootCtx, refreshInterval)
	}

	// Image rotation ticker
	rotateInterval := time.Duration(cfg.ImageRotateIntervalSeconds) * time.Second
	go func() {
		ticker := time.NewTicker(rotateInterval)
		defer ticker.Stop()
		for {
			select {
			case <-rootCtx.Done():
				return
			case <-ticker.C:
				for _, cache := range caches {
					cache.Rotate()
				}
			}
		}
	}()

	// Start metrics server if enabled
	var metricsServer *http.Server
	if cfg.MetricsEnabled {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", promhttp.Handler())

		metricsAddr := fmt.Sprintf("%s:%d", cfg.MetricsHost, cfg.MetricsPort)
		metricsServer = &http.Server{
			Addr:    metricsAddr,
			Handler: metricsMux,
		}

		go func() {
			logger.Info("Metrics server listening", "addr", metricsAddr)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("Metrics server failed", "error", err)
			}
		}()
	}

	// Start HTTP server in background
	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down gracefully...")

	// Stop coordinators; in-flight fetches abort
	rootCancel()
	for _, coord := range registry.All() {
		coord.Close()
	}

	// Shutdown HTTP servers with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", "error", err)
	}

	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("Metrics server shutdown failed", "error", err)
		}
	}

	logger.Info("Server stopped")
}
