package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/oauth2/google"

	"github.com/stampworks/sigforge/internal/api"
	"github.com/stampworks/sigforge/internal/audit"
	"github.com/stampworks/sigforge/internal/config"
	"github.com/stampworks/sigforge/internal/pkg/distlock"
	"github.com/stampworks/sigforge/internal/pkg/httpretry"
	"github.com/stampworks/sigforge/internal/pkg/logger"
	"github.com/stampworks/sigforge/internal/provider"
	"github.com/stampworks/sigforge/internal/render"
	"github.com/stampworks/sigforge/internal/repository/postgres"
	"github.com/stampworks/sigforge/internal/service/deployment"
	"github.com/stampworks/sigforge/internal/service/resolution"
	"github.com/stampworks/sigforge/internal/status"
	"github.com/stampworks/sigforge/internal/worker"
)

const gmailScope = "https://www.googleapis.com/auth/gmail.settings.basic"

func buildWriter(cfg config.ProviderConfig) (deployment.SignatureWriter, error) {
	switch cfg.Kind {
	case "google":
		data, err := os.ReadFile(cfg.GoogleCredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read google credentials: %w", err)
		}
		jwtCfg, err := google.JWTConfigFromJSON(data, gmailScope)
		if err != nil {
			return nil, fmt.Errorf("parse google credentials: %w", err)
		}
		// Domain-wide delegation: each write impersonates the target mailbox.
		tokenSource := func(mailbox string) oauth2.TokenSource {
			impersonated := *jwtCfg
			impersonated.Subject = mailbox
			return impersonated.TokenSource(context.Background())
		}
		return provider.NewGoogleWriter(cfg.GmailBaseURL, tokenSource, nil), nil

	case "microsoft":
		cc := clientcredentials.Config{
			ClientID:     cfg.MicrosoftClientID,
			ClientSecret: cfg.MicrosoftClientSecret,
			TokenURL:     fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", cfg.MicrosoftTenantID),
			Scopes:       []string{"https://graph.microsoft.com/.default"},
		}
		retrying := httpretry.NewRetryClient(cc.Client(context.Background()), 3)
		return provider.NewMicrosoftWriter(cfg.GraphBaseURL, retrying), nil

	default:
		return nil, fmt.Errorf("unknown provider kind %q", cfg.Kind)
	}
}

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	cfg, err := config.LoadFromEnv(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.SetLevel(logger.ParseLevel(cfg.Logging.Level))
	if cfg.Logging.RedactPII != nil {
		logger.SetRedactPII(*cfg.Logging.RedactPII)
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}
	defer db.Close()

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			log.Printf("[main] redis unreachable, live progress disabled: %v", err)
			redisClient = nil
		}
	}

	ruleRepo := postgres.NewRuleRepo(db)
	directoryRepo := postgres.NewDirectoryRepo(db)
	templateRepo := postgres.NewTemplateRepo(db)
	deploymentRepo := postgres.NewDeploymentRepo(db)

	resolver := resolution.NewService(directoryRepo, directoryRepo, ruleRepo, templateRepo)
	renderer := render.NewRenderer()

	writer, err := buildWriter(cfg.Provider)
	if err != nil {
		log.Fatalf("Failed to build provider writer: %v", err)
	}

	deployer := deployment.NewService(deploymentRepo, directoryRepo, templateRepo,
		resolver, renderer, writer, deployment.Config{
			Concurrency:  cfg.Deployment.Concurrency,
			WriteTimeout: cfg.Deployment.WriteTimeout(),
		})
	deployer.SetAuditSink(audit.NewSink(db))

	var progress *status.Tracker
	if redisClient != nil {
		progress = status.NewTracker(redisClient, 0)
		deployer.SetProgressTracker(progress)
	}

	// The reaper finalizes deployments whose process died mid-run. The
	// distributed lock keeps one instance active across replicas.
	reaperLock := distlock.New(redisClient, db, "deployment-reaper", cfg.Deployment.ReapInterval())
	reaper := worker.NewDeploymentReaper(deploymentRepo, reaperLock,
		cfg.Deployment.ReapInterval(), cfg.Deployment.StuckAge())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go reaper.Start(ctx)

	var progressReader api.ProgressReader
	if progress != nil {
		progressReader = progress
	}
	server := api.NewServer(deployer, resolver, ruleRepo, progressReader)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      server.Routes(cfg.Server.AllowedOrigins),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute, // deployments block until the batch finishes
	}

	go func() {
		log.Printf("[main] listening on %s (provider=%s concurrency=%d)",
			addr, cfg.Provider.Kind, cfg.Deployment.Concurrency)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("[main] shutting down")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("[main] forced shutdown: %v", err)
	}
}
