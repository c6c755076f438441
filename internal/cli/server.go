package cli

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

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"edupath-service/internal/app"
	"edupath-service/internal/auth"
	"edupath-service/internal/config"
	"edupath-service/internal/infra/memory"
	"edupath-service/internal/infra/postgres"
	rediscache "edupath-service/internal/infra/redis"
	transport "edupath-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the lesson service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Postgres.URL == "" {
		return fmt.Errorf("postgres url not configured")
	}
	if cfg.Auth.JWTSecret == "" {
		return fmt.Errorf("auth jwt_secret not configured")
	}

	if err := runMigrationsWithConfig(ctx, cfg); err != nil {
		return err
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.URL)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()
	store := postgres.NewStore(db)

	pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
	if err != nil {
		return err
	}
	defer pool.Close()
	loader := postgres.NewLessonLoader(pool)

	lessonTTL := config.TTLDuration(cfg.Lessons.CacheTTL, 10*time.Minute)
	var lessonRead transport.LessonReader
	var invalidator transport.LessonInvalidator
	if cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		cache := rediscache.NewLessonCache(redisClient, loader, lessonTTL)
		lessonRead, invalidator = cache, cache
	} else {
		cache := memory.NewLessonCache(loader, lessonTTL)
		lessonRead, invalidator = cache, cache
	}

	authSvc := auth.NewService(cfg.Auth.JWTSecret, config.TTLDuration(cfg.Auth.TokenTTL, 24*time.Hour))

	hub := app.NewLeaderboardHub()
	opts := []app.SubmissionOption{app.WithNotifier(hub)}
	if !cfg.OpenMembership() {
		opts = append(opts, app.WithClosedMembership())
	}
	submissions := app.NewSubmissionService(store, opts...)

	api := transport.NewAPI(transport.APIConfig{
		Auth:        authSvc,
		Users:       store,
		Groups:      store,
		Lessons:     store,
		LessonRead:  lessonRead,
		Invalidator: invalidator,
		Submissions: submissions,
		Attempts:    store,
		Standings:   store,
		Hub:         hub,
	})

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      api.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting edupath service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
