package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"paperpayout-client/internal/config"
	"paperpayout-client/internal/handlers"
	"paperpayout-client/internal/logger"
	"paperpayout-client/internal/services"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zl, err := logger.New(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer zl.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var registry services.InflightRegistry = services.NewMemoryRegistry()
	if cfg.RedisURL != "" {
		redisRegistry, err := services.NewRedisRegistry(cfg)
		if err != nil {
			zl.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redisRegistry.Close()
		registry = redisRegistry
		zl.Info("using redis in-flight registry", zap.String("addr", cfg.RedisURL))
	}

	backend := services.NewBackendClient(cfg, nil, zl)
	app := services.NewApp(backend, registry, zl)
	defer app.Close()

	app.Start(ctx)
	go app.Run(ctx, cfg.PollInterval)

	jwtService := services.NewJWTService(cfg)
	if err := announceViewToken(os.Stdout, jwtService, zl); err != nil {
		zl.Fatal("Failed to issue view token", zap.Error(err))
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := handlers.SetupRouter(ctx, app, jwtService, zl)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	zl.Info("lobby client starting", zap.String("port", cfg.Port), zap.String("backend", cfg.BackendURL))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		zl.Fatal("Failed to start server", zap.Error(err))
	}
}

// announceViewToken prints the view API token to w once. The token never
// goes to the logger.
func announceViewToken(w io.Writer, jwtService *services.JWTService, zl *zap.Logger) error {
	if !jwtService.Enabled() {
		return nil
	}
	token, err := jwtService.GenerateToken("")
	if err != nil {
		return err
	}
	zl.Info("view API requires a bearer token, printed to stdout")
	_, err = fmt.Fprintf(w, "view API token: %s\n", token)
	return err
}
