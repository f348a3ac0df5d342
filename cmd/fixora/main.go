package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fixora/internal/api"
	"fixora/internal/config"
	"fixora/internal/domain"
	"fixora/internal/logging"
	"fixora/internal/metrics"
	"fixora/internal/models"
	"fixora/internal/repository"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const usage = `usage: fixora <command> [flags]

commands:
  bookings   list your bookings
  provider   show the provider dashboard once
  watch      keep the provider dashboard live until interrupted
  status     change a booking's status (provider)
  admin      list all bookings (admin)
  export     write your bookings to an xlsx file
  book       create a booking
  profile    show a provider profile
`

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

// app is what every command runs against.
type app struct {
	cfg    *config.Config
	logger *zerolog.Logger
	client *api.Client
	out    io.Writer
}

func run(args []string) error {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		fmt.Fprint(os.Stdout, usage)
		return nil
	}
	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", args[0])
	}

	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := api.NewClient(cfg.API, logger)
	if err != nil {
		return fmt.Errorf("init api client: %w", err)
	}

	redisClient := initRedis(ctx, cfg, logger)
	if redisClient != nil {
		defer (func() { _ = repository.Close(redisClient) })()
	}
	client.UseProviderCache(initProviderCache(cfg, redisClient, logger))

	a := &app{cfg: cfg, logger: logger, client: client, out: os.Stdout}
	if err := a.authenticate(ctx); err != nil {
		return err
	}
	return cmd(ctx, a, args[1:])
}

func loadConfigAndLogger() (*config.Config, *zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, baseLogger, closer, nil
}

// authenticate logs in with configured credentials when no token is set.
func (a *app) authenticate(ctx context.Context) error {
	if a.client.Token() != "" || a.cfg.API.Email == "" {
		return nil
	}
	session, err := a.client.Login(ctx, api.Credentials{Email: a.cfg.API.Email, Password: a.cfg.API.Password})
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	a.logger.Info().Str("user", session.Email).Str("role", string(session.Role)).Msg("logged in")
	return nil
}

func (a *app) requireRole(ctx context.Context, role models.Role) error {
	if _, err := a.client.RequireRole(ctx, role); err != nil {
		return fmt.Errorf("%s session required: %w", role, err)
	}
	return nil
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(ctx, redisClient); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing with memory cache")
		_ = redisClient.Close()
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return redisClient
}

func initProviderCache(cfg *config.Config, redisClient *redis.Client, logger *zerolog.Logger) domain.ProviderCache {
	memory := repository.NewMemoryProviderCache(cfg.Redis.CacheTTL)
	if redisClient == nil {
		return memory
	}
	primary := repository.NewRedisProviderCache(redisClient, cfg.Redis.CacheTTL)
	return repository.NewFailoverProviderCache(primary, memory, logging.Component(logger, "provider_cache"))
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	port := cfg.Monitoring.PrometheusPort
	if port == 0 {
		port = 9090
	}
	go startMetricsServer(ctx, port, logger)
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	logger.Info().Int("port", port).Msg("metrics server started")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
