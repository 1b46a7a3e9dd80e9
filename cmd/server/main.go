// Command server starts the career agent HTTP gateway.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/fairyhunter13/career-agent-api/internal/adapter/ai/gemini"
	"github.com/fairyhunter13/career-agent-api/internal/adapter/ai/tokencount"
	"github.com/fairyhunter13/career-agent-api/internal/adapter/document"
	"github.com/fairyhunter13/career-agent-api/internal/adapter/httpserver"
	"github.com/fairyhunter13/career-agent-api/internal/adapter/observability"
	"github.com/fairyhunter13/career-agent-api/internal/adapter/queue/redpanda"
	"github.com/fairyhunter13/career-agent-api/internal/adapter/repo/postgres"
	"github.com/fairyhunter13/career-agent-api/internal/app"
	"github.com/fairyhunter13/career-agent-api/internal/config"
	"github.com/fairyhunter13/career-agent-api/internal/domain"
	"github.com/fairyhunter13/career-agent-api/internal/service/prompt"
	"github.com/fairyhunter13/career-agent-api/internal/service/question"
	"github.com/fairyhunter13/career-agent-api/internal/service/ratelimiter"
	"github.com/fairyhunter13/career-agent-api/internal/usecase"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)
	observability.InitMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("server exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config) error {
	shutdownTracer, err := observability.SetupTracing(ctx, cfg)
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	doc, err := loadDocument(ctx, cfg)
	if err != nil {
		return err
	}

	policy, err := config.LoadPromptPolicy(cfg.PromptPolicyPath)
	if err != nil {
		return err
	}
	composer := prompt.NewDefaultComposer(cfg.GroundingEnabled)
	if policy.Template != "" {
		if composer, err = prompt.NewComposer(policy.Template); err != nil {
			return err
		}
	}

	gen, err := gemini.New(ctx, gemini.OptionsFromConfig(cfg))
	if err != nil {
		return err
	}
	gen.SelectModel(ctx)

	g, gctx := errgroup.WithContext(ctx)

	// Rate limiter
	var (
		limiter    domain.RateLimiter
		redisCheck app.Pinger
	)
	if cfg.RedisEnabled() {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("op=main.redis: %w", err)
		}
		rdb := redis.NewClient(opts)
		defer func() { _ = rdb.Close() }()
		rl := ratelimiter.NewRedisSlidingWindow(rdb, cfg.RateLimitMaxRequests, cfg.RateLimitWindow)
		limiter, redisCheck = rl, rl
		slog.Info("rate limiter backend", slog.String("backend", "redis"))
	} else {
		sw := ratelimiter.NewSlidingWindow(cfg.RateLimitMaxRequests, cfg.RateLimitWindow, cfg.RateLimitMaxClients)
		limiter = sw
		g.Go(func() error {
			sw.Run(gctx, cfg.RateLimitSweepInterval, func(removed, tracked int) {
				observability.SetTrackedClients(tracked)
				if removed > 0 {
					slog.Debug("rate table swept", slog.Int("removed", removed), slog.Int("tracked", tracked))
				}
			})
			return nil
		})
		slog.Info("rate limiter backend", slog.String("backend", "memory"))
	}

	// Interaction recorders
	var (
		sinks   []usecase.Sink
		dbCheck app.Pinger
	)
	if cfg.AuditEnabled() {
		pool, err := postgres.NewPool(ctx, cfg.DBURL)
		if err != nil {
			return err
		}
		defer pool.Close()
		repo := postgres.NewInteractionRepo(pool)
		if err := repo.EnsureSchema(ctx); err != nil {
			return err
		}
		sinks = append(sinks, usecase.Sink{Name: "postgres", Recorder: repo})
		dbCheck = repo
	}
	if cfg.EventsEnabled() {
		pub, err := redpanda.NewPublisher(ctx, cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			return err
		}
		defer func() { _ = pub.Close() }()
		sinks = append(sinks, usecase.Sink{Name: "redpanda", Recorder: pub})
	}

	svc := usecase.NewAskService(
		question.NewValidator(cfg.QuestionMinLength, cfg.QuestionMaxLength),
		question.NewClassifier(policy.ElaborationKeywords),
		limiter,
		composer,
		gen,
		usecase.NewRecorder(sinks...),
		tokencount.DefaultCounter,
		doc,
		usecase.AskPolicy{
			WordLimitDefault: cfg.WordLimitDefault,
			WordLimitMax:     cfg.WordLimitMax,
			MaxOutputTokens:  cfg.ModelMaxOutputTokens,
			Temperature:      cfg.ModelTemperature,
			ModelTimeout:     cfg.ModelTimeout,
			ModelTimeoutMin:  cfg.ModelTimeoutMin,
			MaxAnswerLength:  cfg.MaxAnswerLength,
			RecordTimeout:    cfg.RecordTimeout,
		},
	)
	defer svc.Wait()

	ir := httpserver.NewIdentityResolver(cfg.ClientIdentity, cfg.TrustedProxyHops, cfg.FingerprintSalt)
	srvHTTP := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           app.BuildRouter(cfg, httpserver.NewServer(svc, cfg.MaxBodyBytes), ir),
		ReadTimeout:       cfg.HTTPReadTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
		ReadHeaderTimeout: 10 * time.Second,
	}
	servers := []*http.Server{srvHTTP}
	if cfg.MetricsPort > 0 {
		servers = append(servers, &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.MetricsPort),
			Handler:           app.BuildMetricsRouter(app.BuildReadinessChecks(dbCheck, redisCheck, doc)),
			ReadHeaderTimeout: 5 * time.Second,
		})
	}

	for _, s := range servers {
		g.Go(func() error {
			slog.Info("http server starting", slog.String("addr", s.Addr))
			if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("op=main.listen %s: %w", s.Addr, err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ServerShutdownTimeout)
		defer cancel()
		var errs []error
		for _, s := range servers {
			errs = append(errs, s.Shutdown(shutdownCtx))
		}
		return errors.Join(errs...)
	})

	return g.Wait()
}

// loadDocument reads the candidate document once. A missing S3 setup only
// disables s3:// sources.
func loadDocument(ctx context.Context, cfg config.Config) (domain.Document, error) {
	var objects document.ObjectGetter
	s3c, err := document.NewS3Client(ctx, cfg)
	if err != nil {
		return domain.Document{}, err
	}
	if s3c != nil {
		objects = s3c
	}
	doc := document.NewLoader(objects, cfg.DocumentFallback).Load(ctx, cfg.DocumentSources)
	slog.Info("candidate document loaded",
		slog.String("source", doc.Source),
		slog.Int("length", len(doc.Text)),
		slog.Int("tokens", tokencount.Count(doc.Text)))
	return doc, nil
}
