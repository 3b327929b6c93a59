package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/crivus/quizlead/internal/analytics"
	"github.com/crivus/quizlead/internal/api"
	"github.com/crivus/quizlead/internal/auth"
	"github.com/crivus/quizlead/internal/event"
	"github.com/crivus/quizlead/internal/lead"
	"github.com/crivus/quizlead/internal/quiz"
	"github.com/crivus/quizlead/internal/telemetry"
	"github.com/crivus/quizlead/internal/tracking"
)

type Config struct {
	HTTP struct {
		Port int32
	}

	Auth struct {
		Secret string
	}

	Redis struct {
		Notify struct {
			Addrs  []string
			Pass   string
			Prefix string
		}
	}

	Postgres struct {
		Tracking struct {
			Addr string
			User string
			Pass string
			Name string
		}
	}
}

// Validate rejects a config the server cannot start with. Missing settings
// surface here instead of as a connect error half-way through Init.
func (c Config) Validate() error {
	if c.HTTP.Port <= 0 {
		return fmt.Errorf("http.port must be set")
	}

	if c.Auth.Secret == "" {
		return fmt.Errorf("auth.secret must be set")
	}

	if len(c.Redis.Notify.Addrs) == 0 {
		return fmt.Errorf("redis.notify.addrs must be set")
	}

	pc := c.Postgres.Tracking
	if pc.Addr == "" || pc.User == "" || pc.Name == "" {
		return fmt.Errorf("postgres.tracking addr, user and name must be set")
	}

	return nil
}

type Server struct {
	c Config

	eb *event.Bus

	infra struct {
		redis    redis.UniversalClient
		postgres *pgxpool.Pool
	}

	service struct {
		tracking  *tracking.Service
		lead      *lead.Service
		quiz      *quiz.Service
		analytics *analytics.Service
	}

	http *http.Server
}

func Init(c Config) (*Server, error) {
	s := &Server{c: c}

	s.eb = event.NewBus()

	if err := s.initInfra(); err != nil {
		return nil, fmt.Errorf("server: init infra: %w", err)
	}

	s.initService()
	s.initAPI()
	return s, nil
}

func (s *Server) initInfra() error {
	if err := s.initRedis(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}

	if err := s.initPostgres(); err != nil {
		return fmt.Errorf("postgres: %w", err)
	}

	return nil
}

func (s *Server) initRedis() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	r := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    s.c.Redis.Notify.Addrs,
		Password: s.c.Redis.Notify.Pass,
	})

	if err := telemetry.MonitorRedis(r); err != nil {
		return err
	}

	if err := r.Ping(ctx).Err(); err != nil {
		return err
	}

	s.infra.redis = r
	return nil
}

func (s *Server) initPostgres() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pc := s.c.Postgres.Tracking
	cc, err := pgxpool.ParseConfig(fmt.Sprintf("postgres://%s:%s@%s/%s", pc.User, pc.Pass, pc.Addr, pc.Name))
	if err != nil {
		return err
	}

	db, err := pgxpool.NewWithConfig(ctx, cc)
	if err != nil {
		return err
	}

	if err := db.Ping(ctx); err != nil {
		return err
	}

	s.infra.postgres = db
	return nil
}

func (s *Server) initService() {
	s.service.quiz = quiz.NewService(quiz.Config{
		Store: quiz.NewPostgresStore(s.infra.postgres),
	})

	s.service.tracking = tracking.NewService(tracking.Config{
		Store:    tracking.NewPostgresStore(s.infra.postgres),
		EventBus: s.eb,
	})

	s.service.lead = lead.NewService(lead.Config{
		Store:    lead.NewPostgresStore(s.infra.postgres),
		Sessions: s.service.tracking,
		Events:   s.service.tracking,
		Quizzes:  s.service.quiz,
		EventBus: s.eb,
	})

	s.service.analytics = analytics.NewService(analytics.Config{
		Store:   analytics.NewPostgresStore(s.infra.postgres),
		Quizzes: s.service.quiz,
	})
}

func (s *Server) initAPI() {
	e := gin.New()
	e.GET("/metrics", gin.WrapH(promhttp.Handler()))
	pprof.Register(e, "/debug/pprof")
	e.Use(gin.Recovery())
	e.Use(telemetry.MonitorHTTP())

	api.New(api.Config{
		Router:       e,
		Verifier:     auth.NewVerifier(auth.Config{Secret: s.c.Auth.Secret}),
		EventBus:     s.eb,
		Tracking:     s.service.tracking,
		Lead:         s.service.lead,
		Quiz:         s.service.quiz,
		Analytics:    s.service.analytics,
		Redis:        s.infra.redis,
		PubsubPrefix: s.c.Redis.Notify.Prefix,
	})

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.c.HTTP.Port),
		Handler:           e,
		ReadHeaderTimeout: 60 * time.Second,
	}
}

func (s *Server) Start() {
	ctx := context.TODO()

	var eg errgroup.Group
	eg.Go(func() error {
		slog.InfoContext(ctx, fmt.Sprintf("server: HTTP listening on port %d", s.c.HTTP.Port))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if err := eg.Wait(); err != nil {
		slog.ErrorContext(ctx, "server: shutdown with error", "error", err)
	}
}

func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.http.Shutdown(ctx); err != nil {
		slog.ErrorContext(ctx, "server: shutdown HTTP failed", "error", err)
	}

	s.eb.Stop()

	s.infra.postgres.Close()
	if err := s.infra.redis.Close(); err != nil {
		slog.ErrorContext(ctx, "server: close redis failed", "error", err)
	}

	slog.InfoContext(ctx, "server: shutdown completed")
}
