package server

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/pipewise/pipewise/config"
	"github.com/pipewise/pipewise/internal/agent"
	"github.com/pipewise/pipewise/internal/crm"
	"github.com/pipewise/pipewise/internal/runtime"
	"github.com/pipewise/pipewise/internal/store"
	"github.com/pipewise/pipewise/internal/telemetry"
)

// Run wires every dependency and starts the HTTP server on addr.
func Run(cfg *config.Config, addr string) error {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	// Unified HTTP error handler with structured JSON and logging
	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Cookie", "Authorization"},
		AllowCredentials: true,
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(200, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	dsn, err := cfg.Databases.Postgres.DSN()
	if err != nil {
		return err
	}
	if err := Migrate("file://migrations", dsn, "up", 0); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	ctx := context.Background()
	st, err := store.NewWithDSN(ctx, dsn)
	if err != nil {
		return err
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Databases.Redis.Addr(),
		Password: cfg.Databases.Redis.Password,
		DB:       cfg.Databases.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis connection failed (%s): %w", cfg.Databases.Redis.Addr(), err)
	}

	tele := telemetry.New()
	provider, err := agent.NewOpenAIProvider(cfg.Providers.OpenAI, tele)
	if err != nil {
		return err
	}
	tokens := crm.NewTokenManager(st, cfg.Providers, cfg.Agents.TokenRefreshWindow)
	pipeline := agent.NewPipeline(st, provider, tokens, cfg.Providers, cfg.Agents, tele)

	secret, err := runtime.LoadJWTSecret(cfg)
	if err != nil {
		return err
	}

	api := e.Group("/api")
	auth := &AuthHandler{Store: st, Secret: secret, Env: cfg.General.Env}
	auth.Register(api.Group("/auth"))

	ah := &AgentsHandler{Store: st, Pipeline: pipeline, Cache: NewResultCache(rdb, cfg.Databases.Redis.CacheTTL)}
	ah.Register(api.Group("/agents"), secret)

	rh := &RecordsHandler{Store: st}
	rh.Register(api.Group(""), secret)

	ih := &IntegrationsHandler{Store: st, Tokens: tokens}
	ih.Register(api.Group("/integrations"), secret)

	th := &TestDataHandler{Store: st}
	th.Register(api.Group("/testdata"), secret)

	sched := NewScheduler(st, pipeline, rdb)
	sched.Start()

	// Note: the web UI ships in a separate container; this process only
	// exposes APIs.

	if addr == "" {
		addr = cfg.General.Listen
		if addr != "" && addr[0] != ':' {
			addr = ":" + addr
		}
		if addr == "" {
			addr = ":10010"
		}
	}
	log.Printf("listening on %s", addr)
	return e.Start(addr)
}
