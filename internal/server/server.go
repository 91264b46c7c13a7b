package server

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mohammad-safakhou/seeker/config"
	"github.com/mohammad-safakhou/seeker/internal/cache"
	"github.com/mohammad-safakhou/seeker/internal/engine"
	"github.com/mohammad-safakhou/seeker/internal/runtime"
	"github.com/mohammad-safakhou/seeker/internal/store"
	"github.com/mohammad-safakhou/seeker/internal/telemetry"
	"github.com/mohammad-safakhou/seeker/provider"
	web_search "github.com/mohammad-safakhou/seeker/tools/web_search"
)

// Run wires the HTTP API: auth, research, spaces. Blocks until the listener
// stops.
func Run(cfg *config.Config) error {
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
			_ = c.JSON(code, HTTPError{Error: msg})
		}
	}

	origins := cfg.Server.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Cookie", "Authorization"},
		AllowCredentials: true,
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	ctx := context.Background()

	dsn, err := runtime.BuildPostgresDSN(cfg)
	if err != nil {
		return err
	}
	if err := Migrate("file://migrations", dsn, "up", 0); err != nil {
		baseLogger.Printf("migrations: %v", err)
	}
	st, err := store.New(ctx, dsn)
	if err != nil {
		return err
	}

	secret, err := runtime.LoadJWTSecret(cfg)
	if err != nil {
		return err
	}

	tele := telemetry.NewTelemetry(cfg.Telemetry)

	llm, err := provider.NewProvider(provider.Client(cfg.LLM.Type), cfg.LLM.BaseURL, cfg.LLM.Timeout)
	if err != nil {
		return err
	}
	searcher, err := web_search.NewWebSearcher(web_search.Provider(cfg.Search.Provider), cfg.Search.BaseURL, cfg.Search.Timeout)
	if err != nil {
		return err
	}

	var layerCache *cache.LayerCache
	if cfg.Storage.Redis.Enabled {
		rdb, err := cache.Conn(ctx, cfg.Storage.Redis.Host, cfg.Storage.Redis.Port, cfg.Storage.Redis.Pass, cfg.Storage.Redis.DB, cfg.Storage.Redis.Timeout)
		if err != nil {
			return err
		}
		layerCache = cache.NewLayerCache(rdb, cfg.Storage.Redis.CacheTTL)
	}

	eng, err := engine.New(cfg, tele, llm, searcher, layerCache)
	if err != nil {
		return err
	}

	api := e.Group("/api")
	auth := &AuthHandler{Store: st, Secret: secret}
	auth.Register(api.Group("/auth"))

	protected := func(g *echo.Group) *echo.Group {
		g.Use(runtime.EchoAuthMiddleware(secret))
		return g
	}

	me := protected(api.Group("/me"))
	me.GET("", func(c echo.Context) error {
		return c.JSON(http.StatusOK, MeResponse{UserID: c.Get("user_id").(string)})
	})

	sh := &SpacesHandler{Store: st}
	sh.Register(protected(api.Group("/spaces")))

	rh := &ResearchHandler{Store: st, Engine: eng, Logger: log.New(log.Writer(), "[RESEARCH] ", log.LstdFlags)}
	rh.Register(protected(api.Group("/research")))

	addr := cfg.Server.Address
	if addr == "" {
		addr = ":10030"
	}
	log.Printf("listening on %s", addr)
	return e.Start(addr)
}
