package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"epschart/browser"
	"epschart/cache"
	"epschart/config"
	"epschart/controller"
	"epschart/credential"
	"epschart/earnings"
	"epschart/logger"
	"epschart/render"
	"epschart/server"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the yaml config file (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Errorf("config: %v", err)
		os.Exit(1)
	}
	logger.SetLevel(cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := cache.New(cfg.Cache.RedisAddr, cfg.Cache.RedisPassword, cfg.Cache.RedisDB)
	defer store.Close()
	if err := store.Ping(ctx); err != nil {
		logger.Warnf("redis unreachable, continuing without cache: %v", err)
	}

	client, err := earnings.NewClient(earnings.Options{
		RateLimitMessage: cfg.Upstream.RateLimitMessage,
		StrictNumbers:    cfg.Earnings.StrictNumbers,
	})
	if err != nil {
		logger.Errorf("earnings client: %v", err)
		os.Exit(1)
	}
	resolver := credential.Resolver{UpstreamURL: cfg.Upstream.URL, ProxyURL: cfg.Proxy.URL}
	service := earnings.NewService(client, resolver, store, cfg.Cache.TTL)

	chartOpts := render.ChartOptions{
		Width:      cfg.Chart.Width,
		Height:     cfg.Chart.Height,
		AssetsHost: cfg.Chart.AssetsHost,
	}
	sessions := controller.NewStore(func() *controller.Controller {
		return controller.New(service, chartOpts)
	}, cfg.Session.MaxIdle)
	go sessions.Run(ctx, cfg.Session.MaxIdle/4)

	opts := server.Options{Sessions: sessions, Lookup: service, Cache: store}
	if cfg.Proxy.Enabled {
		opts.Proxy = server.NewProxy(cfg.Upstream.URL, cfg.Proxy.APIKey, client, store, cfg.Cache.TTL)
		logger.Infof("serving shared-key proxy at /eps")
	}
	if cfg.Snapshot.Enabled {
		width, height := cfg.Chart.Pixels()
		pool := browser.New(browser.Options{
			Size:    cfg.Snapshot.PoolSize,
			Timeout: cfg.Snapshot.Timeout,
			Width:   width,
			Height:  height,
		})
		defer pool.Shutdown()
		opts.Snapshots = pool
	}

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           server.New(opts).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Errorf("shutdown: %v", err)
		}
	}()

	logger.Infof("server is running on %s (proxy URL %s)", cfg.Server.Addr, cfg.Proxy.URL)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Errorf("server: %v", err)
		os.Exit(1)
	}
}
