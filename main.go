package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/fasthttp/router"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/valyala/fasthttp"

	"aqgateway/internal/alerts"
	"aqgateway/internal/auth"
	"aqgateway/internal/config"
	"aqgateway/internal/db"
	"aqgateway/internal/forecast"
	"aqgateway/internal/gateway"
	"aqgateway/internal/http/handlers"
	appmw "aqgateway/internal/http/middleware"
	"aqgateway/internal/ledger"
	"aqgateway/internal/notify"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	sqlDB, err := db.Connect(cfg)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}

	if err := db.EnsureBootstrapAdmin(sqlDB, cfg); err != nil {
		log.Fatalf("failed to ensure bootstrap admin: %v", err)
	}

	db.StartUsagePruneWorker(sqlDB, cfg.UsageRetentionDays)

	gateway.InitMetrics()
	alerts.InitMetrics()
	forecast.InitMetrics()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	queue := alerts.NewRedisQueue(rdb, "alerts", cfg.AlertMaxAttempts)
	store := alerts.NewStore(sqlDB)
	producer := alerts.NewProducer(store, queue, cfg.AlertCooldown)

	var notifier notify.Notifier = notify.LogNotifier{}
	if cfg.SMTPHost != "" {
		notifier = notify.NewSMTP(notify.SMTPConfig{
			Host: cfg.SMTPHost,
			Port: cfg.SMTPPort,
			User: cfg.SMTPUser,
			Pass: cfg.SMTPPass,
			From: cfg.SMTPFrom,
		})
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	worker := alerts.NewWorker(queue, store, notifier, cfg.DepartmentEmails)
	for i := 0; i < cfg.AlertWorkers; i++ {
		go worker.RunForever(ctx)
	}

	resolver := auth.NewResolver(
		auth.NewSessionVerifier(sqlDB),
		auth.NewAPIKeyVerifier(sqlDB),
	)
	gw := gateway.New(resolver, ledger.New(sqlDB))
	ml := forecast.NewClient(cfg.MLServiceURL, cfg.MLTimeout)
	lgr := ledger.New(sqlDB)

	r := router.New()

	r.GET("/healthz", func(ctx *fasthttp.RequestCtx) {
		ctx.SetStatusCode(fasthttp.StatusOK)
		ctx.SetBodyString("ok")
	})
	r.GET("/metrics", handlers.Metrics())

	r.POST("/login", handlers.Login(sqlDB, cfg))
	r.POST("/logout", handlers.Logout(sqlDB))

	r.GET("/v1", handlers.Index())
	r.GET("/v1/credits", gw.Metered(gateway.CostCredits, "/v1/credits", handlers.Credits(lgr)))
	r.GET("/v1/sites", gw.Metered(gateway.CostSites, "/v1/sites", handlers.Sites(ml)))
	r.GET("/v1/sites/{id}/data", gw.Metered(gateway.CostSiteData, "/v1/sites/{id}/data", handlers.SiteData(cfg.SiteDataDir)))
	r.POST("/v1/forecast", gw.Metered(gateway.CostForecast, "/v1/forecast", handlers.Forecast(ml)))
	r.POST("/v1/forecast/timeseries", gw.Metered(gateway.CostTimeseries, "/v1/forecast/timeseries", handlers.Timeseries(ml)))

	session := appmw.SessionAuth(resolver)
	r.GET("/v1/keys", session(handlers.ListKeys(sqlDB)))
	r.POST("/v1/keys", session(handlers.CreateKey(sqlDB)))
	r.POST("/v1/keys/revoke", session(handlers.RevokeKey(sqlDB)))
	r.POST("/billing/topup", session(handlers.Topup(sqlDB, lgr)))

	govt := func(h fasthttp.RequestHandler) fasthttp.RequestHandler {
		return session(appmw.RequireRole(db.RoleGovt)(h))
	}
	r.POST("/gov/evaluate", govt(handlers.Evaluate(producer)))
	r.GET("/gov/alerts", govt(handlers.ListAlerts(store)))
	r.POST("/gov/broadcast-emergency", govt(handlers.BroadcastEmergency(store)))

	handler := handlers.RequestLogger(r.Handler)

	log.Printf("aqgateway listening on %s", cfg.ListenAddr)
	if err := fasthttp.ListenAndServe(cfg.ListenAddr, handler); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
