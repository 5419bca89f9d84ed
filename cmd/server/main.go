package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Reecheble2022/flowswitch-verify/internal/audit"
	"github.com/Reecheble2022/flowswitch-verify/internal/capture"
	"github.com/Reecheble2022/flowswitch-verify/internal/extract"
	"github.com/Reecheble2022/flowswitch-verify/internal/gateway"
	"github.com/Reecheble2022/flowswitch-verify/internal/identity"
	"github.com/Reecheble2022/flowswitch-verify/internal/platform/config"
	"github.com/Reecheble2022/flowswitch-verify/internal/platform/httpserver"
	"github.com/Reecheble2022/flowswitch-verify/internal/platform/logger"
	"github.com/Reecheble2022/flowswitch-verify/internal/platform/metrics"
	"github.com/Reecheble2022/flowswitch-verify/internal/platform/middleware"
	redisplatform "github.com/Reecheble2022/flowswitch-verify/internal/platform/redis"
	"github.com/Reecheble2022/flowswitch-verify/internal/report"
	"github.com/Reecheble2022/flowswitch-verify/internal/session"
	"github.com/Reecheble2022/flowswitch-verify/internal/session/homebase"
	"github.com/Reecheble2022/flowswitch-verify/internal/session/note"
	httptransport "github.com/Reecheble2022/flowswitch-verify/internal/transport/http"
	"github.com/Reecheble2022/flowswitch-verify/pkg/platform/circuit"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in the session packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()
	m := metrics.New()

	rc, err := redisplatform.New(cfg.Redis)
	if err != nil {
		log.Error("redis connection failed", "error", err.Error())
		os.Exit(1)
	}

	gatewayOpts := []gateway.Option{
		gateway.WithToken(cfg.BackendToken),
		gateway.WithLogger(log),
		gateway.WithMetrics(m),
		gateway.WithBreaker(circuit.New("backend",
			circuit.WithFailureThreshold(5),
			circuit.WithSuccessThreshold(2),
		)),
	}
	if rc != nil {
		cache := gateway.NewLookupCache(rc.Client, config.AgentLookupCacheTTL,
			gateway.WithCacheLogger(log))
		gatewayOpts = append(gatewayOpts, gateway.WithLookupCache(cache))
		log.Info("agent lookup cache enabled", "ttl", config.AgentLookupCacheTTL.String())
	}
	gw := gateway.New(cfg.BackendBaseURL, gatewayOpts...)

	// Headless sensor ports: the client device feeds frames and position
	// fixes through the capture endpoints.
	frames := capture.NewFrameQueue()
	fixes := capture.NewFixStore()

	users := identity.NewHolder()
	extractor := extract.New(nil,
		extract.WithTimeout(cfg.ExtractionTimeout),
		extract.WithLogger(log),
	)

	notes := note.New(gw, frames, extractor, users,
		note.WithLogger(log),
		note.WithMetrics(m),
	)
	hb := homebase.New(gw, frames, fixes, users,
		homebase.WithLogger(log),
		homebase.WithMetrics(m),
		homebase.WithGeolocationTimeout(cfg.GeolocationTimeout),
		homebase.WithPromptDelay(cfg.HomebasePromptDelay),
		homebase.WithRequiredVerifications(cfg.RequiredVerifications),
	)
	host := session.NewHost(notes, hb, users)

	analyst := report.NewAnalyst(report.TemplateNarrator{}, report.WithLogger(log))
	validator := middleware.NewHMACValidator(cfg.JWTSigningKey)

	var trail audit.Store = audit.NewMemoryStore(1024)
	if rc != nil {
		trail = audit.NewRedisStore(rc.Client, 4096)
	}
	recorder := audit.NewRecorder(256, audit.WithLogger(log))
	auditCtx, stopAudit := context.WithCancel(context.Background())
	defer stopAudit()
	go func() {
		if err := audit.NewWorker(trail, recorder.Inbox(), log).Run(auditCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("audit worker stopped", "error", err.Error())
		}
	}()

	handler := httptransport.New(host, users, gw, analyst, validator, log,
		httptransport.WithFrameFeed(frames),
		httptransport.WithFixFeed(fixes),
		httptransport.WithAudit(recorder, trail),
	)
	router := httptransport.NewRouter(handler)

	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting flowswitch-verify",
		"addr", cfg.Addr,
		"backend", cfg.BackendBaseURL,
	)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err.Error())
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err.Error())
	}
	if rc != nil {
		if err := rc.Close(); err != nil {
			log.Warn("redis close failed", "error", err.Error())
		}
	}
}
