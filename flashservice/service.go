// Package flashservice assembles the page notification service: Pub/Sub
// ingestion into the flash store, the flash HTTP API and the page session
// websocket that drains flashes into toasts.
package flashservice

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/tinywideclouds/go-microservice-base/pkg/microservice"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"

	"github.com/tinywideclouds/go-flash-service/flashservice/config"
	"github.com/tinywideclouds/go-flash-service/internal/api"
	"github.com/tinywideclouds/go-flash-service/internal/clock"
	"github.com/tinywideclouds/go-flash-service/internal/dispatcher"
	"github.com/tinywideclouds/go-flash-service/internal/pipeline"
	"github.com/tinywideclouds/go-flash-service/internal/platform/web"
	"github.com/tinywideclouds/go-flash-service/internal/platform/ws"
	"github.com/tinywideclouds/go-flash-service/pkg/dispatch"
	"github.com/tinywideclouds/go-flash-service/pkg/flash"
)

type Wrapper struct {
	*microservice.BaseServer
	pipelineService *messagepipeline.StreamingService[flash.Request]
	logger          *slog.Logger
}

// New assembles the service.
func New(
	cfg *config.Config,
	consumer messagepipeline.MessageConsumer,
	flashStore dispatch.FlashStore,
	authMiddleware func(http.Handler) http.Handler,
	logger *slog.Logger,
) (*Wrapper, error) {

	// 1. Base Server
	baseServer := microservice.NewBaseServer(logger, cfg.ListenAddr)

	// 2. Processor
	processor := pipeline.NewProcessor(flashStore, logger)

	// 3. Pipeline
	streamingService, err := messagepipeline.NewStreamingService(
		messagepipeline.StreamingServiceConfig{NumWorkers: cfg.NumPipelineWorkers},
		consumer,
		pipeline.FlashRequestTransformer,
		processor,
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create streaming service: %w", err)
	}

	// 4. Dispatcher + page sessions
	d := dispatcher.New(dispatcher.Config{
		FlashDelay:          cfg.Dispatch.FlashDelay,
		ErrorDelay:          cfg.Dispatch.ErrorDelay,
		Stagger:             cfg.Dispatch.Stagger,
		ConsolidateFallback: cfg.Dispatch.ConsolidateFallback,
	}, clock.Real{}, logger)

	handlerCfg := ws.HandlerConfig{AllowedOrigins: cfg.CorsConfig.AllowedOrigins}
	if cfg.Vapid.Enabled() {
		handlerCfg.Vapid = &web.VapidKeys{
			PublicKey:       cfg.Vapid.PublicKey,
			PrivateKey:      cfg.Vapid.PrivateKey,
			SubscriberEmail: cfg.Vapid.SubscriberEmail,
		}
	}
	sessionHandler := ws.NewHandler(handlerCfg, d, flashStore, logger)

	// 5. API
	flashAPI := api.NewFlashAPI(flashStore, logger)

	// Register Routes
	mux := baseServer.Mux()
	corsMiddleware := middleware.NewCorsMiddleware(cfg.CorsConfig, logger)

	mux.Handle("POST /api/v1/flash", corsMiddleware(authMiddleware(http.HandlerFunc(flashAPI.PushFlash))))
	// Websocket upgrades are not subject to CORS; the handler checks Origin itself.
	mux.Handle("GET /api/v1/session", authMiddleware(sessionHandler))

	// Global OPTIONS for the API namespace (CORS preflight)
	mux.Handle("OPTIONS /api/v1/", corsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})))

	return &Wrapper{
		BaseServer:      baseServer,
		pipelineService: streamingService,
		logger:          logger,
	}, nil
}

func (w *Wrapper) Start(ctx context.Context) error {
	w.logger.Info("Flash ingestion pipeline starting...")
	if err := w.pipelineService.Start(ctx); err != nil {
		return fmt.Errorf("failed to start processing service: %w", err)
	}
	w.SetReady(true)
	w.logger.Info("Service is now ready.")
	return w.BaseServer.Start()
}

func (w *Wrapper) Shutdown(ctx context.Context) error {
	w.logger.Info("Shutting down service components...")
	var finalErr error
	if err := w.pipelineService.Stop(ctx); err != nil {
		w.logger.Error("Processing pipeline shutdown failed.", "err", err)
		finalErr = err
	}
	if err := w.BaseServer.Shutdown(ctx); err != nil {
		w.logger.Error("HTTP server shutdown failed.", "err", err)
		finalErr = err
	}
	w.logger.Info("Service shutdown complete.")
	return finalErr
}
