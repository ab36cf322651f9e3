package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	mqttbroker "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
	"golang.org/x/sync/errgroup"

	"greenhouse-monitor/backend/internal/commandlog"
	"greenhouse-monitor/backend/internal/config"
	"greenhouse-monitor/backend/internal/controller"
	"greenhouse-monitor/backend/internal/credentials"
	"greenhouse-monitor/backend/internal/database"
	localapi "greenhouse-monitor/backend/internal/local/api"
	mqttapi "greenhouse-monitor/backend/internal/local/mqtt"
	localservices "greenhouse-monitor/backend/internal/local/services"
	"greenhouse-monitor/backend/internal/local/stream"
	"greenhouse-monitor/backend/internal/metrics"
	"greenhouse-monitor/backend/internal/poller"
	sharedapi "greenhouse-monitor/backend/internal/shared/api"
	"greenhouse-monitor/backend/internal/shared/helpers"
	"greenhouse-monitor/backend/internal/telemetry"
	"greenhouse-monitor/backend/pkg/mqtt"
	"greenhouse-monitor/backend/pkg/router"
	"greenhouse-monitor/backend/pkg/utils"
)

func main() {
	sigCtx, sigCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer sigCancel()

	config, err := config.New()
	if err != nil {
		helpers.FatalIfErr(slog.Default(), fmt.Errorf("failed to create config: %w", err))
	}

	defer utils.LogOnError(slog.Default(), config.Close, "failed to close config")

	// Initialize logger
	logger := helpers.GetLogger(config)
	logger.Info("starting greenhouse monitor", slog.String("build", utils.GetBuildVersion()))

	db, err := database.Open(sigCtx, logger, config.Dialect, config.Database)
	helpers.FatalIfErr(logger, err)

	defer utils.LogOnError(logger, db.Close, "failed to close database")

	store := credentials.New(logger, db)
	helpers.FatalIfErr(logger, store.Bootstrap(sigCtx, config.Credentials))

	// Metrics observe the telemetry client, whose cache they export in turn
	m := metrics.New(nil)
	client := telemetry.New(logger, store,
		telemetry.WithBaseURL(config.ThingSpeakURL),
		telemetry.WithCacheRetention(config.CacheRetention),
		telemetry.WithObserver(m),
	)
	m.TrackCache(client.Cache())

	// The MQTT handler is created after the controller it drives
	var mqttHandler *mqttapi.Handler

	commands := commandlog.New(logger, db)
	ctrl := controller.New(logger, client,
		controller.WithRecorder(commands),
		controller.WithWateringDuration(config.WateringDuration),
		controller.WithReconcileGrace(config.ReconcileGrace),
		controller.WithStateListener(func(s controller.State) {
			if mqttHandler != nil {
				mqttHandler.StateListener(s)
			}
		}),
	)
	defer ctrl.Close()

	hub := stream.NewHub(logger)
	defer hub.Close()

	p := poller.New(logger, client, config.PollInterval,
		hub,
		poller.SinkFunc(func(_ context.Context, r telemetry.Result) error {
			m.ObserveReading(r)
			return nil
		}),
		poller.SinkFunc(func(ctx context.Context, _ telemetry.Result) error {
			// Only a live status may override the intended state
			if status, live := client.FetchStatusLive(ctx); live {
				ctrl.Reconcile(status)
			}

			return nil
		}),
	)

	deps := localservices.Dependencies{
		Telemetry:   client,
		Controller:  ctrl,
		Poller:      p,
		Credentials: store,
		Commands:    commands,
		Database:    db,
	}

	var mb *mqtt.MQTTBuilder

	if config.MQTTEnabled {
		will, err := mqttapi.Will()
		helpers.FatalIfErr(logger, err)

		mb, err = mqtt.NewMQTTBuilder(logger, mqtt.MQTTClientOptions{
			BrokerURL: config.MQTTBroker,
			ClientID:  config.MQTTClientID,
			Username:  config.MQTTUsername,
			Password:  config.MQTTPassword,
			Will:      will,
			OnConnect: func() {
				if mqttHandler != nil {
					mqttHandler.PublishOnline()
				}
			},
		})
		helpers.FatalIfErr(logger, err)

		mqttHandler = mqttapi.NewMQTTHandler(logger, mb.Client(), ctrl, store)
		registerMQTTHandlers(logger, mb, mqttHandler)
		p.AddSink(mqttHandler)

		deps.MQTT = mb
	}

	services := localservices.NewServices(logger, deps)

	rb := router.NewRouteBuilder(logger)
	registerHTTPHandlers(logger, rb, localapi.NewHandler(logger, services), m, hub, mb)

	g, ctx := errgroup.WithContext(sigCtx)

	if config.MQTTEnabled && config.MQTTBrokerPort > 0 {
		mqttAddr := fmt.Sprintf(":%d", config.MQTTBrokerPort)
		mqttBroker, err := getMQTTServer(logger, mqttAddr)
		helpers.FatalIfErr(logger, err)

		g.Go(func() error {
			logger.Info("MQTT broker listening", slog.String("address", mqttAddr))

			if err := mqttBroker.Serve(); err != nil {
				return fmt.Errorf("mqtt broker failed: %w", err)
			}

			<-ctx.Done()
			logger.Info("mqtt broker shutting down...")

			return mqttBroker.Close()
		})
	}

	if mb != nil {
		g.Go(func() error {
			defer mb.Disconnect()

			// The client keeps retrying in the background, a failed first attempt is not fatal
			if err := mb.Connect(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Failed to connect to MQTT broker", utils.ErrAttr(err))
			}

			<-ctx.Done()

			return nil
		})
	}

	g.Go(func() error {
		return p.Run(ctx)
	})

	httpServer := sharedapi.NewHTTPServer(logger, fmt.Sprintf(":%d", config.Port), rb.Handler())
	g.Go(func() error {
		return httpServer.Run(ctx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("monitor stopped with error", utils.ErrAttr(err))
		return
	}

	logger.Info("monitor exited gracefully")
}

func getMQTTServer(l *slog.Logger, addr string) (*mqttbroker.Server, error) {
	server := mqttbroker.New(&mqttbroker.Options{
		Logger: l.With(slog.String("component", "mqtt-broker")),
	})
	tcp := listeners.NewTCP(listeners.Config{ID: "tcp", Address: addr})

	if err := server.AddListener(tcp); err != nil {
		return nil, err
	}

	if err := server.AddHook(new(auth.AllowHook), nil); err != nil {
		return nil, err
	}

	return server, nil
}

// registerHTTPHandlers registers all HTTP handlers. mb is nil when MQTT is disabled.
func registerHTTPHandlers(l *slog.Logger, rb *router.RouteBuilder, h *localapi.Handler, m *metrics.Metrics, hub *stream.Hub, mb *mqtt.MQTTBuilder) {
	l.Info("Registering HTTP handlers...")

	// Create middleware handler
	mw := sharedapi.NewMiddlewareHandler(l)

	rb.Use(m.Middleware)
	rb.Handle("/metrics", m.Handler())

	rb.Route("/api", func(rb *router.RouteBuilder) {
		// Add request ID
		rb.Use(mw.RequestIDMiddleware)
		// Add request logger
		rb.Use(mw.LoggerMiddleware)
		// Turn panics into 500s
		rb.Use(mw.RecoveryMiddleware)

		h.Register(rb)

		var mqttOps func() []mqtt.OperationInfo
		if mb != nil {
			mqttOps = mb.Operations
		}

		h.RegisterOperations("/operations", rb, mqttOps)

		rb.Handle("/stream", hub)
	})

	l.Info("HTTP handlers registered successfully")
}

// registerMQTTHandlers registers all MQTT handlers.
func registerMQTTHandlers(l *slog.Logger, mb *mqtt.MQTTBuilder, h *mqttapi.Handler) {
	l.Info("Registering MQTT handlers...")
	// Telemetry operations
	h.RegisterReadingPublish(mb)
	h.RegisterAvailabilityPublish(mb)

	// Control operations
	h.RegisterStatusPublish(mb)
	h.RegisterCommandSubscribe(mb)
	l.Info("MQTT handlers registered successfully")
}
