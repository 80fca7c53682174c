package commands

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/anatoly-dev/go-ws-matchmaker/internal/service"
	"github.com/anatoly-dev/go-ws-matchmaker/pkg/config"
	"github.com/anatoly-dev/go-ws-matchmaker/pkg/handlers"
	"github.com/anatoly-dev/go-ws-matchmaker/pkg/kafka"
	"github.com/anatoly-dev/go-ws-matchmaker/pkg/matchmaking"
	"github.com/anatoly-dev/go-ws-matchmaker/pkg/metrics"
	"github.com/anatoly-dev/go-ws-matchmaker/pkg/redis"
	"github.com/anatoly-dev/go-ws-matchmaker/pkg/websocket"
)

type Application struct {
	configPath     string
	cfg            *config.Config
	logger         *zap.Logger
	instanceID     string
	metrics        *metrics.Metrics
	metricsHandler *metrics.MetricsHandler
	presenceStore  *redis.PresenceStore
	kafkaProducer  *kafka.Producer
	hub            *matchmaking.Hub
	sessionService *service.SessionService
	wsManager      *websocket.Manager
	wsHandler      *handlers.WebSocketHandler
	healthHandler  *handlers.HealthCheckHandler
	iceHandler     *handlers.ICEHandler
	server         *service.Server
}

func NewApplication(configPath string) *Application {
	return &Application{
		configPath: configPath,
		instanceID: uuid.New().String(),
	}
}

func (a *Application) Init() error {
	if err := a.initConfig(); err != nil {
		return err
	}

	if err := a.initLogger(); err != nil {
		return err
	}

	a.logger.Info("Starting WebSocket matchmaker",
		zap.String("instanceID", a.instanceID),
		zap.Int("port", a.cfg.Server.Port))

	a.initMetrics()

	if err := a.initRedis(); err != nil {
		return err
	}

	if err := a.initKafka(); err != nil {
		return err
	}

	a.initHub()
	a.initServices()
	a.initWebsocket()
	a.initHandlers()
	a.initServer()

	return nil
}

func (a *Application) initConfig() error {
	cfg, err := config.LoadConfig(a.configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	a.cfg = cfg
	return nil
}

func (a *Application) initLogger() error {
	logger, err := config.NewLogger(&a.cfg.Logger)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	a.logger = logger.With(zap.String("instanceID", a.instanceID))
	return nil
}

func (a *Application) initMetrics() {
	a.metrics = metrics.NewMetrics(a.cfg.Metrics.Namespace, prometheus.DefaultRegisterer)
	a.metricsHandler = metrics.NewMetricsHandler(a.metrics, prometheus.DefaultGatherer, a.logger)
}

func (a *Application) initRedis() error {
	if !a.cfg.Redis.Enabled {
		a.logger.Info("Redis presence mirror disabled")
		return nil
	}

	store, err := redis.NewPresenceStore(&a.cfg.Redis, a.logger, a.instanceID)
	if err != nil {
		return fmt.Errorf("failed to create Redis presence store: %w", err)
	}
	store.SetMetrics(&a.metrics.Redis)
	a.presenceStore = store
	return nil
}

func (a *Application) initKafka() error {
	if !a.cfg.Kafka.Enabled {
		a.logger.Info("Kafka session events disabled")
		return nil
	}

	producer, err := kafka.NewProducer(&a.cfg.Kafka, a.logger)
	if err != nil {
		return fmt.Errorf("failed to create Kafka producer: %w", err)
	}
	producer.SetMetrics(&a.metrics.Kafka)
	a.kafkaProducer = producer
	return nil
}

func (a *Application) initHub() {
	observers := []matchmaking.Observer{metrics.NewMatchmakingObserver(a.metrics)}
	if a.kafkaProducer != nil {
		observers = append(observers, service.NewEventObserver(a.kafkaProducer, a.instanceID, a.logger))
	}
	if a.presenceStore != nil {
		observers = append(observers, service.NewPresenceObserver(a.presenceStore))
	}

	mm := a.cfg.Matchmaking
	a.hub = matchmaking.NewHub(matchmaking.Options{
		RepairDelay:   mm.RepairDelay,
		AnonymousName: mm.AnonymousName,
		MaxNameLength: mm.MaxNameLength,
		Observer:      matchmaking.MultiObserver(observers...),
		Logger:        a.logger.Named("matchmaking"),
	}, mm.MailboxSize)
}

func (a *Application) initServices() {
	a.sessionService = service.NewSessionService(a.hub, a.logger)
	a.sessionService.SetMetrics(&a.metrics.Business)
}

func (a *Application) initWebsocket() {
	a.wsManager = websocket.NewManager(a.cfg.WebSocket, a.sessionService, a.logger)
	a.wsManager.SetMetrics(&a.metrics.WebSocket)
}

func (a *Application) initHandlers() {
	a.wsHandler = handlers.NewWebSocketHandler(a.wsManager, a.logger)
	a.healthHandler = handlers.NewHealthCheckHandler(a.sessionService, a.logger)
	a.iceHandler = handlers.NewICEHandler(a.cfg.ICE.WebRTCServers())
}

func (a *Application) initServer() {
	a.server = service.NewServer(
		a.wsHandler,
		a.healthHandler,
		a.iceHandler,
		a.metricsHandler,
		a.sessionService,
		a.logger,
		&a.cfg.Server,
	)

	if a.kafkaProducer != nil {
		a.server.OnShutdown("kafka", func(context.Context) error {
			a.kafkaProducer.Close()
			return nil
		})
	}
	if a.presenceStore != nil {
		a.server.OnShutdown("redis", a.presenceStore.Close)
	}
}

func (a *Application) Run(ctx context.Context) error {
	return a.server.Start(ctx)
}

func (a *Application) Stop() {
	if a.logger != nil {
		a.logger.Sync()
	}
}

func NewServeCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the matchmaking server",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := NewApplication(configPath)
			if err := app.Init(); err != nil {
				return err
			}
			defer app.Stop()
			return app.Run(cmd.Context())
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Directory containing config.yaml")

	return cmd
}
