package bootstrap

import (
	"context"
	"fmt"
	"log"

	"testcase-workflow-be/internal/config"
	"testcase-workflow-be/internal/controller"
	"testcase-workflow-be/internal/handler"
	"testcase-workflow-be/internal/pkg/logger"
	"testcase-workflow-be/internal/pkg/serverutils"
	"testcase-workflow-be/internal/repository/memory"
	"testcase-workflow-be/internal/scheduler"
	"testcase-workflow-be/internal/service"
	"testcase-workflow-be/internal/websocket"
	"testcase-workflow-be/pkg/backend"
	pktNats "testcase-workflow-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
)

const eventTopic = "workflow_events"

type Container struct {
	// Controllers
	SessionController  controller.ISessionController
	WorkflowController controller.IWorkflowController
	ChatController     controller.IChatController
	DocumentController controller.IDocumentController

	JwtMiddleware fiber.Handler

	// Background Services (started by Start)
	EventRelayService service.IEventRelayService
	StatusPoller      *scheduler.StatusPoller

	// WebSockets
	WorkflowEventsHandler *handler.WorkflowEventsHandler
	WebSocketHub          *websocket.Hub

	Registry *prometheus.Registry
	Logger   logger.ILogger

	pubSub  *gochannel.GoChannel
	natsPub *pktNats.Publisher
	rdb     *redis.Client
	cancel  context.CancelFunc
}

func NewContainer(cfg *config.Config) (*Container, error) {
	// 1. Core Facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.IsProduction())

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// 2. Backend Data Source
	fixtures, err := backend.NewFixtureClient(cfg.Backend.UserId, cfg.Backend.MockDelay)
	if err != nil {
		return nil, fmt.Errorf("load fixtures: %w", err)
	}

	var source backend.DataSource = fixtures
	if cfg.Backend.UseMock {
		log.Printf("[INFO] Using fixture backend (delay %s)", cfg.Backend.MockDelay)
	} else {
		// The backend has no chat endpoints, so chats stay on fixtures.
		source = backend.NewLiveClient(cfg.Backend.URL, cfg.Backend.UserId, fixtures)
		log.Printf("[INFO] Using live backend at %s", cfg.Backend.URL)
	}
	source = backend.NewInstrumented(source, backend.NewMetrics(registry), sysLogger)

	// 3. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// 4. Infrastructure
	// NATS
	var natsPub *pktNats.Publisher
	if cfg.Messaging.NatsURL != "" {
		natsPub, err = pktNats.NewPublisher(cfg.Messaging.NatsURL)
		if err != nil {
			log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
			natsPub = nil
		}
	}

	// Redis
	var rdb *redis.Client
	if cfg.Messaging.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.Messaging.RedisURL)
		if err != nil {
			log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
			opt = &redis.Options{
				Addr: cfg.Messaging.RedisURL,
			}
		}
		rdb = redis.NewClient(opt)
		if _, err := rdb.Ping(context.Background()).Result(); err != nil {
			log.Printf("[WARN] Failed to connect to Redis: %v", err)
		}
	}

	// WebSocket Hub
	wsLogger := logger.NewIsolatedLogger(cfg.App.WsLogFilePath)
	wsHub := websocket.NewHub(rdb, wsLogger)

	// 5. Services
	sessionRepo := memory.NewSessionRepository(cfg.Workflow.SessionTTL)
	workflowMetrics := service.NewWorkflowMetrics(registry, sessionRepo.Count)

	publisherService := service.NewPublisherService(eventTopic, pubSub)

	var sink service.EventSink
	if natsPub != nil {
		sink = natsPub
	}
	relayService := service.NewEventRelayService(pubSub, eventTopic, wsHub, sink, sysLogger)

	sessionService := service.NewSessionService(sessionRepo, source, publisherService, workflowMetrics, sysLogger)
	workflowService := service.NewWorkflowService(sessionRepo, source, publisherService, workflowMetrics, sysLogger)
	chatService := service.NewChatService(sessionRepo, source, publisherService, workflowMetrics, sysLogger)
	documentService := service.NewDocumentService(source, publisherService, sysLogger)

	// 6. Background Status Poller
	var poller *scheduler.StatusPoller
	if cfg.Workflow.StatusPollSpec != "" {
		refresh := scheduler.RefreshFunc(func(ctx context.Context, userId, sessionId string) error {
			_, err := workflowService.Refresh(ctx, userId, sessionId)
			return err
		})
		poller, err = scheduler.NewStatusPoller(cfg.Workflow.StatusPollSpec, sessionRepo, refresh, sysLogger)
		if err != nil {
			return nil, err
		}
	}

	// 7. Controllers
	return &Container{
		SessionController:  controller.NewSessionController(sessionService),
		WorkflowController: controller.NewWorkflowController(workflowService),
		ChatController:     controller.NewChatController(chatService),
		DocumentController: controller.NewDocumentController(documentService),

		JwtMiddleware: serverutils.NewJwtMiddleware(cfg.Auth.JwtSecret, cfg.Backend.UserId),

		EventRelayService: relayService,
		StatusPoller:      poller,

		WorkflowEventsHandler: handler.NewWorkflowEventsHandler(sessionService, wsHub, wsLogger),
		WebSocketHub:          wsHub,

		Registry: registry,
		Logger:   sysLogger,

		pubSub:  pubSub,
		natsPub: natsPub,
		rdb:     rdb,
	}, nil
}

// Start launches the hub, the event relay and the status poller.
func (c *Container) Start(ctx context.Context) error {
	ctx, c.cancel = context.WithCancel(ctx)

	go c.WebSocketHub.Run(ctx)

	if err := c.EventRelayService.Consume(ctx); err != nil {
		return fmt.Errorf("start event relay: %w", err)
	}

	if c.StatusPoller != nil {
		if err := c.StatusPoller.Start(); err != nil {
			return err
		}
	}
	return nil
}

// Close stops background work and releases connections.
func (c *Container) Close(ctx context.Context) {
	if c.StatusPoller != nil {
		c.StatusPoller.Stop(ctx)
	}
	if c.cancel != nil {
		c.cancel()
		<-c.WebSocketHub.Done()
	}
	if err := c.pubSub.Close(); err != nil {
		c.Logger.Warn("BOOTSTRAP", "Failed to close event bus", map[string]interface{}{"error": err.Error()})
	}
	if c.natsPub != nil {
		c.natsPub.Close()
	}
	if c.rdb != nil {
		if err := c.rdb.Close(); err != nil {
			c.Logger.Warn("BOOTSTRAP", "Failed to close redis", map[string]interface{}{"error": err.Error()})
		}
	}
	_ = c.Logger.Sync()
}
