package server

import (
	"context"
	"fmt"
	"log"

	"ChatRelay/config"
	"ChatRelay/handlers"
	"ChatRelay/limiter"
	"ChatRelay/models"
	"ChatRelay/redis"
	"ChatRelay/relay"
	"ChatRelay/repositories"
	"ChatRelay/services"
	"ChatRelay/session"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type Server struct {
	Echo          *echo.Echo
	Config        *config.Config
	DB            *gorm.DB
	Redis         *redis.RedisClient
	SessionStore  *session.Store
	Publisher     *relay.Publisher
	RelayConsumer *relay.Consumer
	Limiter       *limiter.Manager

	authService  *services.AuthService
	oauthService *services.OAuthService
	roomService  *services.RoomService

	authHandler     *handlers.AuthHandler
	roomHandler     *handlers.RoomHandler
	chatHandler     *handlers.ChatWebSocketHandler
	customerHandler *handlers.CustomerHandler
	sessionHandler  *handlers.SessionHandler
	adminHandler    *handlers.AdminHandler
}

func NewServer(cfg *config.Config) (*Server, error) {
	db, err := gorm.Open(postgres.Open(cfg.Database.DSN), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := models.AutoMigrateAll(db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	redisClient, err := redis.NewRedisClient(&cfg.Redis)
	if err != nil {
		return nil, err
	}

	sessionStore := session.NewStore(redisClient.Client, &cfg.Session)
	limiterManager := limiter.NewManager(redisClient.Client, &limiter.FixedWindowStrategy{})

	s := &Server{
		Echo:         echo.New(),
		Config:       cfg,
		DB:           db,
		Redis:        redisClient,
		SessionStore: sessionStore,
		Limiter:      limiterManager,
	}

	// No brokers configured means single instance mode: frames are only
	// broadcast locally.
	if len(cfg.Broker.Brokers) > 0 {
		saramaConfig, err := relay.NewSaramaConfig(&cfg.Broker)
		if err != nil {
			return nil, fmt.Errorf("failed to build broker config: %w", err)
		}
		publisher, err := relay.NewPublisher(cfg.Broker.Brokers, cfg.Broker.Topic, saramaConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to connect broker producer: %w", err)
		}
		s.Publisher = publisher
	}

	s.authService = services.NewAuthService(db, &cfg.Auth)
	s.oauthService = services.NewOAuthService(&cfg.Auth)
	s.roomService = services.NewRoomService(db, redisClient)

	instanceID := uuid.New().String()
	var publisher handlers.FramePublisher
	if s.Publisher != nil {
		publisher = s.Publisher
	}

	s.authHandler = handlers.NewAuthHandler(s.authService, s.oauthService)
	s.roomHandler = handlers.NewRoomHandler(s.roomService)
	s.chatHandler = handlers.NewChatWebSocketHandler(db, redisClient.Client, publisher, instanceID)
	s.customerHandler = handlers.NewCustomerHandler(repositories.NewCustomerRepository(db))
	s.sessionHandler = handlers.NewSessionHandler()
	s.adminHandler = handlers.NewAdminHandler(db)

	if s.Publisher != nil {
		saramaConfig, err := relay.NewSaramaConfig(&cfg.Broker)
		if err != nil {
			return nil, err
		}
		// One group per instance, so every instance consumes the whole
		// topic instead of splitting it with its peers.
		consumer, err := relay.NewConsumer(cfg.Broker.Brokers,
			relay.InstanceGroup(cfg.Broker.GroupID, instanceID),
			[]string{cfg.Broker.Topic}, saramaConfig, s.chatHandler)
		if err != nil {
			return nil, fmt.Errorf("failed to join broker consumer group: %w", err)
		}
		s.RelayConsumer = consumer
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s, nil
}

// StartRelay runs the consumer loop until ctx is cancelled. A no-op in
// single instance mode.
func (s *Server) StartRelay(ctx context.Context) {
	if s.RelayConsumer == nil {
		return
	}
	go func() {
		if err := s.RelayConsumer.Start(ctx); err != nil {
			log.Printf("Relay consumer stopped: %v", err)
		}
	}()
}

func (s *Server) Start() error {
	return s.Echo.Start(s.Config.Server.Addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.RelayConsumer != nil {
		if err := s.RelayConsumer.Close(); err != nil {
			log.Printf("Error closing relay consumer: %v", err)
		}
	}
	if s.Publisher != nil {
		if err := s.Publisher.Close(); err != nil {
			log.Printf("Error closing relay publisher: %v", err)
		}
	}
	if err := s.Redis.Close(); err != nil {
		log.Printf("Error closing redis client: %v", err)
	}
	return s.Echo.Shutdown(ctx)
}
