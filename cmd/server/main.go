package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vedran77/relay/internal/cache"
	"github.com/vedran77/relay/internal/config"
	"github.com/vedran77/relay/internal/database"
	"github.com/vedran77/relay/internal/logger"
	"github.com/vedran77/relay/internal/repository"
	"github.com/vedran77/relay/internal/repository/memory"
	"github.com/vedran77/relay/internal/repository/mongostore"
	postgresrepo "github.com/vedran77/relay/internal/repository/postgres"
	"github.com/vedran77/relay/internal/service"
	"github.com/vedran77/relay/internal/transport/http/handlers"
	"github.com/vedran77/relay/internal/transport/ws"
)

type stores struct {
	users         repository.UserRepository
	conversations repository.ConversationRepository
	messages      repository.MessageRepository
	close         func()
}

func main() {
	cfg := config.Load()

	zlog, err := logger.New(cfg.IsDevelopment())
	if err != nil {
		log.Fatal(err)
	}
	defer zlog.Sync()

	if err := run(cfg, zlog); err != nil {
		zlog.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, zlog *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg, zlog)
	if err != nil {
		return err
	}
	defer st.close()

	// Optional user cache
	userRepo := st.users
	if cfg.RedisURL != "" {
		redisCache, err := cache.NewRedisCache(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer redisCache.Close()
		userRepo = cache.NewUserRepo(st.users, redisCache, cfg.UserCacheTTL, zlog)
		zlog.Info("user cache enabled", zap.Duration("ttl", cfg.UserCacheTTL))
	}

	// Real-time hub
	hub := ws.NewHub(zlog)
	notifier := ws.NewHubNotifier(hub)

	// Services
	authService := service.NewAuthService(userRepo, cfg.JWTSecret, zlog)
	userService := service.NewUserService(userRepo)
	chatService := service.NewChatService(st.conversations, userRepo, zlog)
	chatService.SetNotifier(notifier)
	messageService := service.NewMessageService(st.messages, st.conversations, zlog)
	messageService.SetNotifier(notifier)

	router := handlers.NewRouter(handlers.RouterDeps{
		Logger:         zlog,
		JWTSecret:      cfg.JWTSecret,
		AllowedOrigins: cfg.AllowedOrigins,
		Auth:           handlers.NewAuthHandler(authService, zlog),
		Users:          handlers.NewUserHandler(userService, zlog),
		Chats:          handlers.NewChatHandler(chatService, zlog),
		Messages:       handlers.NewMessageHandler(messageService, zlog),
		WS:             ws.ServeWS(hub, cfg.JWTSecret, cfg.AllowedOrigins),
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.ServerPort),
		Handler: router,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		zlog.Info("starting server", zap.String("addr", srv.Addr), zap.String("store", cfg.StoreDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		zlog.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		// Hijacked sockets are invisible to Shutdown, so close them first.
		hub.Close()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func openStores(ctx context.Context, cfg *config.Config, zlog *zap.Logger) (*stores, error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		pool, err := database.ConnectPostgres(ctx, cfg)
		if err != nil {
			return nil, err
		}
		if err := database.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		zlog.Info("connected to postgres")
		return &stores{
			users:         postgresrepo.NewUserRepo(pool),
			conversations: postgresrepo.NewConversationRepo(pool),
			messages:      postgresrepo.NewMessageRepo(pool),
			close:         pool.Close,
		}, nil

	case config.DriverMongo:
		db, err := database.ConnectMongo(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		store := mongostore.NewStore(db, zlog)
		if err := store.EnsureIndexes(ctx); err != nil {
			_ = db.Client().Disconnect(context.Background())
			return nil, err
		}
		zlog.Info("connected to mongo", zap.String("database", cfg.MongoDatabase))
		return &stores{
			users:         store.Users(),
			conversations: store.Conversations(),
			messages:      store.Messages(),
			close: func() {
				if err := db.Client().Disconnect(context.Background()); err != nil {
					zlog.Warn("mongo disconnect", zap.Error(err))
				}
			},
		}, nil

	case config.DriverMemory:
		zlog.Warn("using in-memory store; data is lost on restart")
		store := memory.NewStore()
		return &stores{
			users:         store.Users(),
			conversations: store.Conversations(),
			messages:      store.Messages(),
			close:         func() {},
		}, nil

	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}
}
