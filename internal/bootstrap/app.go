package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aq2208/storefront-api/configs"
	"github.com/aq2208/storefront-api/internal/adapter/cache"
	grpcadapter "github.com/aq2208/storefront-api/internal/adapter/grpc"
	httpadapter "github.com/aq2208/storefront-api/internal/adapter/http"
	"github.com/aq2208/storefront-api/internal/adapter/http/middleware"
	"github.com/aq2208/storefront-api/internal/adapter/kafka"
	"github.com/aq2208/storefront-api/internal/adapter/queue"
	"github.com/aq2208/storefront-api/internal/adapter/repo"
	"github.com/aq2208/storefront-api/internal/logging"
	"github.com/aq2208/storefront-api/internal/security"
	"github.com/aq2208/storefront-api/internal/usecase"
	"github.com/gin-gonic/gin"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
)

// Worker is a background loop that runs until ctx is cancelled.
type Worker func(ctx context.Context) error

type App struct {
	Router  *gin.Engine
	Health  *grpcadapter.HealthServer
	Workers []Worker
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

// InitWithConfig builds the component graph. Redis, RabbitMQ and Kafka are
// wired only when enabled; the use cases run without them.
func InitWithConfig(ctx context.Context, cfg configs.Config) (*App, func(), error) {
	log := logging.New("bootstrap")
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*App, func(), error) {
		cleanup()
		return nil, nil, err
	}

	// init database
	dialect, err := repo.ParseDialect(cfg.Database.Driver)
	if err != nil {
		return fail(err)
	}
	if dialect == repo.SQLite {
		ensureSQLiteDir(cfg.Database.DSN)
	}
	db, err := repo.Open(ctx, repo.Options{
		Dialect:         dialect,
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return fail(fmt.Errorf("open database: %w", err))
	}
	closers = append(closers, func() { _ = db.Close() })
	store := repo.NewSQLStore(db, dialect)
	probes := []grpcadapter.Pinger{store}
	log.Info("database ready", "driver", dialect)

	// optional infra; interfaces stay nil when disabled
	var (
		orderCache usecase.OrderCache
		idem       usecase.IdempotencyStore
		events     usecase.EventPublisher
		workers    []Worker
	)

	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return fail(fmt.Errorf("redis ping: %w", err))
		}
		closers = append(closers, func() { _ = rdb.Close() })
		orderCache = cache.NewRedisCache(rdb, cfg.Cache.TTL).WithInvalidationWindow(cfg.Cache.InvalidationWindow)
		idem = cache.NewRedisIdempotencyStore(rdb, cfg.Idempotency.TTL)
		probes = append(probes, pingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() }))
		log.Info("redis ready", "addr", cfg.Redis.Addr)
	}

	var conn *amqp.Connection
	if cfg.Rabbit.Enabled {
		conn, err = amqp.Dial(cfg.Rabbit.URL)
		if err != nil {
			return fail(fmt.Errorf("rabbitmq dial: %w", err))
		}
		closers = append(closers, func() { _ = conn.Close() })
		pubCh, err := conn.Channel()
		if err != nil {
			return fail(fmt.Errorf("rabbitmq channel: %w", err))
		}
		producer, err := queue.NewRabbitProducer(pubCh, cfg.Rabbit.Exchange)
		if err != nil {
			return fail(err)
		}
		events = producer
		probes = append(probes, pingFunc(func(context.Context) error {
			if conn.IsClosed() {
				return errors.New("rabbitmq connection closed")
			}
			return nil
		}))
		log.Info("rabbitmq ready", "exchange", cfg.Rabbit.Exchange)
	}

	// use cases
	maxPage := cfg.Orders.MaxPageSize
	placeOrder := usecase.NewPlaceOrder(store.Users(), store.Orders(), store,
		usecase.WithIdempotency(idem),
		usecase.WithPlacementCache(orderCache),
		usecase.WithPlacementEvents(events),
	)
	queries := usecase.NewOrderQueries(store.Orders(), orderCache, maxPage)
	updateStatus := usecase.NewUpdateStatus(store.Orders(), orderCache, events, cfg.Orders.StrictTransitions)
	deleteOrder := usecase.NewDeleteOrder(store.Orders(), orderCache)
	catalog := usecase.NewCatalog(store.Products(), maxPage)
	stats := usecase.NewStats(store.Products(), store.Orders())
	accounts := usecase.NewAccounts(store.Users(), security.BcryptHasher{})
	userAdmin := usecase.NewUserAdmin(store.Users(), maxPage)

	seed := usecase.RegisterInput{Email: cfg.Seed.AdminEmail, Password: cfg.Seed.AdminPassword}
	if cfg.Seed.AdminPassword != "" {
		seed.Username = cfg.Seed.AdminUsername
	}
	if err := accounts.SeedAdmin(ctx, seed); err != nil {
		return fail(fmt.Errorf("seed admin: %w", err))
	}

	// consumers; order.placed.q only exists while there is a cache to warm
	if conn != nil && orderCache != nil {
		subCh, err := conn.Channel()
		if err != nil {
			return fail(fmt.Errorf("rabbitmq channel: %w", err))
		}
		router := queue.NewRouter(subCh,
			queue.WithExchange(cfg.Rabbit.Exchange),
			queue.WithPrefetch(cfg.Rabbit.Prefetch),
		)
		router.Register(queue.QueueOrderPlaced, queue.RoutingOrderPlaced, queue.NewOrderPlacedHandler(store.Orders(), orderCache).Handler())
		workers = append(workers, func(ctx context.Context) error {
			if err := router.Start(ctx); err != nil {
				return fmt.Errorf("rabbitmq consumers: %w", err)
			}
			<-ctx.Done()
			return nil
		})
	}

	if cfg.Kafka.Enabled {
		grp, err := kafka.NewGroup(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.ClientID)
		if err != nil {
			return fail(fmt.Errorf("kafka group: %w", err))
		}
		closers = append(closers, func() { _ = grp.Close() })
		h := kafka.NewFulfillmentStatusHandler(updateStatus)
		consumer := kafka.NewConsumer(grp, []string{cfg.Kafka.Topic}, h.Handle)
		workers = append(workers, consumer.Start)
		log.Info("kafka consumer configured", "topic", cfg.Kafka.Topic)
	}

	// transport
	keys, err := security.LoadKeyMaterial(cfg.Security.JWTSecret, cfg.Security.RSAPubPEM, cfg.Security.RSAPriPEM)
	if err != nil {
		return fail(fmt.Errorf("load keys: %w", err))
	}
	tokens := security.NewTokenService(keys, cfg.Security.Issuer, cfg.Security.Audience, cfg.Security.TTL)

	pages := httpadapter.PageDefaults{Size: cfg.Orders.DefaultPageSize}
	router := httpadapter.NewRouter(httpadapter.Handlers{
		Auth:     httpadapter.NewAuthHandler(accounts, tokens),
		Orders:   httpadapter.NewOrderHandler(placeOrder, queries, pages),
		Admin:    httpadapter.NewAdminHandler(queries, updateStatus, deleteOrder, stats, pages),
		Products: httpadapter.NewProductHandler(catalog, pages),
		Users:    httpadapter.NewUserHandler(userAdmin, pages),
	}, middleware.NewAuthz(tokens), logging.New("http"), store)

	health, err := grpcadapter.NewHealthServer(grpcadapter.ServerOptions{
		CertFile: cfg.GRPC.CertFile,
		KeyFile:  cfg.GRPC.KeyFile,
		Interval: cfg.GRPC.HealthInterval,
	}, probes...)
	if err != nil {
		return fail(fmt.Errorf("grpc health server: %w", err))
	}

	return &App{Router: router, Health: health, Workers: workers}, cleanup, nil
}

func ensureSQLiteDir(dsn string) {
	path, _, _ := strings.Cut(dsn, "?")
	if path == "" || strings.HasPrefix(path, ":memory:") || strings.HasPrefix(path, "file:") {
		return
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		logging.New("bootstrap").Warn("create sqlite dir", "err", err)
	}
}
