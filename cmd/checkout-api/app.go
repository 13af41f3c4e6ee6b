package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/fjod/go_cart/internal/cart/cache"
	cartrepo "github.com/fjod/go_cart/internal/cart/repository"
	"github.com/fjod/go_cart/internal/cart/service"
	"github.com/fjod/go_cart/internal/checkout"
	"github.com/fjod/go_cart/internal/config"
	"github.com/fjod/go_cart/internal/gateway"
	apihttp "github.com/fjod/go_cart/internal/http"
	"github.com/fjod/go_cart/internal/lock"
	"github.com/fjod/go_cart/internal/metrics"
	"github.com/fjod/go_cart/internal/order"
	"github.com/fjod/go_cart/internal/outbox"
	"github.com/fjod/go_cart/internal/payment"
	"github.com/fjod/go_cart/internal/pricing"
	"github.com/fjod/go_cart/internal/repository"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

type app struct {
	cfg *config.Config
	log *logrus.Logger

	repo    *repository.Repository
	mongo   *mongo.Database
	redis   *redis.Client
	catalog *pricing.SQLiteCatalog
	rabbit  *amqp.Connection

	publisher outbox.Publisher
	poller    *outbox.Poller
	http      *http.Server
	grpc      *grpc.Server
	health    *health.Server
}

func newApp(ctx context.Context, cfg *config.Config, log *logrus.Logger) (_ *app, err error) {
	a := &app{cfg: cfg, log: log}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	creds := credentials(cfg)
	a.repo, err = repository.NewRepository(creds, log)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err = a.repo.RunMigrations(creds); err != nil {
		return nil, fmt.Errorf("postgres migrations: %w", err)
	}
	log.Info("Database migrations completed")

	a.mongo, err = cartrepo.OpenMongo(ctx, cartrepo.MongoOptions{
		URI:            cfg.Mongo.URI,
		Database:       cfg.Mongo.Database,
		MaxPoolSize:    cfg.Mongo.MaxPoolSize,
		ConnectTimeout: cfg.Mongo.ConnectTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	carts := cartrepo.NewMongoRepository(a.mongo)
	if err = carts.CreateIndexes(ctx); err != nil {
		return nil, fmt.Errorf("mongo indexes: %w", err)
	}

	a.redis = redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
	})

	a.catalog, err = openCatalog(cfg)
	if err != nil {
		return nil, err
	}
	repricer := pricing.NewRepricer(a.catalog, cfg.Catalog.Timeout)

	var locker lock.Locker = lock.NewKeyedMutex()
	if cfg.Lock.Driver == config.LockRedis {
		locker = lock.NewRedisLocker(a.redis, cfg.Lock.TTL, log)
	}

	gw := gateway.NewBreaker(
		gateway.NewSimulated(gateway.RandomStatus{SuccessRate: cfg.Gateway.SuccessRate}, cfg.Gateway.Latency),
		gateway.BreakerSettings{
			Name:             "payment-gateway",
			MaxRequests:      cfg.Gateway.BreakerMaxRequests,
			Interval:         cfg.Gateway.BreakerInterval,
			OpenTimeout:      cfg.Gateway.BreakerOpenTimeout,
			ConsecutiveFails: cfg.Gateway.BreakerFailures,
		},
		log,
	)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg, "checkout")

	cartService := service.NewCartService(carts, cache.NewRedisCache(a.redis, cfg.Redis.CartTTL), cartrepo.NewMongoAddressBook(a.mongo), repricer, locker, log)
	checkoutCoordinator := checkout.NewCoordinator(cartService, a.repo, repricer, locker, m, log)
	orderService := order.NewService(a.repo, log)
	paymentCoordinator := payment.NewCoordinator(a.repo, a.repo, repricer, gw, locker, payment.Timeouts{
		Gateway:  cfg.Gateway.Timeout,
		Finalize: cfg.Gateway.FinalizeTimeout,
	}, m, log)

	a.publisher, err = a.newPublisher()
	if err != nil {
		return nil, err
	}
	a.poller = outbox.NewPoller(a.repo, a.publisher, outbox.Config{
		EventTick:  cfg.Outbox.EventTick,
		StaleTick:  cfg.Outbox.StaleTick,
		StaleAfter: cfg.Outbox.StaleAfter,
		BatchSize:  cfg.Outbox.BatchSize,
	}, m, log)

	timeout := cfg.HTTP.RequestTimeout
	router := apihttp.NewRouter(apihttp.Handlers{
		Cart:     apihttp.NewCartHandler(cartService, timeout, log),
		Checkout: apihttp.NewCheckoutHandler(checkoutCoordinator, timeout, log),
		Orders:   apihttp.NewOrdersHandler(orderService, timeout, log),
		Payments: apihttp.NewPaymentsHandler(paymentCoordinator, timeout, log),
	}, apihttp.RouterConfig{
		Metrics:        m,
		Gatherer:       reg,
		RequestTimeout: timeout,
		Log:            log,
		AdminToken:     cfg.HTTP.AdminToken,
		Checks: map[string]apihttp.Pinger{
			"postgres": a.repo.Ping,
			"mongo":    func(ctx context.Context) error { return a.mongo.Client().Ping(ctx, nil) },
			"redis":    func(ctx context.Context) error { return a.redis.Ping(ctx).Err() },
		},
	})

	a.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           otelhttp.NewHandler(router, "checkout-api"),
		ReadHeaderTimeout: 10 * time.Second,
	}

	a.grpc = grpc.NewServer()
	a.health = health.NewServer()
	healthpb.RegisterHealthServer(a.grpc, a.health)
	reflection.Register(a.grpc)

	return a, nil
}

func openCatalog(cfg *config.Config) (*pricing.SQLiteCatalog, error) {
	catalog, err := pricing.NewSQLiteCatalog(cfg.Catalog.Path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	if err := catalog.RunMigrations(); err != nil {
		catalog.Close()
		return nil, fmt.Errorf("catalog migrations: %w", err)
	}
	return catalog, nil
}

func (a *app) newPublisher() (outbox.Publisher, error) {
	switch a.cfg.Broker.Kind {
	case config.BrokerKafka:
		return outbox.NewKafkaPublisher(a.cfg.Broker.KafkaTopic, a.cfg.Broker.KafkaBrokers...), nil
	case config.BrokerRabbitMQ:
		conn, err := amqp.Dial(a.cfg.Broker.RabbitURL)
		if err != nil {
			return nil, fmt.Errorf("connect rabbitmq: %w", err)
		}
		a.rabbit = conn
		return outbox.NewRabbitPublisher(conn, a.cfg.Broker.RabbitExchange)
	default:
		return outbox.NewLogPublisher(a.log.WithField("component", "outbox")), nil
	}
}

func (a *app) run(ctx context.Context) error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", a.cfg.GRPCHealthPort))
	if err != nil {
		return fmt.Errorf("listen grpc health: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.log.Infof("HTTP API listening on %s", a.http.Addr)
		if err := a.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		a.log.Infof("gRPC health listening on %s", lis.Addr())
		a.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
		return a.grpc.Serve(lis)
	})

	g.Go(func() error {
		a.poller.Run(ctx)
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		a.log.Info("Shutting down checkout-api...")
		a.health.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTP.ShutdownTimeout)
		defer cancel()
		err := a.http.Shutdown(shutdownCtx)
		a.grpc.GracefulStop()
		return err
	})

	return g.Wait()
}

func (a *app) close() {
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.log.WithError(err).Warn("failed to close publisher")
		}
	}
	if a.rabbit != nil {
		_ = a.rabbit.Close()
	}
	if a.catalog != nil {
		_ = a.catalog.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.mongo != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.mongo.Client().Disconnect(ctx)
	}
	if a.repo != nil {
		_ = a.repo.Close()
	}
	a.log.Info("checkout-api stopped")
}
