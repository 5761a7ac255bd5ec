package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/zuhaib446/nayab-gemstone/internal/auth"
	"github.com/zuhaib446/nayab-gemstone/internal/checkout"
	"github.com/zuhaib446/nayab-gemstone/internal/config"
	storefrontgrpc "github.com/zuhaib446/nayab-gemstone/internal/grpc"
	h "github.com/zuhaib446/nayab-gemstone/internal/http"
	"github.com/zuhaib446/nayab-gemstone/internal/orders/publisher"
	"github.com/zuhaib446/nayab-gemstone/internal/payment"
	"github.com/zuhaib446/nayab-gemstone/pkg/logger"
	"github.com/zuhaib446/nayab-gemstone/pkg/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(os.Stdout, "storefront", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("storefront stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("storefront stopped")
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	deps, err := openDependencies(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer deps.close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewServerMetrics(reg, "storefront")

	var provider payment.Provider = payment.NewMockProvider()
	if cfg.StripeSecretKey != "" {
		provider = payment.NewStripeProvider(cfg.StripeSecretKey)
	} else {
		log.Warn("STRIPE_SECRET_KEY not set, using mock payment provider")
	}
	provider = payment.NewBreakerProvider(provider, log)

	svc := checkout.NewService(deps.catalog, deps.orders, cfg.Currency, m, log)

	router := h.NewRouter(
		h.RouterConfig{
			RequestTimeout:     cfg.RequestTimeout,
			MaxRequestBodySize: cfg.MaxRequestBodySize,
			CartTTL:            cfg.CartTTL,
		},
		h.Handlers{
			Products: h.NewProductHandler(deps.catalog, cfg.RequestTimeout, log),
			Cart:     h.NewCartHandler(deps.carts, deps.catalog, cfg.RequestTimeout, log),
			Orders:   h.NewOrdersHandler(svc, deps.orders, deps.carts, cfg.RequestTimeout, log),
			Payment:  h.NewPaymentHandler(provider, cfg.Currency, cfg.RequestTimeout, log),
		},
		auth.NewJWTResolver(cfg.JWTSecret), m, log,
	)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	grpcServer, healthServer := storefrontgrpc.NewServer()
	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		return fmt.Errorf("listen grpc: %w", err)
	}
	reporter := storefrontgrpc.NewHealthReporter(healthServer, deps.checks, log)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("http server starting", "port", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		log.Info("grpc health server starting", "port", cfg.GRPCPort)
		if err := grpcServer.Serve(lis); err != nil {
			return fmt.Errorf("grpc server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		reporter.Run(gctx)
		return nil
	})
	if deps.outbox != nil && len(cfg.KafkaBrokers) > 0 {
		poller := publisher.NewOutboxPoller(deps.outbox, publisher.NewKafkaWriter(cfg.KafkaTopic, cfg.KafkaBrokers...), log)
		g.Go(func() error {
			poller.Run(gctx)
			return nil
		})
	} else {
		log.Info("order event publishing disabled")
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		err := srv.Shutdown(shutdownCtx)
		grpcServer.GracefulStop()
		if err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}
