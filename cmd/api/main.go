package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/safar/hive-store/internal/backend"
	"github.com/safar/hive-store/internal/catalog"
	"github.com/safar/hive-store/internal/checkout"
	"github.com/safar/hive-store/internal/config"
	"github.com/safar/hive-store/internal/events"
	"github.com/safar/hive-store/internal/httpapi"
	"github.com/safar/hive-store/internal/logging"
	"github.com/safar/hive-store/internal/metrics"
	"github.com/safar/hive-store/internal/seed"
	"github.com/safar/hive-store/internal/stats"
	"github.com/safar/hive-store/internal/verification"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Load config: %v", err)
	}

	log := logging.New(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := backend.Open(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("open store")
	}
	defer st.Close()

	if cfg.Store.SeedDemo {
		if err := seed.Run(ctx, st, log); err != nil {
			log.WithError(err).Fatal("seed demo data")
		}
	}

	codes, closeCodes, err := backend.OpenCodes(ctx, cfg, st, log)
	if err != nil {
		log.WithError(err).Fatal("open verification code store")
	}
	defer closeCodes()

	publishers := []events.Publisher{events.NewLogPublisher(log)}
	if len(cfg.Kafka.Brokers) > 0 {
		kp := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer kp.Close()
		publishers = append(publishers, kp)
		log.WithFields(logrus.Fields{"brokers": cfg.Kafka.Brokers, "topic": cfg.Kafka.Topic}).Info("publishing order events to kafka")
	}

	m := metrics.NewRegistry()

	h := httpapi.New(httpapi.Deps{
		Catalog:      catalog.NewService(st, m, log),
		Checkout:     checkout.NewService(st, events.NewMultiPublisher(publishers...), m, log),
		Stats:        stats.NewService(st),
		Verification: verification.NewService(codes, verification.NewLogSender(log), m, log),
		Orders:       st,
		Metrics:      m,
		Log:          log,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      h.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.WithField("port", cfg.Server.Port).Info("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server error")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("server forced to shutdown")
	}
}
