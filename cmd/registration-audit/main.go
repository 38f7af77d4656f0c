package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"ms-events/internal/config"
	"ms-events/internal/kafka"
	"ms-events/internal/logger"
	"ms-events/internal/models"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load() // Loads .env file if present
	cfg := config.Load()

	log, err := logger.NewLogger(cfg.Log.Dir, "registration-audit", cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if topics, err := kafka.ListTopics(ctx, cfg.Kafka.Brokers); err != nil {
		log.Warn("KAFKA", fmt.Sprintf("Could not list topics: %v", err))
	} else {
		log.Info("KAFKA", fmt.Sprintf("Broker has %d topics", len(topics)))
	}

	topics := []string{cfg.Kafka.Topics.RegistrationCreated, cfg.Kafka.Topics.RegistrationCancelled}
	consumer := kafka.NewConsumer(cfg.Kafka.Brokers, topics, cfg.Kafka.GroupID, log)
	defer consumer.Close()

	counts := map[string]int{}
	err = consumer.Start(ctx, func(msg models.RegistrationMessage) error {
		counts[msg.Type]++
		log.LogRegistration(msg.Type, msg.EventID, msg.Email)
		return nil
	})
	if err != nil {
		log.Error("KAFKA", fmt.Sprintf("Consumer stopped: %v", err))
	}

	log.Info("APP", fmt.Sprintf("Audit stopped: created=%d cancelled=%d",
		counts[models.MessageRegistrationCreated], counts[models.MessageRegistrationCancelled]))
}
