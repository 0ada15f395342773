// run-events-consumer tails the run lifecycle stream and keeps
// per-run counters in Redis so dashboards can watch progress without
// touching the ledger service.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultStream = "xray:run-events"
	consumerGroup = "run-events-consumer-group"
	consumerName  = "consumer-1"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	rdb := redis.NewClient(&redis.Options{
		Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
		Password: os.Getenv("REDIS_PASSWORD"),
	})

	ctx := context.Background()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	logger.Info("connected to redis", "addr", rdb.Options().Addr)

	consumer := &Consumer{
		redis:  rdb,
		stream: getEnv("REDIS_STREAM", defaultStream),
		logger: logger,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(ctx)
	go func() {
		<-sigChan
		logger.Info("shutting down...")
		cancel()
	}()

	if err := consumer.Run(ctx); err != nil && err != context.Canceled {
		log.Fatalf("Consumer error: %v", err)
	}
}

type Consumer struct {
	redis  *redis.Client
	stream string
	logger *slog.Logger
}

func (c *Consumer) Run(ctx context.Context) error {
	// Create consumer group (ignore error if already exists)
	c.redis.XGroupCreate(ctx, c.stream, consumerGroup, "0").Err()

	c.logger.Info("starting consumer", "stream", c.stream, "group", consumerGroup)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			streams, err := c.redis.XReadGroup(ctx, &redis.XReadGroupArgs{
				Group:    consumerGroup,
				Consumer: consumerName,
				Streams:  []string{c.stream, ">"},
				Count:    10,
				Block:    5 * time.Second,
			}).Result()

			if err != nil {
				if err == redis.Nil {
					continue
				}
				if ctx.Err() != nil {
					return ctx.Err()
				}
				c.logger.Error("failed to read from stream", "error", err)
				time.Sleep(time.Second)
				continue
			}

			for _, stream := range streams {
				for _, message := range stream.Messages {
					if err := c.processMessage(ctx, message); err != nil {
						c.logger.Error("failed to process message", "id", message.ID, "error", err)
						continue
					}

					if err := c.redis.XAck(ctx, c.stream, consumerGroup, message.ID).Err(); err != nil {
						c.logger.Error("failed to acknowledge message", "id", message.ID, "error", err)
					}
				}
			}
		}
	}
}

func (c *Consumer) processMessage(ctx context.Context, msg redis.XMessage) error {
	eventType, _ := msg.Values["event_type"].(string)
	runID, _ := msg.Values["aggregate_id"].(string)
	if eventType == "" || runID == "" {
		return fmt.Errorf("message %s lacks event_type or aggregate_id", msg.ID)
	}

	dataStr, _ := msg.Values["data"].(string)
	var envelope struct {
		Payload map[string]interface{} `json:"payload"`
	}
	if dataStr != "" {
		if err := json.Unmarshal([]byte(dataStr), &envelope); err != nil {
			return fmt.Errorf("failed to parse stream data: %w", err)
		}
	}

	counterKey := "xray:run-progress:" + runID

	switch eventType {
	case "RUN_STARTED":
		if err := c.redis.HSet(ctx, counterKey,
			"status", "running",
			"rows_written", 0,
			"failures", 0,
		).Err(); err != nil {
			return err
		}
		c.redis.Expire(ctx, counterKey, 7*24*time.Hour)
	case "ROW_WRITTEN":
		if err := c.redis.HIncrBy(ctx, counterKey, "rows_written", 1).Err(); err != nil {
			return err
		}
	case "PRODUCT_FAILED":
		if err := c.redis.HIncrBy(ctx, counterKey, "failures", 1).Err(); err != nil {
			return err
		}
	case "RUN_COMPLETED":
		if err := c.redis.HSet(ctx, counterKey, "status", "completed").Err(); err != nil {
			return err
		}
	default:
		c.logger.Debug("ignoring event", "type", eventType, "id", msg.ID)
		return nil
	}

	c.logger.Info("event processed",
		"type", eventType,
		"run_id", runID,
		"message_id", msg.ID,
		"payload_keys", len(envelope.Payload),
	)

	return nil
}
