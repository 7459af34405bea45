package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Handler runs one job. A nil return acknowledges the message; an error
// leaves it pending for redelivery.
type Handler func(ctx context.Context, jobID string) error

// Subscriber reads import requests as a member of a consumer group.
type Subscriber struct {
	client        *redis.Client
	group         string
	consumer      string
	stream        string
	handler       Handler
	batchSize     int64
	blockDuration time.Duration
}

type SubscriberConfig struct {
	Group         string
	Consumer      string
	Stream        string
	Handler       Handler
	BatchSize     int64
	BlockDuration time.Duration
}

func NewSubscriber(client *redis.Client, config SubscriberConfig) *Subscriber {
	if config.BatchSize == 0 {
		config.BatchSize = 1
	}
	if config.BlockDuration == 0 {
		config.BlockDuration = 5 * time.Second
	}
	return &Subscriber{
		client:        client,
		group:         config.Group,
		consumer:      config.Consumer,
		stream:        config.Stream,
		handler:       config.Handler,
		batchSize:     config.BatchSize,
		blockDuration: config.BlockDuration,
	}
}

// Run consumes until ctx is done. Messages left pending by an earlier
// crash of this consumer are handled first.
func (s *Subscriber) Run(ctx context.Context) error {
	err := s.client.XGroupCreateMkStream(ctx, s.stream, s.group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create consumer group: %w", err)
	}

	logger := slog.With("stream", s.stream, "group", s.group, "consumer", s.consumer)
	logger.Info("import subscriber started")

	start := "0"
	for {
		select {
		case <-ctx.Done():
			logger.Info("import subscriber stopping")
			return nil
		default:
		}

		n, err := s.read(ctx, start)
		switch {
		case errors.Is(err, context.Canceled):
			return nil
		case err != nil:
			logger.Error("read import requests", "error", err)
			time.Sleep(time.Second)
		case start == "0" && n == 0:
			start = ">"
		}
	}
}

// read handles one batch. start is "0" to replay this consumer's pending
// messages or ">" for new ones.
func (s *Subscriber) read(ctx context.Context, start string) (int, error) {
	streams, err := s.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    s.group,
		Consumer: s.consumer,
		Streams:  []string{s.stream, start},
		Count:    s.batchSize,
		Block:    s.blockDuration,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	n := 0
	for _, stream := range streams {
		for _, msg := range stream.Messages {
			n++
			if err := s.process(ctx, msg); err != nil {
				slog.Warn("import request not acknowledged", "message_id", msg.ID, "error", err)
				continue
			}
			if err := s.client.XAck(ctx, s.stream, s.group, msg.ID).Err(); err != nil {
				slog.Error("ack import request", "message_id", msg.ID, "error", err)
			}
		}
	}
	return n, nil
}

// process runs the job named by msg. Malformed messages are logged and
// acknowledged, since redelivery cannot repair them.
func (s *Subscriber) process(ctx context.Context, msg redis.XMessage) error {
	ev, err := decode(msg)
	if err != nil {
		slog.Error("dropping malformed import request", "message_id", msg.ID, "error", err)
		return nil
	}
	return s.handler(ctx, ev.JobID)
}
