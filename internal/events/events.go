// Package events carries import requests over a Redis stream so uploads
// and runs can happen in different processes.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// TypeImportRequested is published once per submitted job.
const TypeImportRequested = "import.requested"

// Event is the JSON body of a stream entry's "event" field.
type Event struct {
	Type      string    `json:"type"`
	JobID     string    `json:"job_id"`
	Timestamp time.Time `json:"timestamp"`
}

var errBadMessage = errors.New("invalid message format")

// NewClient connects to Redis and verifies the connection.
func NewClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return rdb, nil
}

func decode(msg redis.XMessage) (Event, error) {
	raw, ok := msg.Values["event"].(string)
	if !ok {
		return Event{}, errBadMessage
	}
	var ev Event
	if err := json.Unmarshal([]byte(raw), &ev); err != nil {
		return Event{}, fmt.Errorf("unmarshal event: %w", err)
	}
	if ev.Type != TypeImportRequested || ev.JobID == "" {
		return Event{}, fmt.Errorf("%w: type %q job %q", errBadMessage, ev.Type, ev.JobID)
	}
	return ev, nil
}
