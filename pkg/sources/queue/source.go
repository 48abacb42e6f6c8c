// Package queue provides a Redis-backed run source: each message popped off a
// list asks for one workflow run.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/batutahq/batuta/pkg/protocol"
)

const popTimeout = 1 * time.Second

// RunMessage is the expected queue payload. WorkflowVersion zero means the
// latest registered version.
type RunMessage struct {
	WorkflowName    string         `json:"workflow_name"`
	WorkflowVersion int            `json:"workflow_version"`
	Input           map[string]any `json:"input,omitempty"`
}

type Source struct {
	Queue      string
	Connection map[string]string

	client   redis.UniversalClient
	callback protocol.RunCallback
	logger   *slog.Logger
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

func NewSource(queue string, connection map[string]string, logger *slog.Logger) *Source {
	return &Source{
		Queue:      queue,
		Connection: connection,
		stopCh:     make(chan struct{}),
		logger: logger.With(
			"module", "queue_source",
			"queue", queue,
		),
	}
}

func (s *Source) Validate(_ context.Context) error {
	if s.Queue == "" {
		return errors.New("queue source queue name is required")
	}

	return nil
}

func (s *Source) Start(ctx context.Context, callback protocol.RunCallback) error {
	s.logger.InfoContext(ctx, "Starting queue source")
	s.callback = callback

	err := s.initializeClient(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize queue client: %w", err)
	}

	s.wg.Add(1)

	go s.consume(ctx)

	return nil
}

func (s *Source) Stop(ctx context.Context) error {
	s.logger.InfoContext(ctx, "Stopping queue source")

	close(s.stopCh)
	s.wg.Wait()

	if s.client != nil {
		return s.client.Close()
	}

	return nil
}

func (s *Source) initializeClient(ctx context.Context) error {
	addr := s.Connection["addr"]
	if addr == "" {
		addr = "localhost:6379"
	}

	db := 0

	if dbStr := s.Connection["db"]; dbStr != "" {
		parsed, err := strconv.Atoi(dbStr)
		if err != nil {
			return fmt.Errorf("invalid db value: %w", err)
		}

		db = parsed
	}

	s.client = redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: s.Connection["password"],
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := s.client.Ping(pingCtx).Err()
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	s.logger.InfoContext(ctx, "Connected to Redis", "addr", addr, "db", db)

	return nil
}

func (s *Source) consume(ctx context.Context) {
	defer s.wg.Done()

	s.logger.InfoContext(ctx, "Starting queue consumer")

	for {
		select {
		case <-s.stopCh:
			s.logger.InfoContext(ctx, "Queue consumer stopped")

			return
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "Context cancelled, stopping queue consumer")

			return
		default:
			err := s.processMessage(ctx)
			if err != nil {
				s.logger.ErrorContext(ctx, "Error processing message", "error", err)
				time.Sleep(1 * time.Second)
			}
		}
	}
}

func (s *Source) processMessage(ctx context.Context) error {
	result, err := s.client.BLPop(ctx, popTimeout, s.Queue).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}

		return fmt.Errorf("failed to pop message from queue: %w", err)
	}

	if len(result) < 2 {
		return nil
	}

	raw := result[1]
	s.logger.InfoContext(ctx, "Received message from queue")

	var message RunMessage
	if err := json.Unmarshal([]byte(raw), &message); err != nil {
		return fmt.Errorf("invalid run message: %w", err)
	}

	if message.WorkflowName == "" {
		return errors.New("run message missing workflow_name")
	}

	go func() {
		err := s.callback(ctx, message.WorkflowName, message.WorkflowVersion, message.Input)
		if err != nil {
			s.logger.ErrorContext(ctx, "Error requesting run from queue message",
				"workflow_name", message.WorkflowName, "error", err)
		}
	}()

	return nil
}
