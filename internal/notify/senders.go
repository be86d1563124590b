package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

// LogSender writes intents to the log. It is the default sink for local runs.
type LogSender struct {
	log *slog.Logger
}

func NewLogSender(log *slog.Logger) *LogSender {
	if log == nil {
		log = slog.Default()
	}
	return &LogSender{log: log.With(slog.String("component", "notify.log_sender"))}
}

func (s *LogSender) Send(ctx context.Context, in Intent) error {
	s.log.InfoContext(
		ctx,
		"notification",
		slog.String("recipient", in.Recipient),
		slog.String("subject", in.Subject),
		slog.String("template", in.Template),
		slog.Int("variables", len(in.Variables)),
	)
	return nil
}

// RedisSender publishes intents as JSON on a pub/sub channel for a mail worker.
type RedisSender struct {
	client  *redis.Client
	channel string
}

func NewRedisSender(client *redis.Client, channel string) *RedisSender {
	return &RedisSender{client: client, channel: channel}
}

func (s *RedisSender) Send(ctx context.Context, in Intent) error {
	data, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal intent: %w", err)
	}
	if err := s.client.Publish(ctx, s.channel, data).Err(); err != nil {
		return fmt.Errorf("publish intent: %w", err)
	}
	return nil
}

const TypeEmailNotification = "notification:email"

// NewEmailTask wraps in as an asynq task for the mail worker.
func NewEmailTask(in Intent) (*asynq.Task, error) {
	data, err := json.Marshal(in)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeEmailNotification, data, asynq.MaxRetry(5)), nil
}

// AsynqSender enqueues intents on an asynq queue. Delivery retries are the
// queue's business.
type AsynqSender struct {
	client *asynq.Client
	queue  string
}

func NewAsynqSender(client *asynq.Client, queue string) *AsynqSender {
	if queue == "" {
		queue = "notifications"
	}
	return &AsynqSender{client: client, queue: queue}
}

func (s *AsynqSender) Send(ctx context.Context, in Intent) error {
	task, err := NewEmailTask(in)
	if err != nil {
		return fmt.Errorf("build task: %w", err)
	}
	if _, err := s.client.EnqueueContext(ctx, task, asynq.Queue(s.queue)); err != nil {
		return fmt.Errorf("enqueue task: %w", err)
	}
	return nil
}
