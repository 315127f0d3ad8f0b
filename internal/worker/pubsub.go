package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"
)

// Job types accepted on the subscription.
const (
	JobTypeCacheWarm   = "cache_warm"
	JobTypeHealthCheck = "health_check"
)

// ErrMalformedMessage marks a message whose payload cannot be decoded.
// Redelivery cannot fix it, so it is acked.
var ErrMalformedMessage = errors.New("malformed job message")

// JobMessage is the payload of a worker job.
type JobMessage struct {
	JobType  string   `json:"job_type"`
	RouteIDs []string `json:"route_ids,omitempty"`
}

// Runner is the work the Pub/Sub handler dispatches to.
type Runner interface {
	Run(ctx context.Context, routeIDs ...string) (*WarmResult, error)
	HealthCheck(ctx context.Context) error
}

var _ Runner = (*WarmJob)(nil)

// PubSubHandler handles Pub/Sub messages for the worker.
type PubSubHandler struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	processor        *Processor
	logger           zerolog.Logger
}

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	Runner           Runner
	Logger           zerolog.Logger
}

// NewPubSubHandler creates a new Pub/Sub handler.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)

	subscriber.ReceiveSettings.MaxOutstandingMessages = 10
	subscriber.ReceiveSettings.MaxExtension = 10 * time.Minute

	return &PubSubHandler{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		processor:        NewProcessor(cfg.Runner, cfg.Logger),
		logger:           cfg.Logger,
	}, nil
}

// Start begins processing Pub/Sub messages. It blocks until ctx is done.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().
		Str("subscription", h.subscriptionName).
		Msg("starting pubsub handler")

	return h.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		h.handleMessage(ctx, msg)
	})
}

// Close closes the Pub/Sub client.
func (h *PubSubHandler) Close() error {
	return h.client.Close()
}

func (h *PubSubHandler) handleMessage(ctx context.Context, msg *pubsub.Message) {
	logger := h.logger.With().
		Str("message_id", msg.ID).
		Str("publish_time", msg.PublishTime.Format(time.RFC3339)).
		Logger()

	logger.Debug().Msg("received pubsub message")

	err := h.processor.Process(logger.WithContext(ctx), msg.Data)
	if err != nil && !errors.Is(err, ErrMalformedMessage) {
		msg.Nack()
		return
	}
	msg.Ack()
}

// Processor decodes job messages and runs them. An error return means the
// message should be redelivered, unless it wraps ErrMalformedMessage.
type Processor struct {
	runner Runner
	logger zerolog.Logger
}

// NewProcessor creates a job processor.
func NewProcessor(runner Runner, logger zerolog.Logger) *Processor {
	return &Processor{runner: runner, logger: logger}
}

// Process handles one job payload.
func (p *Processor) Process(ctx context.Context, data []byte) error {
	startTime := time.Now()
	logger := p.logger
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		logger = *l
	}

	var job JobMessage
	if err := json.Unmarshal(data, &job); err != nil {
		logger.Error().Err(err).Msg("failed to parse message")
		return fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	var err error
	switch job.JobType {
	case JobTypeCacheWarm:
		err = p.handleCacheWarm(ctx, logger, job)
	case JobTypeHealthCheck:
		err = p.runner.HealthCheck(ctx)
	default:
		logger.Warn().Str("job_type", job.JobType).Msg("unknown job type")
		return nil
	}

	if err != nil {
		logger.Error().Err(err).Str("job_type", job.JobType).Msg("job failed")
		return err
	}

	logger.Info().
		Str("job_type", job.JobType).
		Dur("duration", time.Since(startTime)).
		Msg("job completed successfully")
	return nil
}

func (p *Processor) handleCacheWarm(ctx context.Context, logger zerolog.Logger, job JobMessage) error {
	result, err := p.runner.Run(ctx, job.RouteIDs...)
	if errors.Is(err, ErrNoRoutes) {
		logger.Info().Msg("catalog is empty, nothing to warm")
		return nil
	}
	if err != nil {
		return err
	}

	if result.Failed > result.Successful {
		return fmt.Errorf("too many warm failures: %d/%d", result.Failed, result.Total)
	}
	return nil
}
