package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sethvargo/go-retry"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/contabank/ledger/internal/config"
	"github.com/contabank/ledger/internal/ledger"
	"github.com/contabank/ledger/internal/logging"
	"github.com/contabank/ledger/internal/models"
)

var _ ledger.WithdrawalJobsPublisher = (*Publisher)(nil)

// Publisher pushes withdrawal jobs to the durable queue. Messages are
// keyed by account uuid so jobs of one account land on one partition
// and keep their order. A publish is confirmed by all replicas before
// it is reported as accepted; anything else surfaces as
// models.ErrQueueUnavailable.
type Publisher struct {
	lg      *logging.ZapLogger
	writer  *kafka.Writer
	retries uint64
	backoff time.Duration
}

func NewPublisher(
	lc fx.Lifecycle,
	lg *logging.ZapLogger,
	cfg *Config,
	globalCFG *config.Config,
	errLogger *logging.KafkaErrorLogger,
	logger *logging.KafkaLogger,
) *Publisher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(globalCFG.KafkaBrokers...),
		Topic:        cfg.KafkaWithdrawalJobsTopic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		ErrorLogger:  errLogger,
		Logger:       logger,
	}

	pub := &Publisher{
		lg:      lg,
		writer:  w,
		retries: uint64(cfg.PublishMaxRetries),
		backoff: time.Duration(cfg.PublishBackoffInterval) * time.Millisecond,
	}

	lc.Append(
		fx.Hook{
			OnStop: func(ctx context.Context) error {
				return pub.writer.Close()
			},
		},
	)

	return pub
}

func (pub *Publisher) Publish(ctx context.Context, job *models.WithdrawalJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("queue/publisher: marshal job error %w", err)
	}

	backoff := retry.WithMaxRetries(pub.retries, retry.NewExponential(pub.backoff))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := pub.writer.WriteMessages(ctx, kafka.Message{Key: []byte(job.AccountUUID), Value: data}); err != nil {
			return retry.RetryableError(err)
		}

		return nil
	})
	if err != nil {
		pub.lg.ErrorCtx(ctx, "queue/publisher: write message failed", zap.Error(err), zap.String("job_uuid", job.UUID))
		return fmt.Errorf("queue/publisher: write message error %w", models.ErrQueueUnavailable)
	}

	return nil
}
