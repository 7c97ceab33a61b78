package withdrawals

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/contabank/ledger/internal/config"
	"github.com/contabank/ledger/internal/logging"
	"github.com/contabank/ledger/internal/models"
)

// Consumer moves withdrawal jobs from the queue into the durable
// inbox table. The kafka offset is committed only after the job row
// is persisted, so a crash in between redelivers the message; the
// inbox insert is keyed by job uuid and swallows the duplicate.
type Consumer struct {
	lg        *logging.ZapLogger
	reader    *kafka.Reader
	jobs      ConsumerWithdrawalJobsRepository
	cancaller context.CancelFunc
	globalCtx context.Context
}

type ConsumerWithdrawalJobsRepository interface {
	Save(ctx context.Context, in *models.WithdrawalJob) error
}

func NewConsumer(
	lc fx.Lifecycle,
	lg *logging.ZapLogger,
	cfg *Config,
	globalCFG *config.Config,
	errLogger *logging.KafkaErrorLogger,
	logger *logging.KafkaLogger,
	jobs ConsumerWithdrawalJobsRepository,
) *Consumer {
	lg.DebugCtx(context.Background(), "start withdrawal jobs consumer", zap.String("consumer_group", cfg.KafkaWithdrawalJobsGroupID), zap.Any("config", cfg))

	r := kafka.NewReader(kafka.ReaderConfig{
		GroupID:                cfg.KafkaWithdrawalJobsGroupID,
		PartitionWatchInterval: time.Duration(cfg.KafkaWithdrawalJobsPartitionWatchInterval) * time.Millisecond,
		Brokers:                globalCFG.KafkaBrokers,
		Topic:                  cfg.KafkaWithdrawalJobsTopic,
		MinBytes:               10e2, // 1KB
		MaxBytes:               10e6, // 10MB
		MaxWait:                time.Duration(cfg.KafkaWithdrawalJobsMaxWaitInterval) * time.Millisecond,
		ErrorLogger:            errLogger,
		Logger:                 logger,
	})

	cns := &Consumer{
		lg:     lg,
		reader: r,
		jobs:   jobs,
	}

	lc.Append(
		fx.Hook{
			OnStart: func(ctx context.Context) error {
				go cns.consume()
				return nil
			},
			OnStop: func(ctx context.Context) error {
				return cns.reader.Close()
			},
		},
	)

	return cns
}

func (cns *Consumer) consume() {
	ctx, cancel := context.WithCancel(context.Background())
	cns.globalCtx = ctx
	cns.cancaller = cancel

	for {
		select {
		case <-ctx.Done():
			cns.lg.DebugCtx(ctx, "consumer graceful shutdown")
			return
		default:
			if err := cns.processMessage(cns.globalCtx); err != nil {
				cns.lg.ErrorCtx(ctx, "withdrawals/consumer: fetch message error", zap.Error(err))
			}
		}
	}
}

func (cns *Consumer) processMessage(ctx context.Context) error {
	m, err := cns.reader.FetchMessage(cns.globalCtx)
	if err != nil {
		return fmt.Errorf("withdrawals/consumer: fetch message error %w", err)
	}

	job := models.WithdrawalJob{}
	if err := json.Unmarshal(m.Value, &job); err != nil {
		return fmt.Errorf("withdrawals/consumer: unmarshal message error %w", err)
	}

	cns.lg.InfoCtx(ctx, "consumed message", zap.Any("message", &job))

	if err := cns.jobs.Save(ctx, &job); err != nil {
		return fmt.Errorf("withdrawals/consumer: save job error %w", err)
	}

	if err := cns.reader.CommitMessages(ctx, m); err != nil {
		return fmt.Errorf("withdrawals/consumer: failed to commit messages %w", err)
	}

	return nil
}
