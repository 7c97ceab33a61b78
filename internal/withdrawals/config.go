package withdrawals

import "github.com/caarlos0/env"

type Config struct {
	PollInterval             int64 `json:"poll_interval" env:"WITHDRAWALS_POLL_INTERVAL" envDefault:"100"`
	WorkersCount             int64 `json:"workers_count" env:"WITHDRAWALS_WORKERS_COUNT" envDefault:"5"`
	MaxAttempts              int64 `json:"max_attempts" env:"WITHDRAWALS_MAX_ATTEMPTS" envDefault:"5"`
	RetryBackoffInterval     int64 `json:"retry_backoff_interval" env:"WITHDRAWALS_RETRY_BACKOFF_INTERWAL" envDefault:"500"`
	ReservationLeaseInterval int64 `json:"reservation_lease_interval" env:"WITHDRAWALS_RESERVATION_LEASE_INTERWAL" envDefault:"60000"`

	KafkaWithdrawalJobsTopic                  string `json:"kafka_withdrawal_jobs_topic" env:"KAFKA_WITHDRAWAL_JOBS_TOPIC" envDefault:"withdrawal_jobs"`
	KafkaWithdrawalJobsGroupID                string `json:"kafka_withdrawal_jobs_group_id" env:"KAFKA_WITHDRAWAL_JOBS_GROUP_ID" envDefault:"ledger_withdrawal_jobs_consumer_group"`
	KafkaWithdrawalJobsPartitionWatchInterval int    `json:"kafka_withdrawal_jobs_partition_watch_interval" env:"KAFKA_WITHDRAWAL_JOBS_PARTITION_WATCH_INTERWAL" envDefault:"50000"`
	KafkaWithdrawalJobsMaxWaitInterval        int    `json:"kafka_withdrawal_jobs_max_wait_interval" env:"KAFKA_WITHDRAWAL_JOBS_MAX_WAIT_INTERWAL" envDefault:"250"`
}

func MustNewConfig() *Config {
	c := &Config{}
	env.Parse(c)

	return c
}
