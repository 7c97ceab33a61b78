package queue

import "github.com/caarlos0/env"

type Config struct {
	KafkaWithdrawalJobsTopic string `json:"kafka_withdrawal_jobs_topic" env:"KAFKA_WITHDRAWAL_JOBS_TOPIC" envDefault:"withdrawal_jobs"`

	PublishMaxRetries      int64 `json:"publish_max_retries" env:"PUBLISH_MAX_RETRIES" envDefault:"3"`
	PublishBackoffInterval int64 `json:"publish_backoff_interval" env:"PUBLISH_BACKOFF_INTERWAL" envDefault:"100"`
}

func MustNewConfig() *Config {
	c := &Config{}
	env.Parse(c)

	return c
}
