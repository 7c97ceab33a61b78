package main

import (
	"github.com/joho/godotenv"
	"go.uber.org/fx"

	main_config "github.com/contabank/ledger/internal/config"
	"github.com/contabank/ledger/internal/ledger"
	"github.com/contabank/ledger/internal/logging"
	"github.com/contabank/ledger/internal/repositories"
	"github.com/contabank/ledger/internal/storage"
	"github.com/contabank/ledger/internal/withdrawals"
)

func main() {
	godotenv.Load()

	fx.New(CreateApp()).Run()
}

func CreateApp() fx.Option {
	return fx.Options(
		fx.Provide(
			logging.NewZapLogger,
			logging.NewKafkaErrorLogger,
			logging.NewKafkaLogger,
			storage.NewStorage,
			ledger.NewStatementWriter,

			withdrawals.NewDaemon,
			withdrawals.NewConsumer,
			fx.Annotate(repositories.NewWithdrawalJobsRepository, fx.As(new(withdrawals.WithdrawalJobsRepository))),
			fx.Annotate(repositories.NewWithdrawalJobsRepository, fx.As(new(withdrawals.ConsumerWithdrawalJobsRepository))),
			fx.Annotate(repositories.NewLedgerRepository, fx.As(new(withdrawals.UnitOfWork))),
		),
		fx.Supply(main_config.MustNewConfig(), withdrawals.MustNewConfig()),
		fx.Invoke(startDaemon, startConsumer),
	)
}

func startDaemon(*withdrawals.Daemon)     {}
func startConsumer(*withdrawals.Consumer) {}
