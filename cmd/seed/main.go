package main

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"

	main_config "github.com/contabank/ledger/internal/config"
	"github.com/contabank/ledger/internal/logging"
	"github.com/contabank/ledger/internal/models"
	"github.com/contabank/ledger/internal/repositories"
	"github.com/contabank/ledger/internal/storage"
)

// Seeds demo accounts for local development. Registration itself is
// owned by the user service, not this module.
const (
	accountsCount  = 3
	initialBalance = "1000.00"
)

func main() {
	godotenv.Load()

	fx.New(CreateApp()).Run()
}

func CreateApp() fx.Option {
	return fx.Options(
		fx.Provide(
			logging.NewZapLogger,
			storage.NewStorage,
			repositories.NewAccountsRepository,
		),
		fx.Supply(main_config.MustNewConfig()),
		fx.Invoke(seedAccounts),
	)
}

func seedAccounts(lc fx.Lifecycle, sh fx.Shutdowner, accounts *repositories.AccountsRepository, lg *logging.ZapLogger) {
	lc.Append(
		fx.Hook{
			OnStart: func(ctx context.Context) error {
				for i := 0; i < accountsCount; i++ {
					acc := &models.Account{
						UUID:      uuid.NewString(),
						Balance:   decimal.RequireFromString(initialBalance),
						CreatedAt: time.Now(),
					}

					if err := accounts.Create(ctx, acc); err != nil {
						return err
					}

					lg.InfoCtx(ctx, "account created", zap.String("account_uuid", acc.UUID), zap.String("balance", acc.Balance.String()))
				}

				return sh.Shutdown()
			},
		},
	)
}
