package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/pyama86/securereport/domain/repository"
	"github.com/pyama86/securereport/domain/usecase"
)

// app は各コマンドで共有する依存関係
type app struct {
	config   *repository.Config
	lookup   *usecase.IncidentLookup
	workflow *usecase.Workflow
	close    func()
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := repository.NewConfigRepository(configPath)
	if err != nil {
		return nil, err
	}

	client, err := repository.DialLedger(ctx, cfg.Ledger.RPCURL)
	if err != nil {
		return nil, err
	}

	provider, err := repository.NewWalletProvider(cfg.Wallet)
	if err != nil {
		client.Close()
		return nil, err
	}
	sessions := usecase.NewSessionManager(provider)

	ledger, err := repository.NewLedgerRepository(client, cfg.Ledger.Contract(), sessions, cfg.Ledger)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to create ledger repository: %w", err)
	}

	lookup := usecase.NewIncidentLookup(ledger, cfg.Lookup.CacheTTL)
	workflow := usecase.NewWorkflow(
		sessions,
		usecase.NewIncidentSubmitter(ledger, sessions),
		lookup,
		cfg.Workflow.SuccessWindow,
	)

	return &app{
		config:   cfg,
		lookup:   lookup,
		workflow: workflow,
		close: func() {
			workflow.Close()
			client.Close()
		},
	}, nil
}

func requireEnv(names ...string) error {
	for _, env := range names {
		if os.Getenv(env) == "" {
			return fmt.Errorf("environment variable %s is required but not set", env)
		}
	}
	return nil
}
