package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/stanstork/adscope-api/internal/config"
	"github.com/stanstork/adscope-api/internal/repository"
	"github.com/stanstork/adscope-api/internal/utils"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// env holds what every command needs once config has been loaded.
type env struct {
	cfg      *config.Config
	db       *sql.DB
	accounts repository.AccountRepository
}

func openEnv(ctx context.Context) (*env, error) {
	cfg := config.Load()

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	cipher, err := utils.NewSecretCipher(cfg.SecretKey)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("invalid secret_key: %w", err)
	}

	return &env{cfg: cfg, db: db, accounts: repository.NewAccountRepository(db, cipher)}, nil
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "accountctl",
		Short:         "Manage ingestion accounts and their shared secrets",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newCreateCmd(),
		newRotateSecretCmd(),
		newSetActiveCmd("activate", "Allow an account to ingest again", true),
		newSetActiveCmd("deactivate", "Reject all further ingestion for an account", false),
		newTokenCmd(),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
