package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/stanstork/adscope-api/internal/authz"
	"github.com/stanstork/adscope-api/internal/utils"
)

const secretBytes = 32

func newCreateCmd() *cobra.Command {
	var name, customerID string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an account and print its shared secret once",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer e.db.Close()

			secret, err := utils.GenerateSecret(secretBytes)
			if err != nil {
				return err
			}
			account, err := e.accounts.CreateAccount(ctx, strings.TrimSpace(name), strings.TrimSpace(customerID), secret)
			if err != nil {
				return fmt.Errorf("create account: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "account_id: %s\n", account.ID)
			fmt.Fprintf(out, "secret:     %s\n", secret)
			fmt.Fprintln(out, "The secret is not shown again.")
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Display name (required)")
	cmd.Flags().StringVar(&customerID, "customer-id", "", "Ad platform customer id (required)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("customer-id")
	return cmd
}

func newRotateSecretCmd() *cobra.Command {
	var id string

	cmd := &cobra.Command{
		Use:   "rotate-secret",
		Short: "Replace an account's shared secret and print the new one once",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer e.db.Close()

			secret, err := utils.GenerateSecret(secretBytes)
			if err != nil {
				return err
			}
			if err := e.accounts.RotateSecret(ctx, id, secret); err != nil {
				return fmt.Errorf("rotate secret for %s: %w", id, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "secret: %s\n", secret)
			return nil
		},
	}

	addAccountFlag(cmd, &id)
	return cmd
}

func newSetActiveCmd(use, short string, active bool) *cobra.Command {
	var id string

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer e.db.Close()

			if err := e.accounts.SetActive(ctx, id, active); err != nil {
				return fmt.Errorf("%s %s: %w", use, id, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: active=%t\n", id, active)
			return nil
		},
	}

	addAccountFlag(cmd, &id)
	return cmd
}

func newTokenCmd() *cobra.Command {
	var (
		id      string
		subject string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for the read API of an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer e.db.Close()

			if _, err := e.accounts.GetActiveAccount(ctx, id); err != nil {
				return fmt.Errorf("look up %s: %w", id, err)
			}
			token, err := authz.IssueToken(e.cfg.JWTSecret, id, subject, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	addAccountFlag(cmd, &id)
	cmd.Flags().StringVar(&subject, "subject", "accountctl", "Token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")
	return cmd
}

func addAccountFlag(cmd *cobra.Command, id *string) {
	cmd.Flags().StringVar(id, "id", "", "Account UUID (required)")
	_ = cmd.MarkFlagRequired("id")

	cmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		if _, err := uuid.Parse(strings.TrimSpace(*id)); err != nil {
			return fmt.Errorf("invalid --id: %w", err)
		}
		*id = strings.TrimSpace(*id)
		return nil
	}
}
