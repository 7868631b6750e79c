package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mmeshcher/starsky/internal/model"
)

func (a *app) newCreditsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credits",
		Short: "Credit balance commands",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "grant <account> <amount>",
		Short: "Add credits to an account",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil || amount <= 0 {
				return fmt.Errorf("amount must be a positive integer, got %q", args[1])
			}

			acc, err := a.resolveAccount(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			total, err := a.store.AddCredits(cmd.Context(), acc.ID, amount)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s (id %d): +%d, balance %d\n", acc.Login, acc.ID, amount, total)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show <account>",
		Short: "Show the credit balance of an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			acc, err := a.resolveAccount(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			credits, err := a.store.GetCredits(cmd.Context(), acc.ID)
			if err != nil {
				return err
			}

			unlimited := ""
			if credits.Unlimited {
				unlimited = " (unlimited)"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (id %d): %d credits%s\n", acc.Login, acc.ID, credits.Credits, unlimited)
			return nil
		},
	})

	return cmd
}

func (a *app) newRoleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "role",
		Short: "Account role commands",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set <account> <user|admin>",
		Short: "Change the role of an account",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			role := model.Role(args[1])
			if !role.Valid() {
				return fmt.Errorf("unknown role %q, expected user or admin", args[1])
			}

			acc, err := a.resolveAccount(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if err := a.store.SetRole(cmd.Context(), acc.ID, role); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s (id %d): role %s\n", acc.Login, acc.ID, role)
			return nil
		},
	})

	return cmd
}

func (a *app) newUnlimitedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unlimited <account> <on|off>",
		Short: "Grant or revoke unlimited credits",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var unlimited bool
			switch args[1] {
			case "on":
				unlimited = true
			case "off":
			default:
				return fmt.Errorf("expected on or off, got %q", args[1])
			}

			acc, err := a.resolveAccount(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if err := a.store.SetUnlimitedCredits(cmd.Context(), acc.ID, unlimited); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s (id %d): unlimited credits %s\n", acc.Login, acc.ID, args[1])
			return nil
		},
	}
}

func (a *app) newStarCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "star",
		Short: "Star commands",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "Remove a star",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			star, err := a.store.DeleteStar(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "deleted star %q (%s) owned by %d\n", star.Name, star.ID, star.OwnerID)
			return nil
		},
	})

	return cmd
}
