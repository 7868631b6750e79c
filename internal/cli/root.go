// Package cli реализует административную утилиту skyadmin, работающую напрямую с БД.
package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mmeshcher/starsky/internal/model"
)

// Store перечисляет операции хранилища, доступные утилите.
type Store interface {
	Close() error
	GetAccountByLogin(ctx context.Context, login string) (*model.Account, error)
	GetAccount(ctx context.Context, id int64) (*model.Account, error)
	GetCredits(ctx context.Context, id int64) (*model.Credits, error)
	AddCredits(ctx context.Context, id int64, amount int64) (int64, error)
	SetRole(ctx context.Context, id int64, role model.Role) error
	SetUnlimitedCredits(ctx context.Context, id int64, unlimited bool) error
	DeleteStar(ctx context.Context, id string) (*model.Star, error)
}

// OpenStore открывает хранилище по строке подключения.
type OpenStore func(dsn string) (Store, error)

type app struct {
	dsn   string
	open  OpenStore
	store Store
}

// NewRootCmd создаёт корневую команду skyadmin.
func NewRootCmd(open OpenStore) *cobra.Command {
	a := &app{dsn: os.Getenv("DATABASE_URI"), open: open}

	rootCmd := &cobra.Command{
		Use:   "skyadmin",
		Short: "Administrative tool for the starry sky service",
		Long: `skyadmin manages accounts and stars directly in the database.

It grants credits, changes roles and unlimited-credit privileges, and removes stars.
Accounts are addressed by numeric id or by login.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if a.dsn == "" {
				return fmt.Errorf("--database is required (env: DATABASE_URI)")
			}
			store, err := a.open(a.dsn)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			a.store = store
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.store != nil {
				return a.store.Close()
			}
			return nil
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&a.dsn, "database", "d", a.dsn, "Database URI (env: DATABASE_URI)")

	rootCmd.AddCommand(a.newCreditsCmd())
	rootCmd.AddCommand(a.newRoleCmd())
	rootCmd.AddCommand(a.newUnlimitedCmd())
	rootCmd.AddCommand(a.newStarCmd())

	return rootCmd
}

// Execute запускает корневую команду.
func Execute(open OpenStore) {
	if err := NewRootCmd(open).Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveAccount принимает числовой идентификатор или логин.
func (a *app) resolveAccount(ctx context.Context, ref string) (*model.Account, error) {
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		return a.store.GetAccount(ctx, id)
	}
	return a.store.GetAccountByLogin(ctx, ref)
}
