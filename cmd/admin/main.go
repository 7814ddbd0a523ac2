package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"markbox/config"
	"markbox/internal/db"
	"markbox/internal/logging"
)

var (
	verbose bool

	cfg    *config.Config
	logger *zap.Logger
	gormDB *gorm.DB
)

var rootCmd = &cobra.Command{
	Use:   "admin",
	Short: "Административные команды markbox",
	// SilenceUsage: ошибки выполнения не должны печатать справку
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if cfg, err = config.Load(); err != nil {
			return fmt.Errorf("config load failed: %w", err)
		}
		level := cfg.LogLevel
		if verbose {
			level = "debug"
		}
		if logger, err = logging.New(cfg.Production(), level); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		if gormDB, err = db.NewDB(cfg.DSN, verbose); err != nil {
			return err
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func main() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "подробный вывод и SQL-лог")
	rootCmd.AddCommand(createSuperuserCmd(), purgeCmd())
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func createSuperuserCmd() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "createsuperuser",
		Short: "Создать активного администратора",
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv("MARKBOX_SUPERUSER_PASSWORD")
			}
			if password == "" {
				return errors.New("password must be set via --password or MARKBOX_SUPERUSER_PASSWORD")
			}
			user, err := db.CreateSuperuser(gormDB, email, password)
			if err != nil {
				return err
			}
			logger.Info("superuser created", zap.String("id", user.ID), zap.String("email", user.Email))
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email администратора")
	cmd.Flags().StringVar(&password, "password", "", "пароль администратора")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

// purgeCmd удаляет просроченные неподтверждённые регистрации и токены.
func purgeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "purge-pending",
		Short: "Удалить просроченные регистрации и токены",
		RunE: func(cmd *cobra.Command, args []string) error {
			users, err := db.PurgePending(gormDB, cfg.ActivationTimeout)
			if err != nil {
				return fmt.Errorf("purge pending users: %w", err)
			}
			tokens, err := db.PurgeExpiredTokens(gormDB, time.Now())
			if err != nil {
				return fmt.Errorf("purge tokens: %w", err)
			}
			logger.Info("purge completed", zap.Int64("pending_users", users), zap.Int64("tokens", tokens))
			return nil
		},
	}
}
