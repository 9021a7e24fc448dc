package main

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fotopanel/admin/internal/auth"
	"github.com/fotopanel/admin/internal/db"
)

func migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := bootstrap()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			if err := db.Migrate(cfg.DatabaseURL, log); err != nil {
				log.Error("database migration failed", zap.Error(err))
				return err
			}
			return nil
		},
	}
}

func createAdminCommand() *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create the admin account or reset its password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if email == "" || password == "" {
				return errors.New("both --email and --password are required")
			}
			cfg, log, err := bootstrap()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			pool, err := db.Connect(ctx, cfg.DatabaseURL, 2, log)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := db.Migrate(cfg.DatabaseURL, log); err != nil {
				return err
			}

			svc := auth.NewService(auth.NewRepository(pool), cfg.JWTSecret, cfg.SessionTTL, log)
			admin, err := svc.EnsureAdmin(ctx, email, password)
			if err != nil {
				return err
			}
			cmd.Printf("admin %s ready\n", admin.Email)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Admin email address")
	cmd.Flags().StringVar(&password, "password", "", "Admin password (at least 8 characters)")
	return cmd
}
