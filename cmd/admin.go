/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/sweetshop/apiserver/config"
	"github.com/sweetshop/apiserver/internal/auth"
	"github.com/sweetshop/apiserver/internal/db"
	"github.com/sweetshop/apiserver/internal/logger"
	"github.com/sweetshop/apiserver/internal/services"
	"github.com/sweetshop/apiserver/internal/store"
)

// resetAdminCmd recreates the administrator account from configuration.
var resetAdminCmd = &cobra.Command{
	Use:   "reset-admin",
	Short: "Delete and recreate the configured administrator account",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		log := logger.New()

		dbConn, err := db.Open(cmd.Context(), cfg.Database)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer dbConn.Close()

		tokens, err := auth.NewTokenService(
			cfg.Token.SecretKey,
			cfg.Token.Algorithm,
			time.Duration(cfg.Token.TTLMinutes)*time.Minute,
		)
		if err != nil {
			return err
		}

		authService := services.NewAuthService(store.NewUserRepository(dbConn), tokens, services.AdminPolicy{
			Email:    cfg.Admin.Email,
			Password: cfg.Admin.Password,
			Secret:   cfg.Admin.Secret,
		}, log)

		if err := authService.ResetAdmin(cmd.Context()); err != nil {
			return err
		}
		fmt.Printf("administrator account reset: %s\n", services.NormalizeEmail(cfg.Admin.Email))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(resetAdminCmd)
}
