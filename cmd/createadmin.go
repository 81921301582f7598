/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"

	"github.com/authloop/authserver/config"
	"github.com/authloop/authserver/internal/db"
	"github.com/authloop/authserver/internal/store"
	"github.com/authloop/authserver/types"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

var (
	adminFullName string
	adminEmail    string
	adminPassword string
)

// createAdminCmd seeds a pre-verified administrator account. Admin
// accounts can only be created here; there is no promotion path through
// the public API.
var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Seed a pre-verified admin account if none exists",
	RunE: func(cmd *cobra.Command, args []string) error {
		if adminEmail == "" || adminPassword == "" {
			return errors.New("--email and --password are required")
		}

		cfg := config.LoadConfig()
		dbConn, err := db.Open(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer func() {
			_ = dbConn.Close()
		}()

		users := store.NewUserRepository(dbConn)
		existing, err := users.GetAdmin(cmd.Context())
		if err == nil {
			fmt.Printf("admin user already exists: %s\n", existing.Email)
			return nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return err
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.DefaultCost)
		if err != nil {
			return err
		}

		admin, err := users.Create(cmd.Context(), types.User{
			FullName:     adminFullName,
			Email:        adminEmail,
			PasswordHash: string(hash),
			IsVerified:   true,
			Role:         types.RoleAdmin,
		})
		if err != nil {
			return err
		}

		fmt.Printf("admin user created: %s\n", admin.Email)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(createAdminCmd)

	createAdminCmd.Flags().StringVar(&adminFullName, "full-name", "Admin User", "admin display name")
	createAdminCmd.Flags().StringVar(&adminEmail, "email", "", "admin email address")
	createAdminCmd.Flags().StringVar(&adminPassword, "password", "", "admin password")
}
