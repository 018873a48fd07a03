package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/postdesk/internal/config"
	"github.com/postdesk/internal/db"
	"github.com/postdesk/internal/service"
	"github.com/spf13/cobra"
)

func newSweepTempCommand() *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "sweep-temp",
		Short: "Delete temporary editor images that were never attached to a post",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if olderThan <= 0 {
				olderThan = cfg.TempImageTTL
			}

			store, err := openBlobStore(cfg.Storage)
			if err != nil {
				return err
			}

			sweeper := service.NewTempSweeper(service.NewBlobRelocator(store))
			result, err := sweeper.Sweep(cmd.Context(), olderThan)
			if err != nil {
				return err
			}

			out, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "minimum age of temp images to delete (default TEMP_IMAGE_TTL)")

	return cmd
}

func newEnsureUserCommand() *cobra.Command {
	var username, password, role string

	cmd := &cobra.Command{
		Use:   "ensure-user",
		Short: "Create a user with a bcrypt password if it does not exist yet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if username == "" {
				username = cfg.SuperRootUserName
			}
			if password == "" {
				password = cfg.SuperRootPassword
			}
			if username == "" || password == "" {
				return errors.New("username and password are required (flags or SUPER_ROOT_USER_NAME / SUPER_ROOT_PASSWORD)")
			}

			gdb, err := openDatabase(cfg)
			if err != nil {
				return err
			}

			created, err := db.EnsureUser(gdb, username, password, role)
			if err != nil {
				return err
			}
			if created {
				fmt.Fprintf(cmd.OutOrStdout(), "user %s created\n", username)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "user %s already exists\n", username)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "login name")
	cmd.Flags().StringVar(&password, "password", "", "plain password, stored as bcrypt hash")
	cmd.Flags().StringVar(&role, "role", db.RoleAdmin, "ADMIN or AUTHOR")

	return cmd
}
