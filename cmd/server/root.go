package main

import (
	"fmt"

	"github.com/postdesk/internal/config"
	"github.com/postdesk/internal/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newRootCommand() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:           "postdesk",
		Short:         "Postdesk blog content backend",
		Long:          "Admin API for authoring posts with managed images, hashtags and categories.",
		SilenceErrors: true,
		SilenceUsage:  true,

		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadFile(path); err != nil {
				return err
			}
			cfg := config.Load()
			logger.Init(logger.Options{
				Env:        cfg.Env,
				Level:      cfg.Log.Level,
				File:       cfg.Log.File,
				MaxSizeMB:  cfg.Log.MaxSizeMB,
				MaxBackups: cfg.Log.MaxBackups,
				MaxAgeDays: cfg.Log.MaxAgeDays,
			})
			return nil
		},
		// 不带子命令时直接启动服务
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}

	cmd.PersistentFlags().StringVar(&path, "config", "", "config file (yaml/json/toml), merged over .env and environment")
	cmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")

	viper.BindPFlag("LOG_LEVEL", cmd.PersistentFlags().Lookup("log-level"))

	cmd.Version = fmt.Sprintf("%s.%s", version, commit)

	return cmd
}
