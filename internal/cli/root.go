// Package cli implements downloadctl, the operator CLI for the download service.
package cli

import (
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/FIAP-Grupo-11SOAT/download-lambda/internal/config"
	"github.com/FIAP-Grupo-11SOAT/download-lambda/internal/logger"
	"github.com/FIAP-Grupo-11SOAT/download-lambda/internal/version"
	"github.com/spf13/cobra"
)

var (
	cfg       *config.ServerEnvironment
	appLogger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:               "downloadctl",
	CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
	Short:             "Download service operator CLI",
	Long: `downloadctl verifies identity tokens, inspects artifact records and requests
download links from a running download-server.

It is configured with the same environment variables as the server.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.NewServerConfig()
		if err != nil {
			log.Printf("failed to load configuration: %v", err.Error())
			return err
		}

		appLogger = logger.InitLogger(logger.ParseLogLevel(cfg.LogLevel), cfg.Environment)
		return nil
	},
}

func Execute() {
	v := version.Get()
	rootCmd.Version = fmt.Sprintf("%s (built %s, commit %s)", v.Version, v.BuildDate, v.GitCommit)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(linkCmd)
	rootCmd.AddCommand(recordCmd)
}
