package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shenjiangwei/segalloc/logging"
	"github.com/shenjiangwei/segalloc/rpcsrv"
)

var (
	addrFlag string
)

var rootCmd = &cobra.Command{
	Use:     "segallocd",
	Short:   "Run the segregated-free-list allocator as a network service",
	Version: "0.1.0",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the allocator daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := LoadConfig()
		if err != nil {
			return err
		}
		if addrFlag != "" {
			cfg.Addr = addrFlag
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		logger := logging.New(cfg.LogLevelValue())
		server, err := rpcsrv.NewServer(logger)
		if err != nil {
			return fmt.Errorf("segallocd: %w", err)
		}

		logger.Info().Msgf("segallocd: serving on %s", cfg.Addr)
		return server.Serve(cfg.Addr)
	},
}

func init() {
	serveCmd.Flags().StringVar(&addrFlag, "addr", "", "Listen address, overrides SEGALLOC_ADDR")
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
