package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	addr    string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:     "segallocctl",
	Short:   "Talk to a segallocd daemon, or benchmark the allocator in-process",
	Version: "0.1.0",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&addr, "addr", "127.0.0.1:9090", "segallocd address")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func printInfo(format string, args ...interface{}) {
	fmt.Fprintf(os.Stdout, format, args...)
}

func printVerbose(format string, args ...interface{}) {
	if verbose {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

func main() {
	execute()
}
