package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

const appName = "pm-monitor"

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   appName,
	Short: "Air quality and temperature monitor backed by Earth Engine",
	Long: `pm-monitor computes the current and annual mean PM2.5 concentration and
2 m air temperature around a fixed site, keeps a rolling history, and publishes
the results as JSON documents to a GitHub repository.`,
	SilenceUsage: true,
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
