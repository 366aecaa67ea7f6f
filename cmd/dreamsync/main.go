package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dreamsync/dreamsync-backend/internal/config"
	"github.com/dreamsync/dreamsync-backend/internal/logger"
)

func main() {
	var log *logger.Logger

	var root = &cobra.Command{
		Use:           "dreamsync",
		Short:         "Dream journal interpretation service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			config.LoadConfig()
			l, err := logger.New(config.AppConfig.LogMode)
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			log = l
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if log != nil {
				log.Sync()
			}
		},
	}

	logFn := func() *logger.Logger { return log }
	root.AddCommand(serveCMD(logFn), interpretCMD(logFn), reindexCMD(logFn), tokenCMD())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := root.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
