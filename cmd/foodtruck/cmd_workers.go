package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/alumbrados-dev/Concessions-Connection-sub000/config"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/internal/kernel"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/logger"
)

var queueWorkersFlag int

// queue:work only makes sense against the Redis driver; with the memory
// driver it would drain a queue nothing else can reach.
var queueWorkCmd = &cobra.Command{
	Use:   "queue:work",
	Short: "Run queue workers without the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		rt, err := kernel.Boot(ctx)
		if err != nil {
			return err
		}
		defer rt.Close()

		workers := queueWorkersFlag
		if workers < 1 {
			workers = config.QueueWorkers()
		}
		logger.Info("queue: worker started", "workers", workers)
		rt.Queue.StartWorkers(ctx, workers)

		<-ctx.Done()
		rt.Drain()
		logger.Info("queue: worker stopped")
		return nil
	},
}

func init() {
	queueWorkCmd.Flags().IntVarP(&queueWorkersFlag, "workers", "w", 0, "Number of concurrent workers (default QUEUE_WORKERS)")
}
