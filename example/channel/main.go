package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	accelsentry "github.com/ghalamif/accelsentry"
)

func main() {
	flow, err := accelsentry.Conf("../../data/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sink, batches, closeBatches := accelsentry.NewChannelSink("alerts", 32)
	defer closeBatches()

	go alertWorker("alerts", batches)

	if err := flow.Run(ctx, accelsentry.StreamOutSink(sink)); err != nil && err != context.Canceled {
		log.Fatalf("runtime error: %v", err)
	}
}

// alertWorker only reacts to anomalous bursts.
func alertWorker(name string, batches <-chan []accelsentry.Detection) {
	for batch := range batches {
		for _, d := range batch {
			if !d.Anomaly {
				continue
			}
			fmt.Printf("[%s] %s burst %s scored %.2f (threshold %.1f)\n",
				name, time.Now().Format(time.RFC3339), d.BurstID, d.Distance, d.Threshold)
		}
	}
}
