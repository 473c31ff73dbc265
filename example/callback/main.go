package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/ghalamif/accelsentry/pkg/accelsentry"
)

func main() {
	flow, err := accelsentry.Conf("../../data/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	callback := func(batch []accelsentry.Detection) error {
		for _, d := range batch {
			label := "normal"
			if d.Anomaly {
				label = "ANOMALY"
			}
			fmt.Printf("%s burst=%s distance=%.3f threshold=%.1f %s\n",
				d.ReceivedAt.Format(time.RFC3339Nano),
				d.BurstID,
				d.Distance,
				d.Threshold,
				label,
			)
		}
		return nil
	}

	if err := flow.Run(ctx, accelsentry.StreamOutCallback("stdout", callback)); err != nil && err != context.Canceled {
		log.Fatalf("runtime error: %v", err)
	}
}
