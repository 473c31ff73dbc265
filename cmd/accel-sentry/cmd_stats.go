package main

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var statsFlags struct {
	url      string
	interval time.Duration
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Poll the Prometheus metrics endpoint and print live counters",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func init() {
	f := statsCmd.Flags()
	f.StringVar(&statsFlags.url, "url", "http://localhost:9100/metrics", "Prometheus metrics endpoint")
	f.DurationVar(&statsFlags.interval, "interval", 2*time.Second, "Refresh interval")
}

// statsKeys are printed in this order.
var statsKeys = []string{
	"accel_bursts_received_total",
	"accel_bursts_archived_total",
	"accel_bursts_scored_total",
	"accel_anomalies_total",
	"accel_queue_length",
	"accel_ready",
}

func runStats(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(statsFlags.interval)
	defer ticker.Stop()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Streaming metrics from %s (Ctrl+C to stop)\n", statsFlags.url)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := printMetricsSnapshot(out, statsFlags.url); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "stats error: %v\n", err)
			}
		}
	}
}

func printMetricsSnapshot(out io.Writer, url string) error {
	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	values, err := scrapeMetrics(resp.Body, statsKeys)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "[%s] received=%g archived=%g scored=%g anomalies=%g queue=%g ready=%g\n",
		time.Now().Format(time.RFC3339),
		values["accel_bursts_received_total"],
		values["accel_bursts_archived_total"],
		values["accel_bursts_scored_total"],
		values["accel_anomalies_total"],
		values["accel_queue_length"],
		values["accel_ready"],
	)
	return nil
}

// scrapeMetrics pulls unlabelled sample values for keys out of a Prometheus
// text exposition.
func scrapeMetrics(r io.Reader, keys []string) (map[string]float64, error) {
	targets := make(map[string]float64, len(keys))
	for _, k := range keys {
		targets[k] = 0
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "#") {
			continue
		}
		for key := range targets {
			if strings.HasPrefix(line, key+" ") {
				var value float64
				if _, err := fmt.Sscanf(line, key+" %g", &value); err == nil {
					targets[key] = value
				}
			}
		}
	}
	return targets, scanner.Err()
}
