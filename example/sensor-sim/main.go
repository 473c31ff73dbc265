// sensor-sim plays the role of the sensor node: it waits until the server
// reports ready, then POSTs synthetic bursts at a fixed interval. Use
// -anomaly-every to inject a high-variance burst every n-th post.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"io"
	"log"
	"math"
	"math/rand"
	"net/http"
	"os/signal"
	"syscall"
	"time"
)

type payload struct {
	X []float64 `json:"x"`
	Y []float64 `json:"y"`
	Z []float64 `json:"z"`
}

func main() {
	url := flag.String("url", "http://localhost:1337/", "Ingestion endpoint")
	ticks := flag.Int("ticks", 128, "Readings per burst")
	rate := flag.Float64("rate", 200, "Sample rate in Hz")
	interval := flag.Duration("interval", time.Second, "Delay between bursts")
	anomalyEvery := flag.Int("anomaly-every", 0, "Inject an anomalous burst every n posts (0 = never)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := &http.Client{Timeout: 5 * time.Second}
	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	for n := 1; ; n++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if !ready(client, *url) {
			log.Printf("server not ready, skipping burst %d", n)
			continue
		}

		noise := 0.01
		if *anomalyEvery > 0 && n%*anomalyEvery == 0 {
			noise = 0.2
		}
		body, err := json.Marshal(synthesize(*ticks, *rate, noise))
		if err != nil {
			log.Fatalf("encode burst: %v", err)
		}
		resp, err := client.Post(*url, "application/json", bytes.NewReader(body))
		if err != nil {
			log.Printf("post burst %d: %v", n, err)
			continue
		}
		_ = resp.Body.Close()
		log.Printf("burst %d sent (%d ticks, noise %.2f): %s", n, *ticks, noise, resp.Status)
	}
}

func ready(client *http.Client, url string) bool {
	resp, err := client.Get(url)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	return err == nil && string(b) == "1"
}

// synthesize builds a 50 Hz vibration on top of gravity on z plus gaussian noise.
func synthesize(ticks int, rate, noise float64) payload {
	p := payload{
		X: make([]float64, ticks),
		Y: make([]float64, ticks),
		Z: make([]float64, ticks),
	}
	for i := 0; i < ticks; i++ {
		phase := 2 * math.Pi * 50 * float64(i) / rate
		p.X[i] = 0.02*math.Sin(phase) + noise*rand.NormFloat64()
		p.Y[i] = 0.02*math.Cos(phase) + noise*rand.NormFloat64()
		p.Z[i] = 1 + noise*rand.NormFloat64()
	}
	return p
}
