package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	accelsentry "github.com/ghalamif/accelsentry"
	"github.com/ghalamif/accelsentry/internal/features"
)

var featuresCmd = &cobra.Command{
	Use:   "features <dir>",
	Short: "Print per-axis MAD feature rows for every archived burst in dir",
	Long: "features reads the CSV files written in collect mode and prints one\n" +
		"row per file (file,mad_x,mad_y,mad_z) using the same truncation and\n" +
		"scaling as detect mode, ready for offline model fitting.",
	Args: cobra.ExactArgs(1),
	RunE: runFeatures,
}

func runFeatures(cmd *cobra.Command, args []string) error {
	cfg, err := accelsentry.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	opts := features.Options{
		MaxMeasurements: cfg.Features.Truncation(),
		Scale:           cfg.Features.Scale,
		NormalScale:     cfg.Features.MADNormalScale,
	}

	ext := cfg.Archive.Extension
	files, err := filepath.Glob(filepath.Join(args[0], "*"+ext))
	if err != nil {
		return err
	}
	sort.Strings(files)

	w := csv.NewWriter(cmd.OutOrStdout())
	if err := w.Write([]string{"file", "mad_x", "mad_y", "mad_z"}); err != nil {
		return err
	}

	var skipped int
	for _, path := range files {
		b, err := readBurstFile(path)
		if err == nil {
			var vec accelsentry.FeatureVector
			vec, err = features.Extract(b, opts)
			if err == nil {
				row := []string{filepath.Base(path)}
				for _, v := range vec {
					row = append(row, strconv.FormatFloat(v, 'g', -1, 64))
				}
				if err := w.Write(row); err != nil {
					return err
				}
				continue
			}
		}
		skipped++
		fmt.Fprintf(cmd.ErrOrStderr(), "skip %s: %v\n", path, err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	if skipped > 0 && skipped == len(files) {
		return fmt.Errorf("no usable bursts in %s", args[0])
	}
	return nil
}

// readBurstFile parses the "x, y, z" lines written by the archiver.
func readBurstFile(path string) (*accelsentry.Burst, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = 3
	r.TrimLeadingSpace = true
	r.ReuseRecord = true

	b := &accelsentry.Burst{ID: filepath.Base(path)}
	for line := 1; ; line++ {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		var vals [3]float64
		for i, field := range rec {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			vals[i] = v
		}
		b.X = append(b.X, vals[0])
		b.Y = append(b.Y, vals[1])
		b.Z = append(b.Z, vals[2])
	}
	return b, nil
}
