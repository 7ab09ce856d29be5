package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var statsTargets = []string{
	"slopeguard_frames_ingested_total",
	"slopeguard_total_risk",
	"slopeguard_motion_score",
	"slopeguard_emergency_active",
	"slopeguard_queue_length",
	"slopeguard_wal_size_bytes",
	"slopeguard_dlq_total",
}

func newStatsCmd() *cobra.Command {
	var (
		url      string
		interval time.Duration
		once     bool
	)
	cmd := &cobra.Command{
		Use:     "stats",
		Short:   "Poll the Prometheus metrics endpoint and print live risk counters",
		Example: "  slopeguard-edge stats --url http://localhost:9100/metrics --interval 1s",
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			client := &http.Client{Timeout: 5 * time.Second}
			if once {
				return printMetricsSnapshot(cmd.Context(), client, url, out)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			fmt.Fprintf(out, "Streaming metrics from %s (Ctrl+C to stop)\n", url)
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					if err := printMetricsSnapshot(ctx, client, url, out); err != nil {
						fmt.Fprintf(cmd.ErrOrStderr(), "stats error: %v\n", err)
					}
				}
			}
		},
	}
	cmd.Flags().StringVar(&url, "url", "http://localhost:9100/metrics", "Prometheus metrics endpoint")
	cmd.Flags().DurationVar(&interval, "interval", 2*time.Second, "Refresh interval")
	cmd.Flags().BoolVar(&once, "once", false, "Print a single snapshot and exit")
	return cmd
}

func printMetricsSnapshot(ctx context.Context, client *http.Client, url string, w io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	values, err := parseMetrics(resp.Body, statsTargets)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "[%s] frames=%.0f risk=%.1f motion=%.1f emergency=%.0f queue=%.0f wal_bytes=%.0f dlq=%.0f\n",
		time.Now().Format(time.RFC3339),
		values["slopeguard_frames_ingested_total"],
		values["slopeguard_total_risk"],
		values["slopeguard_motion_score"],
		values["slopeguard_emergency_active"],
		values["slopeguard_queue_length"],
		values["slopeguard_wal_size_bytes"],
		values["slopeguard_dlq_total"],
	)
	return nil
}

// parseMetrics reads unlabelled samples of the given names from the
// Prometheus text format.
func parseMetrics(r io.Reader, names []string) (map[string]float64, error) {
	values := make(map[string]float64, len(names))
	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[n] = true
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 || !wanted[fields[0]] {
			continue
		}
		v, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			continue
		}
		values[fields[0]] = v
	}
	return values, scanner.Err()
}
