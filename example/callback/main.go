package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/ghalamif/SlopeGuard/pkg/slopeguard"
)

func main() {
	flow, err := slopeguard.Conf("../../data/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	callback := func(batch []slopeguard.ScoredFrame) error {
		for _, f := range batch {
			fmt.Printf("%s source=%s seq=%d risk=%.1f level=%s\n",
				f.Timestamp.Format(time.RFC3339Nano),
				f.SourceID,
				f.Seq,
				f.Assessment.TotalRisk,
				f.Level,
			)
			for _, why := range f.Explanations {
				fmt.Printf("  - %s\n", why)
			}
		}
		return nil
	}

	if err := flow.Run(ctx, slopeguard.StreamOutCallback("stdout", callback)); err != nil && err != context.Canceled {
		log.Fatalf("runtime error: %v", err)
	}
}
