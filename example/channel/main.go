package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/ghalamif/SlopeGuard"
)

func main() {
	flow, err := slopeguard.Conf("../../data/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sink, batches, closeBatches := slopeguard.NewChannelSink("emergencies", 32)
	defer closeBatches()

	go emergencyWorker(batches)

	if err := flow.Run(ctx, slopeguard.StreamOutSink(sink)); err != nil && err != context.Canceled {
		log.Fatalf("runtime error: %v", err)
	}
}

// emergencyWorker prints only frames that call for the emergency protocol.
func emergencyWorker(batches <-chan []slopeguard.ScoredFrame) {
	for batch := range batches {
		for _, f := range batch {
			if !f.Emergency {
				continue
			}
			fmt.Printf("[%s] EMERGENCY source=%s risk=%.1f\n", time.Now().Format(time.RFC3339), f.SourceID, f.Assessment.TotalRisk)
		}
	}
}
