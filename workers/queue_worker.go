// workers/queue_worker.go
package workers

import (
	"context"
	"log"
	"time"
)

// EventDrainer is the integration service's drain entry point. A drain
// already in progress makes ProcessEventQueue return false immediately.
type EventDrainer interface {
	ProcessEventQueue() bool
	QueueDepth() int
}

// PollEvents drains the in-process event queue on a fixed tick. Overlapping
// drains are prevented by the drainer itself; a skipped tick is logged and
// the batch waits for the next one.
func PollEvents(ctx context.Context, drainer EventDrainer, pollInterval time.Duration) {
	log.Println("Starting event queue polling...")

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Event queue polling stopped.")
			return
		case <-ticker.C:
			depth := drainer.QueueDepth()
			if depth == 0 {
				continue
			}
			if !drainer.ProcessEventQueue() {
				log.Printf("⏭️ Drain already in progress, %d event(s) wait for next tick", depth)
			}
		}
	}
}
