package workers

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/axellelanca/sitepulse/internal/models"
)

// recordTimeout bounds a single persist so a stuck store cannot stall a worker forever.
const recordTimeout = 10 * time.Second

// ActivityRecorder persists one activity event. *services.ActivityService implements it.
type ActivityRecorder interface {
	Record(ctx context.Context, event models.ActivityEvent) (*models.Activity, error)
}

// StartActivityWorkers launches a pool of worker goroutines draining activityEventsChan.
// The returned WaitGroup is done once the channel is closed and every worker has exited.
func StartActivityWorkers(workerCount int, activityEventsChan <-chan models.ActivityEvent, recorder ActivityRecorder) *sync.WaitGroup {
	log.Printf("[WORKER] Starting %d activity worker(s)...", workerCount)

	var wg sync.WaitGroup
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			activityWorker(activityEventsChan, recorder)
		}()
	}
	return &wg
}

// activityWorker runs until the channel is closed. Failed events are logged and dropped.
func activityWorker(activityEventsChan <-chan models.ActivityEvent, recorder ActivityRecorder) {
	for event := range activityEventsChan {
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		activity, err := recorder.Record(ctx, event)
		cancel()

		if err != nil {
			log.Printf("[WORKER] ERROR: Failed to save %q activity (IP: %s): %v", event.Type, event.IPAddress, err)
			continue
		}
		log.Printf("[WORKER] Activity %s recorded (type: %s)", activity.ID, activity.Type)
	}
}
