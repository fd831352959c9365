package workers

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/axellelanca/sitepulse/internal/models"
)

type fakeRecorder struct {
	mu     sync.Mutex
	types  []string
	failOn string
}

func (f *fakeRecorder) Record(ctx context.Context, event models.ActivityEvent) (*models.Activity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if event.Type == f.failOn {
		return nil, errors.New("store unavailable")
	}
	f.types = append(f.types, event.Type)
	return &models.Activity{ID: "id-" + event.Type, Type: event.Type}, nil
}

func TestStartActivityWorkers_DrainsChannel(t *testing.T) {
	events := make(chan models.ActivityEvent, 10)
	recorder := &fakeRecorder{failOn: "broken"}

	wg := StartActivityWorkers(3, events, recorder)
	for _, typ := range []string{"reaction", "search", "broken", "signup"} {
		events <- models.ActivityEvent{Type: typ}
	}
	close(events)
	wg.Wait()

	if len(recorder.types) != 3 {
		t.Fatalf("got %d recorded activities, want 3 (%v)", len(recorder.types), recorder.types)
	}
	for _, typ := range recorder.types {
		if typ == "broken" {
			t.Error("failed event must not be recorded")
		}
	}
}
