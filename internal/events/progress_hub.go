package events

import (
	"sync"

	"github.com/google/uuid"

	"calliope/internal/domain/generation"
	"calliope/internal/metrics"
	"calliope/pkg/logger"
)

// ProgressHub is the process-wide progress channel. Events are fanned out to
// subscribers filtered by job id. Delivery is best-effort: only the latest
// snapshot is durable, so a slow subscriber loses intermediate events rather
// than blocking the pipeline.
type ProgressHub struct {
	mu     sync.RWMutex
	subs   map[uuid.UUID]map[int]chan generation.ProgressEvent
	nextID int
	buffer int
	log    *logger.Logger
}

// NewProgressHub creates a hub whose subscriber channels hold up to buffer
// undelivered events each.
func NewProgressHub(buffer int) *ProgressHub {
	if buffer <= 0 {
		buffer = 32
	}
	return &ProgressHub{
		subs:   make(map[uuid.UUID]map[int]chan generation.ProgressEvent),
		buffer: buffer,
		log:    logger.Get().With("component", "progress_hub"),
	}
}

// Publish broadcasts an event to every subscriber of its job.
// A single subscriber observes one job's events in emission order; no ordering
// holds across jobs.
func (h *ProgressHub) Publish(event generation.ProgressEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, ch := range h.subs[event.JobID] {
		select {
		case ch <- event:
		default:
			metrics.ProgressEventsDropped.WithLabelValues("subscriber_lagging").Inc()
			h.log.Warnw("Progress subscriber lagging, dropping event",
				"job_id", event.JobID,
				"subscriber", id,
				"step", event.Step,
			)
		}
	}
}

// Subscribe registers a listener for one job's events. The returned cancel
// function is idempotent; after it returns the channel is closed and no
// further events arrive.
func (h *ProgressHub) Subscribe(jobID uuid.UUID) (<-chan generation.ProgressEvent, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.subs[jobID] == nil {
		h.subs[jobID] = make(map[int]chan generation.ProgressEvent)
	}

	id := h.nextID
	h.nextID++
	ch := make(chan generation.ProgressEvent, h.buffer)
	h.subs[jobID][id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()

			if chans, ok := h.subs[jobID]; ok {
				delete(chans, id)
				if len(chans) == 0 {
					delete(h.subs, jobID)
				}
			}
			close(ch)
		})
	}

	return ch, cancel
}

// SubscriberCount reports the number of active subscribers for a job.
func (h *ProgressHub) SubscriberCount(jobID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[jobID])
}
