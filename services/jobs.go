package services

import (
	"fmt"
	"sync"
	"time"

	"gmaps-store-scraper/models"
)

// EventType discriminates the messages a running job emits.
type EventType string

const (
	EventProgress EventType = "progress"
	EventStore    EventType = "store"
	EventComplete EventType = "complete"
	EventError    EventType = "error"
)

// Event is one message on a job's stream. Exactly one subscriber consumes
// the stream; Complete and Error are terminal.
type Event struct {
	Type    EventType     `json:"type"`
	Message string        `json:"message,omitempty"`
	Store   *models.Store `json:"data,omitempty"`

	// Complete payload.
	TotalStores    int    `json:"total_stores,omitempty"`
	NewStores      int    `json:"new_stores,omitempty"`
	ExistingStores int    `json:"existing_stores,omitempty"`
	TotalWithPhone int    `json:"total_with_phone,omitempty"`
	File           string `json:"file,omitempty"`
}

// JobStatus is the lifecycle state of a job.
type JobStatus string

const (
	JobRunning  JobStatus = "running"
	JobComplete JobStatus = "complete"
	JobError    JobStatus = "error"
)

// Job is one scraping run: created on submit, terminal on complete or
// error, reaped by the store's retention policy.
type Job struct {
	ID         string
	StartedAt  time.Time
	OutputFile string

	mu       sync.Mutex
	status   JobStatus
	done     time.Time
	events   chan Event
	finished bool
}

// Status returns the job's current lifecycle state.
func (j *Job) Status() JobStatus {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

// Events is the job's event stream, for its single subscriber.
func (j *Job) Events() <-chan Event {
	return j.events
}

// Publish appends an event to the stream. Terminal events flip the job's
// status and close the stream; anything published after that is dropped.
func (j *Job) Publish(ev Event) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.finished {
		return
	}

	terminal := ev.Type == EventComplete || ev.Type == EventError
	if terminal {
		// The terminal event must land; shed the oldest backlog if the
		// subscriber has fallen behind.
		for {
			select {
			case j.events <- ev:
			default:
				select {
				case <-j.events:
				default:
				}
				continue
			}
			break
		}
		if ev.Type == EventComplete {
			j.status = JobComplete
		} else {
			j.status = JobError
		}
		j.finish()
		return
	}

	select {
	case j.events <- ev:
	default:
		// A stalled or absent subscriber loses progress messages rather
		// than stalling the scrape.
	}
}

func (j *Job) finish() {
	j.finished = true
	j.done = time.Now()
	close(j.events)
}

// JobStore is the registry of jobs keyed by identifier.
type JobStore struct {
	mu        sync.RWMutex
	jobs      map[string]*Job
	retention time.Duration
}

// NewJobStore creates a JobStore keeping finished jobs around for the
// given retention window.
func NewJobStore(retention time.Duration) *JobStore {
	return &JobStore{
		jobs:      make(map[string]*Job),
		retention: retention,
	}
}

// Create registers a new running job and returns it.
func (s *JobStore) Create() *Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	job := &Job{
		ID:        fmt.Sprintf("job_%d", time.Now().UnixMilli()),
		StartedAt: time.Now(),
		status:    JobRunning,
		// Buffered so a slow subscriber does not stall the scrape.
		events: make(chan Event, 256),
	}
	// UnixMilli collides when jobs are created in the same millisecond.
	for {
		if _, exists := s.jobs[job.ID]; !exists {
			break
		}
		job.ID += "x"
	}
	s.jobs[job.ID] = job
	return job
}

// Get looks up a job by id.
func (s *JobStore) Get(id string) (*Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	return job, ok
}

// Reap removes finished jobs older than the retention window and returns
// how many were removed.
func (s *JobStore) Reap() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	cutoff := time.Now().Add(-s.retention)
	for id, job := range s.jobs {
		job.mu.Lock()
		expired := job.finished && job.done.Before(cutoff)
		job.mu.Unlock()
		if expired {
			delete(s.jobs, id)
			removed++
		}
	}
	return removed
}

// StartReaper runs Reap on the given interval until stop is closed.
func (s *JobStore) StartReaper(interval time.Duration, stop <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				s.Reap()
			}
		}
	}()
}
