package services

import (
	"testing"
	"time"

	"gmaps-store-scraper/models"
)

func TestJobLifecycle(t *testing.T) {
	store := NewJobStore(time.Hour)
	job := store.Create()

	if job.Status() != JobRunning {
		t.Fatalf("new job status: got %q, want running", job.Status())
	}
	if _, ok := store.Get(job.ID); !ok {
		t.Fatal("job not retrievable by id")
	}

	job.Publish(Event{Type: EventProgress, Message: "working"})
	job.Publish(Event{Type: EventComplete, NewStores: 3})

	if job.Status() != JobComplete {
		t.Errorf("status after complete: got %q", job.Status())
	}

	var got []Event
	for ev := range job.Events() {
		got = append(got, ev)
	}
	if len(got) != 2 {
		t.Fatalf("events: got %d, want 2", len(got))
	}
	if got[0].Type != EventProgress || got[1].Type != EventComplete {
		t.Errorf("event order: %v, %v", got[0].Type, got[1].Type)
	}
}

func TestJobPublishAfterTerminalDropped(t *testing.T) {
	store := NewJobStore(time.Hour)
	job := store.Create()

	job.Publish(Event{Type: EventError, Message: "boom"})
	// Must not panic on the closed stream.
	job.Publish(Event{Type: EventProgress, Message: "late"})

	if job.Status() != JobError {
		t.Errorf("status: got %q, want error", job.Status())
	}

	var got []Event
	for ev := range job.Events() {
		got = append(got, ev)
	}
	if len(got) != 1 || got[0].Type != EventError {
		t.Errorf("events after terminal: %+v", got)
	}
}

func TestJobStoreEventCarriesStore(t *testing.T) {
	store := NewJobStore(time.Hour)
	job := store.Create()

	s := models.NewStore()
	s.Name = "Acme Store"
	job.Publish(Event{Type: EventStore, Store: s})
	job.Publish(Event{Type: EventComplete})

	ev := <-job.Events()
	if ev.Type != EventStore || ev.Store == nil || ev.Store.Name != "Acme Store" {
		t.Errorf("store event: %+v", ev)
	}
}

func TestJobStoreReap(t *testing.T) {
	store := NewJobStore(0)

	finished := store.Create()
	finished.Publish(Event{Type: EventComplete})

	running := store.Create()

	time.Sleep(10 * time.Millisecond)
	removed := store.Reap()

	if removed != 1 {
		t.Errorf("reaped %d jobs, want 1", removed)
	}
	if _, ok := store.Get(finished.ID); ok {
		t.Error("finished job should have been reaped")
	}
	if _, ok := store.Get(running.ID); !ok {
		t.Error("running job must never be reaped")
	}
}

func TestUploadStore(t *testing.T) {
	uploads := NewUploadStore()

	up := uploads.Put("report.xlsx", "", nil, nil)
	if up.ID == "" {
		t.Fatal("upload id empty")
	}
	if _, ok := uploads.Get(up.ID); !ok {
		t.Fatal("upload not retrievable")
	}

	uploads.Remove(up.ID)
	if _, ok := uploads.Get(up.ID); ok {
		t.Error("upload should be gone after Remove")
	}

	uploads.Put("a.xlsx", "", nil, nil)
	uploads.Put("b.xlsx", "", nil, nil)
	if n := uploads.Clear(); n != 2 {
		t.Errorf("Clear returned %d, want 2", n)
	}
}
