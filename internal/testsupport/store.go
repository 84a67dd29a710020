package testsupport

import (
	"context"
	"testing"

	"mediaconv/internal/config"
	"mediaconv/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// EnqueueMovie enqueues a movie job for path and returns its id.
func EnqueueMovie(t testing.TB, store *queue.Store, path, title string) int64 {
	t.Helper()

	id, err := store.Enqueue(context.Background(), queue.NewJob{
		SourcePath: path,
		MediaType:  queue.MediaMovie,
		Title:      title,
	})
	if err != nil {
		t.Fatalf("store.Enqueue: %v", err)
	}
	return id
}

// MustGet fetches a job and fails the test when it is missing.
func MustGet(t testing.TB, store *queue.Store, id int64) *queue.Job {
	t.Helper()

	job, err := store.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("store.Get: %v", err)
	}
	if job == nil {
		t.Fatalf("job %d not found", id)
	}
	return job
}
