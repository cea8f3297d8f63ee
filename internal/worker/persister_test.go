package worker_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"dataroom-rag/internal/domain"
	"dataroom-rag/internal/worker"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu       sync.Mutex
	appended []domain.ChatRecord
	failures int
}

func (s *fakeStore) Append(ctx context.Context, record domain.ChatRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failures > 0 {
		s.failures--
		return errors.New("store unavailable")
	}
	s.appended = append(s.appended, record)
	return nil
}

func (s *fakeStore) History(ctx context.Context, sessionID string, limit int) ([]domain.ChatRecord, error) {
	return nil, nil
}

func (s *fakeStore) snapshot() []domain.ChatRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.ChatRecord(nil), s.appended...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestAnswerPersister_PersistsEnqueuedRecords(t *testing.T) {
	store := &fakeStore{}
	persister := worker.NewAnswerPersister(store, discardLogger())
	persister.Start()

	persister.Enqueue(domain.ChatRecord{SessionID: "s-1", Answer: "first"})
	persister.Enqueue(domain.ChatRecord{SessionID: "s-1", Answer: "second"})

	assert.Eventually(t, func() bool {
		return len(store.snapshot()) == 2
	}, 2*time.Second, 10*time.Millisecond)

	persister.Stop()
}

func TestAnswerPersister_StopDrainsQueue(t *testing.T) {
	store := &fakeStore{}
	persister := worker.NewAnswerPersister(store, discardLogger())

	// Enqueue before Start so the records sit in the queue.
	persister.Enqueue(domain.ChatRecord{SessionID: "s-1", Answer: "queued"})
	persister.Start()
	persister.Stop()

	require.Len(t, store.snapshot(), 1)
	assert.Equal(t, "queued", store.snapshot()[0].Answer)
}

func TestAnswerPersister_RetriesTransientFailure(t *testing.T) {
	store := &fakeStore{failures: 2}
	persister := worker.NewAnswerPersister(store, discardLogger())
	persister.Start()

	persister.Enqueue(domain.ChatRecord{SessionID: "s-1", Answer: "flaky"})

	assert.Eventually(t, func() bool {
		return len(store.snapshot()) == 1
	}, 5*time.Second, 20*time.Millisecond)

	persister.Stop()
}

func TestAnswerPersister_AbandonsAfterMaxAttempts(t *testing.T) {
	store := &fakeStore{failures: 100}
	persister := worker.NewAnswerPersister(store, discardLogger())
	persister.Start()

	persister.Enqueue(domain.ChatRecord{SessionID: "s-1", Answer: "doomed"})
	persister.Stop()

	assert.Empty(t, store.snapshot())
}

func TestAnswerPersister_EnqueueNeverBlocks(t *testing.T) {
	store := &fakeStore{}
	persister := worker.NewAnswerPersister(store, discardLogger())
	// Worker not started: the queue fills up and further records are dropped.

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			persister.Enqueue(domain.ChatRecord{SessionID: "s-1"})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Enqueue blocked on a full queue")
	}
}
