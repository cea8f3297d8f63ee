package worker

import (
	"context"
	"log/slog"
	"time"

	"dataroom-rag/internal/domain"
)

const (
	queueCapacity  = 256
	persistTimeout = 5 * time.Second
	maxAttempts    = 3
	retryBackoff   = 500 * time.Millisecond
)

// AnswerPersister drains completed answers into the chat store in the
// background. Persistence is best-effort: a full queue drops the record, a
// failing store is retried a few times and then the record is abandoned with
// a warning. Nothing here ever surfaces to the response path.
type AnswerPersister struct {
	store    domain.ChatStore
	queue    chan domain.ChatRecord
	stopChan chan struct{}
	doneChan chan struct{}
	logger   *slog.Logger
}

func NewAnswerPersister(store domain.ChatStore, logger *slog.Logger) *AnswerPersister {
	return &AnswerPersister{
		store:    store,
		queue:    make(chan domain.ChatRecord, queueCapacity),
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
		logger:   logger,
	}
}

// Enqueue hands a record to the persister without blocking the caller.
func (p *AnswerPersister) Enqueue(record domain.ChatRecord) {
	select {
	case p.queue <- record:
	default:
		p.logger.Warn("persist_queue_full_dropping_record",
			slog.String("session_id", record.SessionID))
	}
}

func (p *AnswerPersister) Start() {
	p.logger.Info("starting answer persister")
	go p.run()
}

// Stop drains the queue and waits for the worker to exit.
func (p *AnswerPersister) Stop() {
	p.logger.Info("stopping answer persister")
	close(p.stopChan)
	<-p.doneChan
}

func (p *AnswerPersister) run() {
	defer close(p.doneChan)
	for {
		select {
		case record := <-p.queue:
			p.persist(record)
		case <-p.stopChan:
			// Drain what is already queued before exiting.
			for {
				select {
				case record := <-p.queue:
					p.persist(record)
				default:
					return
				}
			}
		}
	}
}

func (p *AnswerPersister) persist(record domain.ChatRecord) {
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		err := p.store.Append(ctx, record)
		cancel()
		if err == nil {
			return
		}
		p.logger.Warn("persist_attempt_failed",
			slog.String("session_id", record.SessionID),
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()))
		if attempt < maxAttempts {
			time.Sleep(retryBackoff * time.Duration(attempt))
		}
	}
	p.logger.Warn("persist_abandoned",
		slog.String("session_id", record.SessionID))
}
