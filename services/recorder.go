package services

import (
	"context"
	"sync"
	"time"

	"github.com/wfunc/rpsarena/events"
	"github.com/wfunc/rpsarena/logger"
	"github.com/wfunc/rpsarena/models"
	"github.com/wfunc/rpsarena/persistence"
)

const (
	recorderQueueSize = 1024
	storeTimeout      = 5 * time.Second
)

// FailureCounter receives one call per failed store or publish operation.
type FailureCounter interface {
	IncPersistenceFailure(op string)
}

type job func(ctx context.Context)

// Recorder applies leaderboard writes on a single background goroutine, in
// submission order. Failures are logged and counted, never returned.
type Recorder struct {
	db        persistence.Database
	publisher events.Publisher
	failures  FailureCounter

	jobs      chan job
	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
	mutex     sync.RWMutex
	closed    bool
}

func NewRecorder(db persistence.Database, publisher events.Publisher, failures FailureCounter) *Recorder {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	r := &Recorder{
		db:        db,
		publisher: publisher,
		failures:  failures,
		jobs:      make(chan job, recorderQueueSize),
		done:      make(chan struct{}),
		stopped:   make(chan struct{}),
	}
	go r.run()
	return r
}

func (r *Recorder) run() {
	defer close(r.stopped)
	for {
		select {
		case j := <-r.jobs:
			r.apply(j)
		case <-r.done:
			// 排空剩余任务
			for {
				select {
				case j := <-r.jobs:
					r.apply(j)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) apply(j job) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	j(ctx)
}

func (r *Recorder) enqueue(j job) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	if r.closed {
		logger.Log.Warn("recorder closed, dropping write")
		return
	}
	r.jobs <- j
}

func (r *Recorder) fail(op string, err error, keysAndValues ...interface{}) {
	logger.Log.Errorw("PersistenceFailure", append([]interface{}{"op", op, "error", err}, keysAndValues...)...)
	if r.failures != nil {
		r.failures.IncPersistenceFailure(op)
	}
}

// RegisterPlayer upserts the display name for a newly connected user.
func (r *Recorder) RegisterPlayer(userID, displayName string) {
	r.enqueue(func(ctx context.Context) {
		if err := r.db.RegisterPlayer(ctx, userID, displayName); err != nil {
			r.fail("register_player", err, "userId", userID)
		}
	})
}

// RecordRound stores the round history, bumps the winner's wins and the
// loser's losses when the round was decisive, then publishes the record.
func (r *Recorder) RecordRound(record models.GameRecord) {
	r.enqueue(func(ctx context.Context) {
		if err := r.db.SaveGameRecord(ctx, record); err != nil {
			r.fail("save_game_record", err, "roomId", record.RoomID, "round", record.Round)
		}
		if winner, ok := record.Winner(); ok {
			if err := r.db.IncrementWins(ctx, winner); err != nil {
				r.fail("increment_wins", err, "userId", winner)
			}
		}
		if loser, ok := record.Loser(); ok {
			if err := r.db.IncrementLosses(ctx, loser); err != nil {
				r.fail("increment_losses", err, "userId", loser)
			}
		}
		if err := r.publisher.PublishRound(ctx, record); err != nil {
			r.fail("publish_round", err, "roomId", record.RoomID)
		}
	})
}

// Flush blocks until every write queued before the call has been applied.
func (r *Recorder) Flush(ctx context.Context) error {
	applied := make(chan struct{})
	r.enqueue(func(context.Context) { close(applied) })
	select {
	case <-applied:
		return nil
	case <-r.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting writes, drains the queue and closes the publisher.
func (r *Recorder) Close(ctx context.Context) error {
	r.closeOnce.Do(func() {
		r.mutex.Lock()
		r.closed = true
		r.mutex.Unlock()
		close(r.done)
	})

	select {
	case <-r.stopped:
	case <-ctx.Done():
		return ctx.Err()
	}
	return r.publisher.Close()
}
