package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wfunc/rpsarena/models"
	"github.com/wfunc/rpsarena/persistence"
)

func decisive(roomID string, round int, winner, loser string) models.GameRecord {
	return models.GameRecord{
		RoomID: roomID,
		Round:  round,
		Players: []models.PlayerInfo{
			{UserID: winner, Move: "rock", Outcome: "win"},
			{UserID: loser, Move: "scissors", Outcome: "lose"},
		},
		CreatedAt: time.Now(),
	}
}

func draw(roomID string, a, b string) models.GameRecord {
	return models.GameRecord{
		RoomID: roomID,
		Round:  1,
		Players: []models.PlayerInfo{
			{UserID: a, Move: "paper", Outcome: "draw"},
			{UserID: b, Move: "paper", Outcome: "draw"},
		},
	}
}

type countingFailures struct {
	mutex sync.Mutex
	ops   []string
}

func (c *countingFailures) IncPersistenceFailure(op string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.ops = append(c.ops, op)
}

func (c *countingFailures) Ops() []string {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return append([]string(nil), c.ops...)
}

type recordingPublisher struct {
	mutex   sync.Mutex
	records []models.GameRecord
	closed  bool
}

func (p *recordingPublisher) PublishRound(_ context.Context, record models.GameRecord) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.records = append(p.records, record)
	return nil
}

func (p *recordingPublisher) Close() error {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.closed = true
	return nil
}

// failingStore wraps Memory and fails IncrementWins.
type failingStore struct {
	*persistence.Memory
}

func (failingStore) IncrementWins(context.Context, string) error {
	return errors.New("store down")
}

func TestRecorder_RecordRound(t *testing.T) {
	db := persistence.NewMemory()
	pub := &recordingPublisher{}
	rec := NewRecorder(db, pub, nil)
	ctx := context.Background()

	rec.RegisterPlayer("a", "Alice")
	rec.RecordRound(decisive("r1", 1, "a", "b"))
	rec.RecordRound(decisive("r1", 2, "a", "b"))
	rec.RecordRound(draw("r1", "a", "b"))
	require.NoError(t, rec.Flush(ctx))

	a, err := db.GetPlayer(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "Alice", a.DisplayName)
	assert.Equal(t, int64(2), a.Wins)
	assert.Equal(t, int64(0), a.Losses)

	b, err := db.GetPlayer(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, int64(2), b.Losses)

	assert.Len(t, db.Records(), 3)
	require.NoError(t, rec.Close(ctx))
	assert.Len(t, pub.records, 3)
	assert.True(t, pub.closed)
}

func TestRecorder_FailureIsCounted(t *testing.T) {
	db := failingStore{persistence.NewMemory()}
	failures := &countingFailures{}
	rec := NewRecorder(db, nil, failures)
	ctx := context.Background()

	rec.RecordRound(decisive("r1", 1, "a", "b"))
	require.NoError(t, rec.Flush(ctx))

	assert.Equal(t, []string{"increment_wins"}, failures.Ops())
	// the loser's counter is still applied
	b, err := db.GetPlayer(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, int64(1), b.Losses)
	require.NoError(t, rec.Close(ctx))
}

func TestRecorder_CloseDrainsAndDropsLateWrites(t *testing.T) {
	db := persistence.NewMemory()
	rec := NewRecorder(db, nil, nil)
	ctx := context.Background()

	for i := 1; i <= 50; i++ {
		rec.RecordRound(decisive("r1", i, "a", "b"))
	}
	require.NoError(t, rec.Close(ctx))
	assert.Len(t, db.Records(), 50)

	rec.RecordRound(decisive("r1", 51, "a", "b"))
	assert.NoError(t, rec.Flush(ctx))
	assert.Len(t, db.Records(), 50)
	assert.NoError(t, rec.Close(ctx))
}

func TestLeaderboardService_Top(t *testing.T) {
	db := persistence.NewMemory()
	ctx := context.Background()
	for i := 0; i < 150; i++ {
		require.NoError(t, db.IncrementWins(ctx, string(rune('A'+i%26))+string(rune('a'+i/26))))
	}
	svc := NewLeaderboardService(db)

	top, err := svc.Top(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, top, DefaultLeaderboardLimit)

	top, err = svc.Top(ctx, 500)
	require.NoError(t, err)
	assert.Len(t, top, MaxLeaderboardLimit)

	top, err = svc.Top(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, top, 3)

	_, err = svc.Player(ctx, "missing")
	assert.ErrorIs(t, err, persistence.ErrRecordNotFound)
}

func TestLeaderboardService_Recent(t *testing.T) {
	db := persistence.NewMemory()
	ctx := context.Background()
	for round := 1; round <= 30; round++ {
		require.NoError(t, db.SaveGameRecord(ctx, models.GameRecord{RoomID: "r", Round: round}))
	}
	svc := NewLeaderboardService(db)

	records, err := svc.Recent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, records, DefaultLeaderboardLimit)
	assert.Equal(t, 30, records[0].Round)
	assert.Equal(t, 11, records[DefaultLeaderboardLimit-1].Round)
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, 20, ClampLimit(-1))
	assert.Equal(t, 1, ClampLimit(1))
	assert.Equal(t, 100, ClampLimit(101))
}
