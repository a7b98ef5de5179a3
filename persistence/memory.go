package persistence

import (
	"context"
	"sort"
	"sync"

	"github.com/wfunc/rpsarena/models"
)

// Memory keeps everything in process. Used by the "memory" driver and tests.
type Memory struct {
	players map[string]*models.LeaderboardEntry
	records []models.GameRecord
	mutex   sync.RWMutex
}

func NewMemory() *Memory {
	return &Memory{players: make(map[string]*models.LeaderboardEntry)}
}

func (m *Memory) player(userID string) *models.LeaderboardEntry {
	p, ok := m.players[userID]
	if !ok {
		p = &models.LeaderboardEntry{UserID: userID}
		m.players[userID] = p
	}
	return p
}

func (m *Memory) RegisterPlayer(_ context.Context, userID, displayName string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.player(userID).DisplayName = displayName
	return nil
}

func (m *Memory) IncrementWins(_ context.Context, userID string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.player(userID).Wins++
	return nil
}

func (m *Memory) IncrementLosses(_ context.Context, userID string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.player(userID).Losses++
	return nil
}

func (m *Memory) ListTopByWins(_ context.Context, limit int) ([]models.LeaderboardEntry, error) {
	if limit <= 0 {
		return []models.LeaderboardEntry{}, nil
	}
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	entries := make([]models.LeaderboardEntry, 0, len(m.players))
	for _, p := range m.players {
		entries = append(entries, *p)
	}
	sort.Slice(entries, func(i, j int) bool { return lessEntry(entries[i], entries[j]) })
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (m *Memory) GetPlayer(_ context.Context, userID string) (models.LeaderboardEntry, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	p, ok := m.players[userID]
	if !ok {
		return models.LeaderboardEntry{}, ErrRecordNotFound
	}
	return *p, nil
}

func (m *Memory) SaveGameRecord(_ context.Context, record models.GameRecord) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.records = append(m.records, record)
	return nil
}

func (m *Memory) RecentGameRecords(_ context.Context, limit int) ([]models.GameRecord, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	records := make([]models.GameRecord, 0, min(max(limit, 0), len(m.records)))
	for i := len(m.records) - 1; i >= 0 && len(records) < limit; i-- {
		records = append(records, m.records[i])
	}
	return records, nil
}

// Records returns a copy of every saved game record.
func (m *Memory) Records() []models.GameRecord {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return append([]models.GameRecord(nil), m.records...)
}

func (m *Memory) Close() error { return nil }
