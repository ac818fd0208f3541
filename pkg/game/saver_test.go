package game

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/decker502/patience/pkg/engine"
	"github.com/decker502/patience/pkg/storage"
)

// memoryStore 是内存中的存档存储
type memoryStore struct {
	mu         sync.Mutex
	nextID     int64
	games      map[int64]storage.SavedGame
	inserts    int
	updates    int
	failInsert int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{games: make(map[int64]storage.SavedGame)}
}

func (m *memoryStore) Insert(ctx context.Context, game storage.SavedGame) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failInsert > 0 {
		m.failInsert--
		return 0, errors.New("disk full")
	}
	m.nextID++
	game.ID = m.nextID
	m.games[game.ID] = game
	m.inserts++
	return game.ID, nil
}

func (m *memoryStore) Update(ctx context.Context, id int64, game storage.SavedGame) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.games[id]; !ok {
		return storage.ErrNotFound
	}
	game.ID = id
	m.games[id] = game
	m.updates++
	return nil
}

func (m *memoryStore) counts() (inserts, updates int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inserts, m.updates
}

func (m *memoryStore) game(id int64) (storage.SavedGame, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.games[id]
	return g, ok
}

func TestSaverInsertsThenUpdates(t *testing.T) {
	store := newMemoryStore()
	s := NewSaver(context.Background(), store, 0)

	s.Save(engine.Snapshot{Filename: "k.lua", Name: "K", State: "s0", History: []string{"s0"}}, time.Second)
	s.Save(engine.Snapshot{Filename: "k.lua", Name: "K", State: "s1", History: []string{"s0", "s1"}, Score: 5}, 2*time.Second)
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	inserts, updates := store.counts()
	if inserts != 1 || updates != 1 {
		t.Fatalf("inserts=%d updates=%d, want 1 and 1", inserts, updates)
	}
	if s.ID() != 1 {
		t.Errorf("ID() = %d, want 1", s.ID())
	}
	g, _ := store.game(1)
	if g.State != "s1" || g.Score != 5 || g.PlayTime != 2*time.Second || len(g.History) != 2 {
		t.Errorf("stored game = %+v", g)
	}
}

func TestSaverRetriesInsertAfterFailure(t *testing.T) {
	store := newMemoryStore()
	store.failInsert = 1
	s := NewSaver(context.Background(), store, 0)

	s.Save(engine.Snapshot{Filename: "k.lua", State: "s0"}, 0)
	s.Save(engine.Snapshot{Filename: "k.lua", State: "s1"}, 0)
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	inserts, updates := store.counts()
	if inserts != 1 || updates != 0 {
		t.Errorf("inserts=%d updates=%d, want 1 and 0", inserts, updates)
	}
}

func TestSaverExistingID(t *testing.T) {
	store := newMemoryStore()
	id, _ := store.Insert(context.Background(), storage.SavedGame{Filename: "k.lua", State: "old"})
	s := NewSaver(context.Background(), store, id)

	s.Save(engine.Snapshot{Filename: "k.lua", State: "new"}, 0)
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	g, _ := store.game(id)
	if g.State != "new" {
		t.Errorf("State = %q, want new", g.State)
	}
}

func TestSaverIgnoresSaveAfterClose(t *testing.T) {
	store := newMemoryStore()
	s := NewSaver(context.Background(), store, 0)
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	s.Save(engine.Snapshot{Filename: "k.lua"}, 0)
	if err := s.Close(); err != nil {
		t.Fatalf("second Close() error: %v", err)
	}
	if inserts, _ := store.counts(); inserts != 0 {
		t.Errorf("inserts = %d after close", inserts)
	}
}
