package thread

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrInvalidID = errors.New("invalid id")
)

// ListFilter narrows ListThreads results.
type ListFilter struct {
	Status   Status
	Category Category
	Search   string // matched against participant name and last message
	Limit    int
	Offset   int
}

// Store is the durable keyed storage contract for threads and their owned
// records. History tables are append-only; a thread's messages, score history
// and draft history are cascade-deleted with it. Actions are independent.
type Store interface {
	CreateThread(ctx context.Context, t *Thread) error
	// UpdateThread overwrites the full record except CreatedAt.
	UpdateThread(ctx context.Context, t *Thread) error
	GetThread(ctx context.Context, id string) (*Thread, error)
	ListThreads(ctx context.Context, f ListFilter) ([]*Thread, error)
	ListUnclassified(ctx context.Context, limit int) ([]*Thread, error)
	DeleteThread(ctx context.Context, id string) error

	AppendMessage(ctx context.Context, m *Message) error
	// RecentMessages returns the most recent limit messages in chronological
	// order. A limit <= 0 returns every message in the thread.
	RecentMessages(ctx context.Context, threadID string, limit int) ([]*Message, error)
	CountMessages(ctx context.Context, threadID string) (int, error)

	AppendScoreEntry(ctx context.Context, e *ScoreHistoryEntry) error
	ListScoreHistory(ctx context.Context, threadID string) ([]*ScoreHistoryEntry, error)

	AppendDraftEntry(ctx context.Context, e *DraftHistoryEntry) error
	ListDraftHistory(ctx context.Context, threadID string) ([]*DraftHistoryEntry, error)
	SetDraftVariantUsed(ctx context.Context, entryID string, variantIndex int) error

	// RecentManualCorrections returns the most recently classified threads that
	// carry a human override, newest first.
	RecentManualCorrections(ctx context.Context, limit int) ([]*Thread, error)

	CreateAction(ctx context.Context, a *Action) error
	UpdateAction(ctx context.Context, a *Action) error
	GetAction(ctx context.Context, id string) (*Action, error)
	ListActions(ctx context.Context, status ActionStatus, limit int) ([]*Action, error)
}

// InMemoryStore is a threadsafe in-memory store for tests and local runs.
type InMemoryStore struct {
	mu       sync.RWMutex
	threads  map[string]*Thread
	messages map[string][]*Message
	scores   map[string][]*ScoreHistoryEntry
	drafts   map[string][]*DraftHistoryEntry
	draftIdx map[string]string // draft entry id -> thread id
	actions  map[string]*Action
	now      func() time.Time
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		threads:  make(map[string]*Thread),
		messages: make(map[string][]*Message),
		scores:   make(map[string][]*ScoreHistoryEntry),
		drafts:   make(map[string][]*DraftHistoryEntry),
		draftIdx: make(map[string]string),
		actions:  make(map[string]*Action),
		now:      time.Now,
	}
}

func (s *InMemoryStore) CreateThread(ctx context.Context, t *Thread) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	t.CreatedAt = s.now()
	t.UpdatedAt = t.CreatedAt
	if t.Status == "" {
		t.Status = StatusUnread
	}
	s.threads[t.ID] = cloneThread(t)
	return nil
}

func (s *InMemoryStore) UpdateThread(ctx context.Context, t *Thread) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.threads[t.ID]
	if !ok {
		return ErrNotFound
	}
	t.CreatedAt = old.CreatedAt
	t.UpdatedAt = s.now()
	s.threads[t.ID] = cloneThread(t)
	return nil
}

func (s *InMemoryStore) GetThread(ctx context.Context, id string) (*Thread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.threads[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneThread(t), nil
}

func (s *InMemoryStore) ListThreads(ctx context.Context, f ListFilter) ([]*Thread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Thread, 0)
	for _, t := range s.threads {
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		if f.Category != "" && t.Category != f.Category {
			continue
		}
		if f.Search != "" {
			q := strings.ToLower(f.Search)
			if !strings.Contains(strings.ToLower(t.ParticipantName), q) &&
				!strings.Contains(strings.ToLower(t.LastMessage), q) {
				continue
			}
		}
		out = append(out, cloneThread(t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastMessageAt.After(out[j].LastMessageAt) })
	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return []*Thread{}, nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(out) {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *InMemoryStore) ListUnclassified(ctx context.Context, limit int) ([]*Thread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Thread, 0)
	for _, t := range s.threads {
		if t.ClassifiedAt != nil || t.Status == StatusArchived {
			continue
		}
		out = append(out, cloneThread(t))
	}
	// oldest message first so the backlog drains in order
	sort.Slice(out, func(i, j int) bool { return out[i].LastMessageAt.Before(out[j].LastMessageAt) })
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemoryStore) DeleteThread(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.threads[id]; !ok {
		return ErrNotFound
	}
	delete(s.threads, id)
	delete(s.messages, id)
	delete(s.scores, id)
	for _, e := range s.drafts[id] {
		delete(s.draftIdx, e.ID)
	}
	delete(s.drafts, id)
	return nil
}

func (s *InMemoryStore) AppendMessage(ctx context.Context, m *Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.threads[m.ThreadID]; !ok {
		return ErrNotFound
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	cp := *m
	s.messages[m.ThreadID] = append(s.messages[m.ThreadID], &cp)
	return nil
}

func (s *InMemoryStore) RecentMessages(ctx context.Context, threadID string, limit int) ([]*Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.messages[threadID]
	sorted := make([]*Message, len(msgs))
	copy(sorted, msgs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].SentAt.Before(sorted[j].SentAt) })
	if limit > 0 && len(sorted) > limit {
		sorted = sorted[len(sorted)-limit:]
	}
	out := make([]*Message, 0, len(sorted))
	for _, m := range sorted {
		cp := *m
		out = append(out, &cp)
	}
	return out, nil
}

func (s *InMemoryStore) CountMessages(ctx context.Context, threadID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages[threadID]), nil
}

func (s *InMemoryStore) AppendScoreEntry(ctx context.Context, e *ScoreHistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	e.CreatedAt = s.now()
	cp := *e
	s.scores[e.ThreadID] = append(s.scores[e.ThreadID], &cp)
	return nil
}

func (s *InMemoryStore) ListScoreHistory(ctx context.Context, threadID string) ([]*ScoreHistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := s.scores[threadID]
	out := make([]*ScoreHistoryEntry, 0, len(entries))
	for _, e := range entries {
		cp := *e
		out = append(out, &cp)
	}
	return out, nil
}

func (s *InMemoryStore) AppendDraftEntry(ctx context.Context, e *DraftHistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	e.CreatedAt = s.now()
	cp := *e
	cp.Variants = append([]string(nil), e.Variants...)
	s.drafts[e.ThreadID] = append(s.drafts[e.ThreadID], &cp)
	s.draftIdx[e.ID] = e.ThreadID
	return nil
}

func (s *InMemoryStore) ListDraftHistory(ctx context.Context, threadID string) ([]*DraftHistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := s.drafts[threadID]
	out := make([]*DraftHistoryEntry, 0, len(entries))
	for _, e := range entries {
		cp := *e
		cp.Variants = append([]string(nil), e.Variants...)
		out = append(out, &cp)
	}
	return out, nil
}

func (s *InMemoryStore) SetDraftVariantUsed(ctx context.Context, entryID string, variantIndex int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	threadID, ok := s.draftIdx[entryID]
	if !ok {
		return ErrNotFound
	}
	for _, e := range s.drafts[threadID] {
		if e.ID == entryID {
			if variantIndex < 0 || variantIndex >= len(e.Variants) {
				return ErrInvalidID
			}
			idx := variantIndex
			e.UsedVariantIndex = &idx
			return nil
		}
	}
	return ErrNotFound
}

func (s *InMemoryStore) RecentManualCorrections(ctx context.Context, limit int) ([]*Thread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Thread, 0)
	for _, t := range s.threads {
		if !t.ManualClassification || t.ClassifiedAt == nil {
			continue
		}
		out = append(out, cloneThread(t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClassifiedAt.After(*out[j].ClassifiedAt) })
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemoryStore) CreateAction(ctx context.Context, a *Action) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.CreatedAt = s.now()
	a.UpdatedAt = a.CreatedAt
	cp := *a
	s.actions[a.ID] = &cp
	return nil
}

func (s *InMemoryStore) UpdateAction(ctx context.Context, a *Action) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.actions[a.ID]
	if !ok {
		return ErrNotFound
	}
	a.CreatedAt = old.CreatedAt
	a.UpdatedAt = s.now()
	cp := *a
	s.actions[a.ID] = &cp
	return nil
}

func (s *InMemoryStore) GetAction(ctx context.Context, id string) (*Action, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.actions[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *InMemoryStore) ListActions(ctx context.Context, status ActionStatus, limit int) ([]*Action, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Action, 0)
	for _, a := range s.actions {
		if status != "" && a.Status != status {
			continue
		}
		cp := *a
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func cloneThread(t *Thread) *Thread {
	if t == nil {
		return nil
	}
	cp := *t
	if t.ClassifiedAt != nil {
		v := *t.ClassifiedAt
		cp.ClassifiedAt = &v
	}
	if t.WampScore != nil {
		v := *t.WampScore
		cp.WampScore = &v
	}
	if t.QualificationData != nil {
		v := *t.QualificationData
		cp.QualificationData = &v
	}
	if t.EnrichmentData != nil {
		v := *t.EnrichmentData
		cp.EnrichmentData = &v
	}
	if t.PostData != nil {
		cp.PostData = append([]Post(nil), t.PostData...)
	}
	if t.SnoozeUntil != nil {
		v := *t.SnoozeUntil
		cp.SnoozeUntil = &v
	}
	return &cp
}
