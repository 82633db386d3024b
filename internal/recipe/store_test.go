package recipe

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// memStore is an in-memory Store for service and handler tests.
type memStore struct {
	mu      sync.Mutex
	recipes map[string]*Recipe
	seq     int
	now     time.Time

	imageWrites int
	setImageErr error
	deleteErr   error
}

func newMemStore() *memStore {
	return &memStore{recipes: map[string]*Recipe{}, now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (s *memStore) tick() time.Time {
	s.now = s.now.Add(time.Second)
	return s.now
}

// add stores a recipe owned by ownerID with an optional image key.
func (s *memStore) add(ownerID, title string, imageKey *string) *Recipe {
	rec, _ := s.Create(context.Background(), CreateParams{OwnerID: ownerID, Title: title, Difficulty: DifficultyEasy})
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recipes[rec.ID].ImageKey = imageKey
	rec.ImageKey = imageKey
	return rec
}

func (s *memStore) get(id string) (*Recipe, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recipes[id]
	if !ok {
		return nil, false
	}
	cp := *rec
	return &cp, true
}

func (s *memStore) Create(_ context.Context, p CreateParams) (*Recipe, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	now := s.tick()
	rec := &Recipe{
		ID:          fmt.Sprintf("00000000-0000-0000-0000-%012d", s.seq),
		Title:       p.Title,
		Description: p.Description,
		Duration:    p.Duration,
		Difficulty:  p.Difficulty,
		Steps:       p.Steps,
		OwnerID:     p.OwnerID,
		Owner:       "user-" + p.OwnerID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.recipes[rec.ID] = rec
	cp := *rec
	return &cp, nil
}

func (s *memStore) GetByID(_ context.Context, id string) (*Recipe, error) {
	rec, ok := s.get(id)
	if !ok {
		return nil, ErrNotFound
	}
	return rec, nil
}

func (s *memStore) List(_ context.Context, p ListParams) ([]Recipe, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []Recipe{}
	for _, rec := range s.recipes {
		if p.OwnerID == "" || rec.OwnerID == p.OwnerID {
			out = append(out, *rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if p.Offset >= len(out) {
		return []Recipe{}, nil
	}
	out = out[p.Offset:]
	if len(out) > p.Limit {
		out = out[:p.Limit]
	}
	return out, nil
}

func (s *memStore) Update(_ context.Context, id string, p UpdateParams) (*Recipe, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recipes[id]
	if !ok {
		return nil, ErrNotFound
	}
	if p.Title != nil {
		rec.Title = *p.Title
	}
	if p.Description != nil {
		rec.Description = *p.Description
	}
	if p.Duration != nil {
		rec.Duration = *p.Duration
	}
	if p.Difficulty != nil {
		rec.Difficulty = *p.Difficulty
	}
	if p.Steps != nil {
		rec.Steps = *p.Steps
	}
	rec.UpdatedAt = s.tick()
	cp := *rec
	return &cp, nil
}

func (s *memStore) SetImageKey(_ context.Context, id string, key *string) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.setImageErr != nil {
		return time.Time{}, s.setImageErr
	}
	rec, ok := s.recipes[id]
	if !ok {
		return time.Time{}, ErrNotFound
	}
	s.imageWrites++
	if key != nil {
		k := *key
		key = &k
	}
	rec.ImageKey = key
	rec.UpdatedAt = s.tick()
	return rec.UpdatedAt, nil
}

func (s *memStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteErr != nil {
		return s.deleteErr
	}
	if _, ok := s.recipes[id]; !ok {
		return ErrNotFound
	}
	delete(s.recipes, id)
	return nil
}

func (s *memStore) ExistsByTitle(_ context.Context, ownerID, title string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.recipes {
		if rec.OwnerID == ownerID && rec.Title == title {
			return true, nil
		}
	}
	return false, nil
}

func strptr(s string) *string { return &s }
