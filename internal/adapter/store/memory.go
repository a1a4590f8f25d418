// Package store persists chat messages in memory or in PostgreSQL.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/gulon/chat-delivery-service/internal/domain/model"
	"github.com/gulon/chat-delivery-service/internal/service"
)

var _ service.MessageRepository = (*MemoryRepository)(nil)

// MemoryRepository keeps messages in process memory.
// Mutations hold the write lock for their whole read-modify-write cycle.
type MemoryRepository struct {
	mu       sync.RWMutex
	nextID   int64
	messages []*model.ChatMessage
	byPublic map[uuid.UUID]*model.ChatMessage
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byPublic: make(map[uuid.UUID]*model.ChatMessage)}
}

func (r *MemoryRepository) Insert(ctx context.Context, m *model.ChatMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byPublic[m.PublicID]; ok {
		return fmt.Errorf("%w: message %s already exists", model.ErrConflict, m.PublicID)
	}
	r.nextID++
	m.ID = r.nextID

	stored := clone(m)
	r.messages = append(r.messages, stored)
	r.byPublic[stored.PublicID] = stored
	return nil
}

func (r *MemoryRepository) Get(ctx context.Context, publicID uuid.UUID) (*model.ChatMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.byPublic[publicID]
	if !ok {
		return nil, model.ErrMessageNotFound
	}
	return clone(m), nil
}

func (r *MemoryRepository) Update(ctx context.Context, publicID uuid.UUID, fn func(m *model.ChatMessage) error) (*model.ChatMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.byPublic[publicID]
	if !ok {
		return nil, model.ErrMessageNotFound
	}

	// fn works on a copy so a rejected mutation leaves nothing behind.
	next := clone(stored)
	if err := fn(next); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	*stored = *next
	return clone(stored), nil
}

func (r *MemoryRepository) Find(ctx context.Context, q model.MessageQuery) ([]model.ChatMessage, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	r.mu.RLock()
	matched := make([]model.ChatMessage, 0)
	for _, m := range r.messages {
		if q.Filter.Matches(m) {
			matched = append(matched, *clone(m))
		}
	}
	r.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.SentAt.Equal(b.SentAt) {
			return a.SentAt.After(b.SentAt)
		}
		return a.ID > b.ID
	})

	total := int64(len(matched))
	if q.Offset < 0 || q.Offset >= len(matched) {
		return []model.ChatMessage{}, total, nil
	}
	matched = matched[q.Offset:]
	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}
	return matched, total, nil
}

// Len reports the number of stored messages, deleted ones included.
func (r *MemoryRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.messages)
}

func (r *MemoryRepository) Close() error { return nil }

func clone(m *model.ChatMessage) *model.ChatMessage {
	c := *m
	if m.EditedAt != nil {
		t := *m.EditedAt
		c.EditedAt = &t
	}
	if m.DeletedAt != nil {
		t := *m.DeletedAt
		c.DeletedAt = &t
	}
	return &c
}
