package model

import (
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
	// MaxPage keeps Page*Size within int for any allowed size.
	MaxPage = math.MaxInt / MaxPageSize

	DefaultRecentLimit = 50
)

// SearchFilter fields are combined with AND. Zero values mean "no constraint".
type SearchFilter struct {
	GroupID        string
	SenderID       string
	Keyword        string
	Kind           *MessageKind
	SentSince      *time.Time // inclusive
	SentAfter      *time.Time
	SentBefore     *time.Time
	IncludeDeleted bool
}

// PageRequest is a 0-based offset page.
type PageRequest struct {
	Page int
	Size int
}

// Normalize clamps the request into the supported range.
func (p PageRequest) Normalize() PageRequest {
	if p.Page < 0 {
		p.Page = 0
	}
	if p.Page > MaxPage {
		p.Page = MaxPage
	}
	if p.Size <= 0 {
		p.Size = DefaultPageSize
	}
	if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}
	return p
}

func (p PageRequest) Offset() int { return p.Page * p.Size }

type Page[T any] struct {
	Items       []T
	TotalCount  int64
	Page        int
	Size        int
	HasNext     bool
	HasPrevious bool
}

func NewPage[T any](items []T, total int64, req PageRequest) Page[T] {
	if items == nil {
		items = []T{}
	}
	return Page[T]{
		Items:       items,
		TotalCount:  total,
		Page:        req.Page,
		Size:        req.Size,
		HasNext:     int64(req.Offset()+len(items)) < total,
		HasPrevious: req.Page > 0,
	}
}

func (p Page[T]) TotalPages() int {
	if p.Size == 0 {
		return 0
	}
	return int((p.TotalCount + int64(p.Size) - 1) / int64(p.Size))
}

// History is a newest-first page of a group's visible messages.
type History struct {
	Page[ChatMessage]
	LastMessageID   *uuid.UUID
	LastMessageTime *time.Time
}

// MessageQuery selects stored messages newest first (sent time, then key).
// A zero Limit returns every match.
type MessageQuery struct {
	Filter SearchFilter
	Offset int
	Limit  int
}

// Matches applies the filter to one message.
func (f SearchFilter) Matches(m *ChatMessage) bool {
	switch {
	case f.GroupID != "" && m.GroupID != f.GroupID:
		return false
	case f.SenderID != "" && m.SenderID != f.SenderID:
		return false
	case f.Kind != nil && m.Kind != *f.Kind:
		return false
	case f.SentSince != nil && m.SentAt.Before(*f.SentSince):
		return false
	case f.SentAfter != nil && !m.SentAt.After(*f.SentAfter):
		return false
	case f.SentBefore != nil && !m.SentAt.Before(*f.SentBefore):
		return false
	case !f.IncludeDeleted && m.Deleted:
		return false
	case f.Keyword != "" && !strings.Contains(strings.ToLower(m.Content), strings.ToLower(f.Keyword)):
		return false
	}
	return true
}
