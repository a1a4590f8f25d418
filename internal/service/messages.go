package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gulon/chat-delivery-service/internal/domain/model"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

// MessageStore is the persisted, queryable chat history.
type MessageStore interface {
	Create(ctx context.Context, in CreateMessage) (*model.ChatMessage, error)
	Get(ctx context.Context, id uuid.UUID, requester string) (*model.ChatMessage, error)
	Edit(ctx context.Context, id uuid.UUID, content, requester string) (*model.ChatMessage, error)
	Delete(ctx context.Context, id uuid.UUID, requester string) error
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
	History(ctx context.Context, groupID string, page model.PageRequest, requester string) (*model.History, error)
	Recent(ctx context.Context, groupID string, limit int, requester string) ([]model.ChatMessage, error)
	Search(ctx context.Context, filter model.SearchFilter, page model.PageRequest) (model.Page[model.ChatMessage], error)
	Status(ctx context.Context, groupID, requester string) (*model.GroupChatStatus, error)
	Statistics(ctx context.Context, groupID, requester string) (*model.MessageStatistics, error)
}

type CreateMessage struct {
	GroupID  string
	SenderID string
	Content  string
	Kind     model.MessageKind
}

var _ MessageStore = (*MessageService)(nil)

// MessageService enforces the message state machine (sent, edited, deleted) and its
// permission rules on top of a repository.
type MessageService struct {
	repo     MessageRepository
	guard    MembershipGuard
	presence Presence
	logger   *slog.Logger
	now      func() time.Time
}

func NewMessageService(repo MessageRepository, guard MembershipGuard, presence Presence, logger *slog.Logger) *MessageService {
	return &MessageService{
		repo:     repo,
		guard:    guard,
		presence: presence,
		logger:   logger.With("component", "messages"),
		now:      time.Now,
	}
}

// Create persists a new message from an active member.
// Unknown group or user and missing membership are returned unchanged to the caller.
func (s *MessageService) Create(ctx context.Context, in CreateMessage) (*model.ChatMessage, error) {
	if err := model.ValidateContent(in.Content); err != nil {
		return nil, err
	}
	if in.Kind == 0 {
		in.Kind = model.KindText
	}
	if !in.Kind.Valid() {
		return nil, fmt.Errorf("%w: message kind %d", model.ErrInvalidArgument, in.Kind)
	}

	ok, err := s.guard.IsActiveMember(ctx, in.GroupID, in.SenderID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, model.ErrNotAMember
	}

	m := &model.ChatMessage{
		PublicID: uuid.New(),
		GroupID:  in.GroupID,
		SenderID: in.SenderID,
		Content:  in.Content,
		Kind:     in.Kind,
		SentAt:   s.now().UTC(),
	}
	if err := s.repo.Insert(ctx, m); err != nil {
		return nil, err
	}

	s.logger.Info("MESSAGE_CREATED", "message_id", m.PublicID, "group_id", m.GroupID, "sender_id", m.SenderID)
	return m, nil
}

// Get hides messages of groups the requester does not belong to behind ErrMessageNotFound.
func (s *MessageService) Get(ctx context.Context, id uuid.UUID, requester string) (*model.ChatMessage, error) {
	m, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if requester == "" {
		return m, nil
	}

	ok, err := s.guard.IsActiveMember(ctx, m.GroupID, requester)
	if err != nil && !errors.Is(err, model.ErrNotFound) {
		return nil, err
	}
	if !ok {
		return nil, model.ErrMessageNotFound
	}
	return m, nil
}

// Edit is allowed for the author of a message that is not deleted.
func (s *MessageService) Edit(ctx context.Context, id uuid.UUID, content, requester string) (*model.ChatMessage, error) {
	if requester == "" {
		return nil, fmt.Errorf("%w: requester is required", model.ErrInvalidArgument)
	}
	if err := model.ValidateContent(content); err != nil {
		return nil, err
	}

	m, err := s.repo.Update(ctx, id, func(m *model.ChatMessage) error {
		if m.SenderID != requester || m.Deleted {
			return fmt.Errorf("%w: only the author may edit a message that is not deleted", model.ErrForbidden)
		}
		now := s.now().UTC()
		m.Content = content
		m.EditedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("MESSAGE_EDITED", "message_id", id, "requester", requester)
	return m, nil
}

// Delete is allowed for the author or a group owner/admin. A deleted message is terminal:
// deleting it again is forbidden for everyone.
func (s *MessageService) Delete(ctx context.Context, id uuid.UUID, requester string) error {
	if requester == "" {
		return fmt.Errorf("%w: requester is required", model.ErrInvalidArgument)
	}

	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}

	// The group of a message never changes, so the role can be resolved outside the row lock.
	role := model.RoleNone
	if current.SenderID != requester {
		role, err = s.guard.RoleOf(ctx, current.GroupID, requester)
		if err != nil && !errors.Is(err, model.ErrNotFound) {
			return err
		}
	}

	_, err = s.repo.Update(ctx, id, func(m *model.ChatMessage) error {
		if m.Deleted {
			return fmt.Errorf("%w: message is already deleted", model.ErrForbidden)
		}
		if m.SenderID != requester && !role.CanModerate() {
			return fmt.Errorf("%w: only the author or a group owner/admin may delete a message", model.ErrForbidden)
		}
		now := s.now().UTC()
		m.Deleted = true
		m.DeletedAt = &now
		m.Content = model.DeletedPlaceholder
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("MESSAGE_DELETED", "message_id", id, "requester", requester, "role", role.String())
	return nil
}

func (s *MessageService) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	_, err := s.repo.Get(ctx, id)
	if errors.Is(err, model.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// History returns a newest-first page of the group's visible messages.
func (s *MessageService) History(ctx context.Context, groupID string, page model.PageRequest, requester string) (*model.History, error) {
	if err := s.requireMember(ctx, groupID, requester); err != nil {
		return nil, err
	}

	page = page.Normalize()
	items, total, err := s.repo.Find(ctx, model.MessageQuery{
		Filter: model.SearchFilter{GroupID: groupID},
		Offset: page.Offset(),
		Limit:  page.Size,
	})
	if err != nil {
		return nil, err
	}

	h := &model.History{Page: model.NewPage(items, total, page)}
	if n := len(items); n > 0 {
		last := items[n-1]
		h.LastMessageID = &last.PublicID
		h.LastMessageTime = &last.SentAt
	}
	return h, nil
}

// Recent returns up to limit of the newest visible messages.
func (s *MessageService) Recent(ctx context.Context, groupID string, limit int, requester string) ([]model.ChatMessage, error) {
	if err := s.requireMember(ctx, groupID, requester); err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = model.DefaultRecentLimit
	}
	limit = min(limit, model.MaxPageSize)

	items, _, err := s.repo.Find(ctx, model.MessageQuery{
		Filter: model.SearchFilter{GroupID: groupID},
		Limit:  limit,
	})
	return items, err
}

func (s *MessageService) Search(ctx context.Context, filter model.SearchFilter, page model.PageRequest) (model.Page[model.ChatMessage], error) {
	page = page.Normalize()
	filter.Keyword = strings.TrimSpace(filter.Keyword)

	items, total, err := s.repo.Find(ctx, model.MessageQuery{
		Filter: filter,
		Offset: page.Offset(),
		Limit:  page.Size,
	})
	if err != nil {
		return model.Page[model.ChatMessage]{}, err
	}
	return model.NewPage(items, total, page), nil
}

// Status summarises a group. Counts, last message and members are looked up concurrently.
func (s *MessageService) Status(ctx context.Context, groupID, requester string) (*model.GroupChatStatus, error) {
	if err := s.requireMember(ctx, groupID, requester); err != nil {
		return nil, err
	}

	now := s.now()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	visible := model.SearchFilter{GroupID: groupID}
	today := model.SearchFilter{GroupID: groupID, SentSince: &startOfDay}

	st := &model.GroupChatStatus{GroupID: groupID}
	var members []model.Member

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		last, total, err := s.repo.Find(gCtx, model.MessageQuery{Filter: visible, Limit: 1})
		if err != nil {
			return err
		}
		st.TotalMessages = total
		if len(last) > 0 {
			st.LastMessage = &last[0]
			st.LastActivity = &last[0].SentAt
		}
		return nil
	})
	g.Go(func() error {
		_, n, err := s.repo.Find(gCtx, model.MessageQuery{Filter: today, Limit: 1})
		st.TodayMessages = n
		return err
	})
	g.Go(func() error {
		var err error
		members, err = s.guard.ActiveMembers(gCtx, groupID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("group status %s: %w", groupID, err)
	}

	st.ActiveUsers = make([]model.ActiveUser, len(members))
	g, gCtx = errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, m := range members {
		g.Go(func() error {
			u := model.ActiveUser{UserID: m.UserID, Username: m.Username, Online: s.presence.IsOnline(m.UserID)}
			last, _, err := s.repo.Find(gCtx, model.MessageQuery{
				Filter: model.SearchFilter{GroupID: groupID, SenderID: m.UserID, IncludeDeleted: true},
				Limit:  1,
			})
			if err != nil {
				return err
			}
			if len(last) > 0 {
				u.LastSeen = &last[0].SentAt
			}
			st.ActiveUsers[i] = u
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("group status %s: %w", groupID, err)
	}
	return st, nil
}

// Statistics counts every message of the group, deleted ones included.
// Only group owners and admins may read them.
func (s *MessageService) Statistics(ctx context.Context, groupID, requester string) (*model.MessageStatistics, error) {
	if requester == "" {
		return nil, fmt.Errorf("%w: requester is required", model.ErrInvalidArgument)
	}
	role, err := s.guard.RoleOf(ctx, groupID, requester)
	if errors.Is(err, model.ErrUserNotFound) {
		return nil, model.ErrNotAMember
	}
	if err != nil {
		return nil, err
	}
	if !role.CanModerate() {
		return nil, fmt.Errorf("%w: statistics require owner or admin", model.ErrForbidden)
	}

	all, _, err := s.repo.Find(ctx, model.MessageQuery{Filter: model.SearchFilter{GroupID: groupID, IncludeDeleted: true}})
	if err != nil {
		return nil, err
	}
	return buildStatistics(groupID, all, s.now()), nil
}

func buildStatistics(groupID string, all []model.ChatMessage, now time.Time) *model.MessageStatistics {
	ofKind := func(k model.MessageKind) int64 {
		return int64(lo.CountBy(all, func(m model.ChatMessage) bool { return m.Kind == k }))
	}

	st := &model.MessageStatistics{
		GroupID:         groupID,
		TotalMessages:   int64(len(all)),
		TextMessages:    ofKind(model.KindText),
		ImageMessages:   ofKind(model.KindImage),
		FileMessages:    ofKind(model.KindFile),
		SystemMessages:  ofKind(model.KindSystem),
		DeletedMessages: int64(lo.CountBy(all, func(m model.ChatMessage) bool { return m.Deleted })),
		EditedMessages:  int64(lo.CountBy(all, func(m model.ChatMessage) bool { return m.IsEdited() })),
		DailyCounts:     []model.DailyCount{},
		UserCounts:      []model.UserCount{},
	}
	if len(all) == 0 {
		return st
	}

	times := lo.Map(all, func(m model.ChatMessage, _ int) time.Time { return m.SentAt })
	first, last := lo.MinBy(times, func(a, b time.Time) bool { return a.Before(b) }), lo.MaxBy(times, func(a, b time.Time) bool { return a.After(b) })
	st.FirstMessageAt, st.LastMessageAt = &first, &last

	weekAgo := now.AddDate(0, 0, -7)
	recent := lo.Filter(all, func(m model.ChatMessage, _ int) bool { return m.SentAt.After(weekAgo) })
	byDay := lo.CountValuesBy(recent, func(m model.ChatMessage) string { return m.SentAt.Format(time.DateOnly) })
	for _, day := range lo.Keys(byDay) {
		st.DailyCounts = append(st.DailyCounts, model.DailyCount{Date: day, Count: int64(byDay[day])})
	}
	sort.Slice(st.DailyCounts, func(i, j int) bool { return st.DailyCounts[i].Date < st.DailyCounts[j].Date })

	for sender, msgs := range lo.GroupBy(all, func(m model.ChatMessage) string { return m.SenderID }) {
		latest := lo.MaxBy(msgs, func(a, b model.ChatMessage) bool { return a.SentAt.After(b.SentAt) })
		st.UserCounts = append(st.UserCounts, model.UserCount{
			UserID:             sender,
			MessageCount:       int64(len(msgs)),
			LastMessageDaysAgo: int64(now.Sub(latest.SentAt) / (24 * time.Hour)),
		})
	}
	sort.Slice(st.UserCounts, func(i, j int) bool {
		a, b := st.UserCounts[i], st.UserCounts[j]
		if a.MessageCount != b.MessageCount {
			return a.MessageCount > b.MessageCount
		}
		return a.UserID < b.UserID
	})
	return st
}

// requireMember enforces membership when a requester is given. An unknown requester is
// treated as a non-member; an unknown group is reported as such.
func (s *MessageService) requireMember(ctx context.Context, groupID, requester string) error {
	if requester == "" {
		return nil
	}
	ok, err := s.guard.IsActiveMember(ctx, groupID, requester)
	if errors.Is(err, model.ErrUserNotFound) {
		return model.ErrNotAMember
	}
	if err != nil {
		return err
	}
	if !ok {
		return model.ErrNotAMember
	}
	return nil
}
