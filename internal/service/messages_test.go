package service_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gulon/chat-delivery-service/internal/adapter/membership"
	"github.com/gulon/chat-delivery-service/internal/adapter/store"
	"github.com/gulon/chat-delivery-service/internal/domain/model"
	"github.com/gulon/chat-delivery-service/internal/domain/registry"
	"github.com/gulon/chat-delivery-service/internal/service"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	repo  *store.MemoryRepository
	guard *membership.MemoryGuard
	hub   *registry.Hub
	svc   *service.MessageService
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newFixture seeds g1 with owner, admin, alice and bob, g2 with carol, and a known outsider mallory.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	guard := membership.NewMemoryGuard()
	guard.SetMember("g1", "owner", "olivia", model.RoleOwner)
	guard.SetMember("g1", "admin", "adam", model.RoleAdmin)
	guard.SetMember("g1", "alice", "alice", model.RoleMember)
	guard.SetMember("g1", "bob", "bob", model.RoleMember)
	guard.SetMember("g2", "carol", "carol", model.RoleMember)
	guard.AddUser("mallory", "mallory")

	hub := registry.NewHub()
	t.Cleanup(hub.Shutdown)

	repo := store.NewMemoryRepository()
	return &fixture{
		repo:  repo,
		guard: guard,
		hub:   hub,
		svc:   service.NewMessageService(repo, guard, hub, discardLogger()),
	}
}

func (f *fixture) send(t *testing.T, group, sender, content string) *model.ChatMessage {
	t.Helper()
	m, err := f.svc.Create(context.Background(), service.CreateMessage{GroupID: group, SenderID: sender, Content: content})
	require.NoError(t, err)
	return m
}

func TestMessageService_Create(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	// Given an active member
	start := time.Now()

	// When they create a message without a kind
	m, err := f.svc.Create(context.Background(), service.CreateMessage{GroupID: "g1", SenderID: "alice", Content: "hello"})

	// Then it is persisted in the sent state
	req.NoError(err)
	req.False(m.Deleted)
	req.Nil(m.EditedAt)
	req.Equal(model.KindText, m.Kind)
	req.False(m.SentAt.Before(start.Truncate(time.Millisecond)))
	req.NotEqual(uuid.Nil, m.PublicID)
	req.Equal(1, f.repo.Len())
}

func TestMessageService_CreateRejections(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, service.CreateMessage{GroupID: "g1", SenderID: "mallory", Content: "hi"})
	req.ErrorIs(err, model.ErrNotAMember)

	_, err = f.svc.Create(ctx, service.CreateMessage{GroupID: "nope", SenderID: "alice", Content: "hi"})
	req.ErrorIs(err, model.ErrGroupNotFound)

	_, err = f.svc.Create(ctx, service.CreateMessage{GroupID: "g1", SenderID: "ghost", Content: "hi"})
	req.ErrorIs(err, model.ErrUserNotFound)

	_, err = f.svc.Create(ctx, service.CreateMessage{GroupID: "g1", SenderID: "alice", Content: "  "})
	req.ErrorIs(err, model.ErrInvalidArgument)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = f.svc.Create(cancelled, service.CreateMessage{GroupID: "g1", SenderID: "alice", Content: "hi"})
	req.Error(err)

	// Then nothing was written
	req.Zero(f.repo.Len())
}

func TestMessageService_GetIsOpaqueToNonMembers(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()

	m := f.send(t, "g1", "alice", "secret")

	got, err := f.svc.Get(ctx, m.PublicID, "bob")
	req.NoError(err)
	req.Equal("secret", got.Content)

	got, err = f.svc.Get(ctx, m.PublicID, "")
	req.NoError(err)
	req.Equal(m.PublicID, got.PublicID)

	// Non-members and unknown users cannot tell the message exists
	_, err = f.svc.Get(ctx, m.PublicID, "carol")
	req.ErrorIs(err, model.ErrMessageNotFound)
	_, err = f.svc.Get(ctx, m.PublicID, "ghost")
	req.ErrorIs(err, model.ErrMessageNotFound)

	_, err = f.svc.Get(ctx, uuid.New(), "alice")
	req.ErrorIs(err, model.ErrMessageNotFound)
}

func TestMessageService_Edit(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()

	m := f.send(t, "g1", "alice", "draft")

	// The author may edit
	edited, err := f.svc.Edit(ctx, m.PublicID, "final", "alice")
	req.NoError(err)
	req.Equal("final", edited.Content)
	req.True(edited.IsEdited())

	// Even an owner may not edit someone else's message
	_, err = f.svc.Edit(ctx, m.PublicID, "hijack", "owner")
	req.ErrorIs(err, model.ErrForbidden)

	_, err = f.svc.Edit(ctx, uuid.New(), "x", "alice")
	req.ErrorIs(err, model.ErrNotFound)

	_, err = f.svc.Edit(ctx, m.PublicID, "", "alice")
	req.ErrorIs(err, model.ErrInvalidArgument)

	// Deleted messages are terminal
	req.NoError(f.svc.Delete(ctx, m.PublicID, "alice"))
	_, err = f.svc.Edit(ctx, m.PublicID, "revive", "alice")
	req.ErrorIs(err, model.ErrForbidden)
}

func TestMessageService_Delete(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()

	m := f.send(t, "g1", "alice", "oops")

	// Given a plain member who is not the author
	err := f.svc.Delete(ctx, m.PublicID, "bob")
	req.ErrorIs(err, model.ErrForbidden)

	// When an admin deletes it
	req.NoError(f.svc.Delete(ctx, m.PublicID, "admin"))

	// Then the content is redacted
	got, err := f.svc.Get(ctx, m.PublicID, "")
	req.NoError(err)
	req.True(got.Deleted)
	req.NotNil(got.DeletedAt)
	req.Equal(model.DeletedPlaceholder, got.Content)

	// And deleting again is forbidden for everyone
	req.ErrorIs(f.svc.Delete(ctx, m.PublicID, "owner"), model.ErrForbidden)
	req.ErrorIs(f.svc.Delete(ctx, m.PublicID, "alice"), model.ErrForbidden)

	req.ErrorIs(f.svc.Delete(ctx, uuid.New(), "alice"), model.ErrMessageNotFound)

	// Outsiders and unknown users are forbidden, not told about the group
	other := f.send(t, "g1", "bob", "mine")
	req.ErrorIs(f.svc.Delete(ctx, other.PublicID, "mallory"), model.ErrForbidden)
	req.ErrorIs(f.svc.Delete(ctx, other.PublicID, "ghost"), model.ErrForbidden)
}

func TestMessageService_EditDeleteRace(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()

	for range 50 {
		m := f.send(t, "g1", "alice", "v0")

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = f.svc.Edit(ctx, m.PublicID, "v1", "alice")
		}()
		go func() {
			defer wg.Done()
			_ = f.svc.Delete(ctx, m.PublicID, "owner")
		}()
		wg.Wait()

		got, err := f.svc.Get(ctx, m.PublicID, "")
		req.NoError(err)
		req.True(got.Deleted)
		req.Equal(model.DeletedPlaceholder, got.Content)
	}
}

func TestMessageService_History(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()

	first := f.send(t, "g1", "alice", "one")
	f.send(t, "g1", "bob", "two")
	third := f.send(t, "g1", "alice", "three")
	f.send(t, "g2", "carol", "elsewhere")
	req.NoError(f.svc.Delete(ctx, first.PublicID, "alice"))

	h, err := f.svc.History(ctx, "g1", model.PageRequest{Size: 10}, "bob")
	req.NoError(err)
	req.Len(h.Items, 2)
	req.Equal(int64(2), h.TotalCount)
	req.Equal(third.PublicID, h.Items[0].PublicID)
	req.Equal("two", h.Items[1].Content)
	req.Equal(h.Items[1].PublicID, *h.LastMessageID)
	req.False(h.HasNext)

	page, err := f.svc.History(ctx, "g1", model.PageRequest{Page: 0, Size: 1}, "")
	req.NoError(err)
	req.True(page.HasNext)
	req.Equal(third.PublicID, page.Items[0].PublicID)

	_, err = f.svc.History(ctx, "g1", model.PageRequest{}, "carol")
	req.ErrorIs(err, model.ErrForbidden)
	_, err = f.svc.History(ctx, "g1", model.PageRequest{}, "ghost")
	req.ErrorIs(err, model.ErrNotAMember)
	_, err = f.svc.History(ctx, "nope", model.PageRequest{}, "alice")
	req.ErrorIs(err, model.ErrGroupNotFound)
}

func TestMessageService_Recent(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()

	for range 3 {
		f.send(t, "g1", "alice", "x")
	}
	last := f.send(t, "g1", "bob", "latest")

	items, err := f.svc.Recent(ctx, "g1", 2, "alice")
	req.NoError(err)
	req.Len(items, 2)
	req.Equal(last.PublicID, items[0].PublicID)

	items, err = f.svc.Recent(ctx, "g1", 0, "")
	req.NoError(err)
	req.Len(items, 4)

	_, err = f.svc.Recent(ctx, "g1", 10, "mallory")
	req.ErrorIs(err, model.ErrNotAMember)
}

func TestMessageService_Search(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()

	f.send(t, "g1", "alice", "Hello World")
	f.send(t, "g1", "bob", "hello there")
	gone := f.send(t, "g1", "alice", "HELLO again")
	f.send(t, "g2", "carol", "hello from g2")
	req.NoError(f.svc.Delete(ctx, gone.PublicID, "alice"))

	// Keyword is case-insensitive and ANDed with the other fields
	page, err := f.svc.Search(ctx, model.SearchFilter{GroupID: "g1", SenderID: "alice", Keyword: " hello "}, model.PageRequest{})
	req.NoError(err)
	req.Len(page.Items, 1)
	req.Equal("Hello World", page.Items[0].Content)

	page, err = f.svc.Search(ctx, model.SearchFilter{Keyword: "HELLO"}, model.PageRequest{})
	req.NoError(err)
	req.Equal(int64(3), page.TotalCount)

	// Deleted content is redacted, so only the sender filter finds it
	page, err = f.svc.Search(ctx, model.SearchFilter{GroupID: "g1", SenderID: "alice", IncludeDeleted: true}, model.PageRequest{})
	req.NoError(err)
	req.Len(page.Items, 2)
	req.True(page.Items[0].Deleted)

	kind := model.KindImage
	page, err = f.svc.Search(ctx, model.SearchFilter{Kind: &kind}, model.PageRequest{})
	req.NoError(err)
	req.Empty(page.Items)
}

func TestMessageService_Exists(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()

	m := f.send(t, "g1", "alice", "here")

	ok, err := f.svc.Exists(ctx, m.PublicID)
	req.NoError(err)
	req.True(ok)

	ok, err = f.svc.Exists(ctx, uuid.New())
	req.NoError(err)
	req.False(ok)
}

func TestMessageService_Status(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()

	// Given bob online and a deleted message from alice
	conn := registry.NewConnector(ctx, "bob", 4, registry.ConnectMetadata{Transport: "ws"})
	f.hub.Attach(registry.UserChannel("bob"), conn)

	f.send(t, "g1", "alice", "one")
	gone := f.send(t, "g1", "alice", "two")
	last := f.send(t, "g1", "bob", "three")
	req.NoError(f.svc.Delete(ctx, gone.PublicID, "alice"))

	// When the status is read
	st, err := f.svc.Status(ctx, "g1", "alice")
	req.NoError(err)

	// Then counts cover visible messages only
	req.Equal(int64(2), st.TotalMessages)
	req.Equal(int64(2), st.TodayMessages)
	req.Equal(last.PublicID, st.LastMessage.PublicID)
	req.Len(st.ActiveUsers, 4)

	byID := make(map[string]model.ActiveUser)
	for _, u := range st.ActiveUsers {
		byID[u.UserID] = u
	}
	req.True(byID["bob"].Online)
	req.False(byID["alice"].Online)
	req.Equal(gone.SentAt, *byID["alice"].LastSeen)
	req.Nil(byID["owner"].LastSeen)

	_, err = f.svc.Status(ctx, "g1", "carol")
	req.ErrorIs(err, model.ErrNotAMember)
}

func TestMessageService_Statistics(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()

	now := time.Now().UTC()
	old := &model.ChatMessage{PublicID: uuid.New(), GroupID: "g1", SenderID: "bob", Content: "ancient", Kind: model.KindText, SentAt: now.AddDate(0, 0, -10)}
	req.NoError(f.repo.Insert(ctx, old))

	f.send(t, "g1", "alice", "a")
	img, err := f.svc.Create(ctx, service.CreateMessage{GroupID: "g1", SenderID: "alice", Content: "pic.png", Kind: model.KindImage})
	req.NoError(err)
	edited := f.send(t, "g1", "alice", "typo")
	_, err = f.svc.Edit(ctx, edited.PublicID, "fixed", "alice")
	req.NoError(err)
	req.NoError(f.svc.Delete(ctx, img.PublicID, "owner"))

	// Members cannot read statistics
	_, err = f.svc.Statistics(ctx, "g1", "alice")
	req.ErrorIs(err, model.ErrForbidden)
	_, err = f.svc.Statistics(ctx, "g1", "mallory")
	req.ErrorIs(err, model.ErrForbidden)

	st, err := f.svc.Statistics(ctx, "g1", "admin")
	req.NoError(err)

	// Deleted messages are counted
	req.Equal(int64(4), st.TotalMessages)
	req.Equal(int64(3), st.TextMessages)
	req.Equal(int64(1), st.ImageMessages)
	req.Equal(int64(1), st.DeletedMessages)
	req.Equal(int64(1), st.EditedMessages)
	req.Equal(old.SentAt, *st.FirstMessageAt)

	// The old message is outside the daily window
	var daily int64
	for i, d := range st.DailyCounts {
		daily += d.Count
		if i > 0 {
			req.Less(st.DailyCounts[i-1].Date, d.Date)
		}
	}
	req.Equal(int64(3), daily)

	req.Len(st.UserCounts, 2)
	req.Equal("alice", st.UserCounts[0].UserID)
	req.Equal(int64(3), st.UserCounts[0].MessageCount)
	req.Equal(int64(0), st.UserCounts[0].LastMessageDaysAgo)
	req.Equal(int64(10), st.UserCounts[1].LastMessageDaysAgo)

	empty, err := f.svc.Statistics(ctx, "g2", "carol")
	req.ErrorIs(err, model.ErrForbidden)
	req.Nil(empty)
}

func TestMessageService_OwnerDeletesMemberMessage(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()

	// Given alice's message in g1
	m1 := f.send(t, "g1", "alice", "original text")

	// When the group owner deletes it
	req.NoError(f.svc.Delete(ctx, m1.PublicID, "owner"))

	// Then alice still sees it, as a deleted placeholder
	got, err := f.svc.Get(ctx, m1.PublicID, "alice")
	req.NoError(err)
	req.True(got.Deleted)
	req.NotNil(got.DeletedAt)
	req.Equal(model.DeletedPlaceholder, got.Content)

	// And she can no longer edit or delete it
	_, err = f.svc.Edit(ctx, m1.PublicID, "changed", "alice")
	req.ErrorIs(err, model.ErrForbidden)
	req.ErrorIs(f.svc.Delete(ctx, m1.PublicID, "alice"), model.ErrForbidden)

	got, err = f.svc.Get(ctx, m1.PublicID, "alice")
	req.NoError(err)
	req.Equal(model.DeletedPlaceholder, got.Content)
	req.Nil(got.EditedAt)
}

func TestMessageService_HugePageIsEmpty(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()

	f.send(t, "g1", "alice", "one")
	f.send(t, "g1", "bob", "two")

	// Given a page number whose offset would overflow int
	page := model.PageRequest{Page: (1 << 62) + 1, Size: 3}

	// Then history and search return an empty last page instead of failing
	hist, err := f.svc.History(ctx, "g1", page, "alice")
	req.NoError(err)
	req.Empty(hist.Items)
	req.Equal(int64(2), hist.TotalCount)
	req.False(hist.HasNext)

	res, err := f.svc.Search(ctx, model.SearchFilter{GroupID: "g1"}, page)
	req.NoError(err)
	req.Empty(res.Items)
	req.Equal(int64(2), res.TotalCount)
}

func TestMessageService_StatusCountsMessagesAtMidnight(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()

	midnight := time.Date(2026, time.October, 17, 0, 0, 0, 0, time.Local)

	// Given one message a nanosecond before midnight and one exactly at midnight
	f.svc.SetClock(func() time.Time { return midnight.Add(-time.Nanosecond) })
	f.send(t, "g1", "alice", "late")
	f.svc.SetClock(func() time.Time { return midnight })
	f.send(t, "g1", "bob", "early")

	// When the status is read at midnight
	st, err := f.svc.Status(ctx, "g1", "alice")

	// Then only the midnight message counts as today's
	req.NoError(err)
	req.Equal(int64(2), st.TotalMessages)
	req.Equal(int64(1), st.TodayMessages)
}
