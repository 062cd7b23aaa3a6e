package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"realtime-chat/models"
	"realtime-chat/repository"
)

type emitted struct {
	channel string
	event   string
	data    any
}

type eviction struct {
	channel string
	userID  string
}

type recordingNotifier struct {
	mu     sync.Mutex
	emits  []emitted
	evicts []eviction
}

func (n *recordingNotifier) Emit(_ context.Context, channel, event string, data any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.emits = append(n.emits, emitted{channel: channel, event: event, data: data})
	return nil
}

func (n *recordingNotifier) Evict(_ context.Context, channel, userID string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.evicts = append(n.evicts, eviction{channel: channel, userID: userID})
	return nil
}

func (n *recordingNotifier) events(event string) []emitted {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []emitted
	for _, e := range n.emits {
		if e.event == event {
			out = append(out, e)
		}
	}
	return out
}

func (n *recordingNotifier) reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.emits = nil
	n.evicts = nil
}

type fixture struct {
	store    *repository.Store
	notify   *recordingNotifier
	auth     *AuthService
	rooms    *RoomService
	messages *MessageService
	presence *PresenceService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := zap.NewNop()
	store := repository.NewInMemoryStore()
	notify := &recordingNotifier{}
	var n int
	var mu sync.Mutex
	codes := func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("CODE%02d", n)
	}
	return &fixture{
		store:    store,
		notify:   notify,
		auth:     NewAuthService(store, "services-test-secret", time.Hour, log),
		rooms:    NewRoomService(store, notify, codes, 50, log),
		messages: NewMessageService(store, notify, 20, log),
		presence: NewPresenceService(store.Users, notify, log),
	}
}

func (f *fixture) user(t *testing.T, name string) *models.User {
	t.Helper()
	u, _, err := f.auth.Register(context.Background(), name, name+"@example.com", "password123")
	require.NoError(t, err)
	return u
}

func assertKind(t *testing.T, want Kind, err error) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, want, KindOf(err), "error: %v", err)
}

func TestRegisterAndLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u, token, err := f.auth.Register(ctx, " alice ", "Alice@Example.com", "password123")
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)
	assert.Equal(t, "alice@example.com", u.Email)
	assert.NotEqual(t, "password123", u.Password)
	assert.NotEmpty(t, token)

	authed, err := f.auth.Authenticate(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, authed.ID)

	_, _, err = f.auth.Register(ctx, "alice2", "ALICE@example.com", "password123")
	assertKind(t, KindConflict, err)

	_, token, err = f.auth.Login(ctx, "ALICE@example.com", "password123")
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	_, _, err = f.auth.Login(ctx, "alice@example.com", "wrong-password")
	assertKind(t, KindAuth, err)
	assert.Equal(t, "invalid credentials", PublicMessage(err))

	_, _, err = f.auth.Login(ctx, "nobody@example.com", "password123")
	assertKind(t, KindAuth, err)
	assert.Equal(t, "invalid credentials", PublicMessage(err))

	_, err = f.auth.Authenticate(ctx, "garbage")
	assertKind(t, KindAuth, err)
}

func TestRegisterValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		username string
		email    string
		password string
	}{
		{"short username", "ab", "ab@example.com", "password123"},
		{"long username", "abcdefghijklmnopqrstuvwxyz12345", "long@example.com", "password123"},
		{"two rune username", "学生", "cjk@example.com", "password123"},
		{"missing email", "carol", "", "password123"},
		{"bad email", "carol", "not-an-email", "password123"},
		{"short password", "carol", "carol@example.com", "12345"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := f.auth.Register(ctx, tt.username, tt.email, tt.password)
			assertKind(t, KindValidation, err)
			assert.True(t, errors.Is(err, ErrValidation))
		})
	}
}

func TestProfileAndContacts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := f.user(t, "alice"), f.user(t, "bob")

	assertKind(t, KindValidation, f.auth.AddContact(ctx, alice.ID, alice.ID))
	assertKind(t, KindValidation, f.auth.AddContact(ctx, alice.ID, "nope"))
	assertKind(t, KindNotFound, f.auth.AddContact(ctx, alice.ID, models.NewID()))
	require.NoError(t, f.auth.AddContact(ctx, alice.ID, bob.ID))
	require.NoError(t, f.auth.AddContact(ctx, alice.ID, bob.ID))

	room, err := f.rooms.Create(ctx, alice.ID, CreateRoomInput{Name: "general"})
	require.NoError(t, err)
	_, err = f.messages.SendPrivateMessage(ctx, bob.ID, alice.ID, "hi alice")
	require.NoError(t, err)

	p, err := f.auth.Profile(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, p.JoinedRooms, 1)
	assert.Equal(t, room.ID, p.JoinedRooms[0].ID)
	require.Len(t, p.Contacts, 1)
	assert.Equal(t, "bob", p.Contacts[0].Username)
	require.Len(t, p.PrivateChats, 1)
	assert.Equal(t, bob.ID, p.PrivateChats[0].With.ID)
	assert.Equal(t, 1, p.PrivateChats[0].UnreadCount)
	require.NotNil(t, p.PrivateChats[0].LastMessage)
	assert.Equal(t, "hi alice", p.PrivateChats[0].LastMessage.Content)

	require.NoError(t, f.auth.RemoveContact(ctx, alice.ID, bob.ID))
	contacts, err := f.auth.Contacts(ctx, alice.ID)
	require.NoError(t, err)
	assert.Empty(t, contacts.Contacts)
	assert.Len(t, contacts.PrivateChats, 1)
}

func TestSearchUsers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice")
	f.user(t, "alicia")
	f.user(t, "bob")

	got, err := f.auth.SearchUsers(ctx, alice.ID, "ALI")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "alicia", got[0].Username)

	got, err = f.auth.SearchUsers(ctx, alice.ID, "  ")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCreateRoom(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := f.user(t, "alice"), f.user(t, "bob")

	pub, err := f.rooms.Create(ctx, alice.ID, CreateRoomInput{Name: "  general  "})
	require.NoError(t, err)
	assert.Equal(t, "general", pub.Name)
	assert.Equal(t, models.RoomPublic, pub.Type)
	assert.Equal(t, []string{alice.ID}, pub.Members)
	assert.Equal(t, models.DefaultMaxMembers, pub.MaxMembers)
	assert.Empty(t, pub.RoomCode)
	assert.Equal(t, "alice", pub.Creator.Username)

	priv, err := f.rooms.Create(ctx, alice.ID, CreateRoomInput{Name: "secret", Type: models.RoomPrivate, MaxMembers: 3})
	require.NoError(t, err)
	assert.Equal(t, "CODE01", priv.RoomCode)
	assert.Equal(t, 3, priv.MaxMembers)

	_, err = f.rooms.Create(ctx, alice.ID, CreateRoomInput{Name: ""})
	assertKind(t, KindValidation, err)
	_, err = f.rooms.Create(ctx, alice.ID, CreateRoomInput{Name: "x", Type: "secretive"})
	assertKind(t, KindValidation, err)

	long, err := f.rooms.Create(ctx, alice.ID, CreateRoomInput{Name: strings.Repeat("学", 60)})
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("学", 60), long.Name)
	require.NoError(t, f.rooms.Delete(ctx, alice.ID, long.ID))

	visible, err := f.rooms.ListPublic(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, visible, 1)
	assert.Equal(t, pub.ID, visible[0].ID)

	found, err := f.rooms.Search(ctx, bob.ID, "secret", models.RoomPrivate)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Empty(t, found[0].RoomCode, "non-members never see the join code")
}

func TestRoomCodeCollisionRetries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice")

	calls := 0
	f.rooms.newCode = func() string {
		calls++
		if calls < 3 {
			return "SAME00"
		}
		return "FRESH0"
	}
	first, err := f.rooms.Create(ctx, alice.ID, CreateRoomInput{Name: "one", Type: models.RoomPrivate})
	require.NoError(t, err)
	assert.Equal(t, "SAME00", first.RoomCode)

	second, err := f.rooms.Create(ctx, alice.ID, CreateRoomInput{Name: "two", Type: models.RoomPrivate})
	require.NoError(t, err)
	assert.Equal(t, "FRESH0", second.RoomCode)
}

func TestJoinRejectionOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob, carol := f.user(t, "alice"), f.user(t, "bob"), f.user(t, "carol")

	_, err := f.rooms.Join(ctx, bob.ID, models.NewID(), "")
	assertKind(t, KindNotFound, err)

	priv, err := f.rooms.Create(ctx, alice.ID, CreateRoomInput{Name: "tiny", Type: models.RoomPrivate, MaxMembers: 2})
	require.NoError(t, err)

	_, err = f.rooms.Join(ctx, alice.ID, priv.ID, "wrong")
	assertKind(t, KindConflict, err)
	assert.Equal(t, "already a member of this room", PublicMessage(err))

	_, err = f.rooms.Join(ctx, bob.ID, priv.ID, "")
	assertKind(t, KindAuthorization, err)
	_, err = f.rooms.Join(ctx, bob.ID, priv.ID, "WRONG1")
	assertKind(t, KindAuthorization, err)
	_, err = f.rooms.Join(ctx, bob.ID, priv.ID, strings.ToLower(priv.RoomCode))
	assertKind(t, KindAuthorization, err)
	assert.Equal(t, "invalid room code", PublicMessage(err))

	joined, err := f.rooms.Join(ctx, bob.ID, priv.ID, priv.RoomCode)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{alice.ID, bob.ID}, joined.Members)
	assert.Equal(t, priv.RoomCode, joined.RoomCode)

	_, err = f.rooms.Join(ctx, carol.ID, priv.ID, "WRONG1")
	assertKind(t, KindConflict, err)
	assert.Equal(t, "room is full", PublicMessage(err))

	inactive := models.NewRoom("closed", "", models.RoomPublic, alice.ID, 10)
	inactive.IsActive = false
	require.NoError(t, f.store.Rooms.Create(ctx, inactive))
	_, err = f.rooms.Join(ctx, carol.ID, inactive.ID, "")
	assertKind(t, KindAuthorization, err)
	assert.Equal(t, "room is inactive", PublicMessage(err))

	joinedEvents := f.notify.events(models.EventUserJoined)
	require.Len(t, joinedEvents, 1)
	assert.Equal(t, models.RoomChannel(priv.ID), joinedEvents[0].channel)
	assert.Equal(t, models.MembershipEvent{RoomID: priv.ID, UserID: bob.ID, Username: "bob"}, joinedEvents[0].data)

	u, err := f.store.Users.FindByID(ctx, bob.ID)
	require.NoError(t, err)
	assert.True(t, u.HasJoined(priv.ID))
}

func TestLeaveRoom(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := f.user(t, "alice"), f.user(t, "bob")

	room, err := f.rooms.Create(ctx, alice.ID, CreateRoomInput{Name: "lobby"})
	require.NoError(t, err)
	_, err = f.rooms.Join(ctx, bob.ID, room.ID, "")
	require.NoError(t, err)
	f.notify.reset()

	require.NoError(t, f.rooms.Leave(ctx, bob.ID, room.ID))
	assert.Equal(t, []eviction{{channel: models.RoomChannel(room.ID), userID: bob.ID}}, f.notify.evicts)
	assert.Len(t, f.notify.events(models.EventUserLeft), 1)

	require.NoError(t, f.rooms.Leave(ctx, bob.ID, room.ID), "leaving twice is a no-op")
	assert.Len(t, f.notify.evicts, 1)
	assert.Len(t, f.notify.events(models.EventUserLeft), 1)

	assertKind(t, KindNotFound, f.rooms.Leave(ctx, bob.ID, models.NewID()))

	stored, err := f.store.Rooms.FindByID(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{alice.ID}, stored.Members)
	u, err := f.store.Users.FindByID(ctx, bob.ID)
	require.NoError(t, err)
	assert.False(t, u.HasJoined(room.ID))
}

func TestDeleteRoom(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := f.user(t, "alice"), f.user(t, "bob")

	room, err := f.rooms.Create(ctx, alice.ID, CreateRoomInput{Name: "doomed"})
	require.NoError(t, err)
	_, err = f.rooms.Join(ctx, bob.ID, room.ID, "")
	require.NoError(t, err)
	msg, err := f.messages.SendRoomMessage(ctx, bob.ID, room.ID, "bye")
	require.NoError(t, err)

	err = f.rooms.Delete(ctx, bob.ID, room.ID)
	assertKind(t, KindAuthorization, err)

	require.NoError(t, f.rooms.Delete(ctx, alice.ID, room.ID))
	assert.Contains(t, f.notify.evicts, eviction{channel: models.RoomChannel(room.ID)})

	_, err = f.store.Rooms.FindByID(ctx, room.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = f.store.Messages.FindByID(ctx, msg.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	for _, id := range []string{alice.ID, bob.ID} {
		u, err := f.store.Users.FindByID(ctx, id)
		require.NoError(t, err)
		assert.False(t, u.HasJoined(room.ID))
	}

	assertKind(t, KindNotFound, f.rooms.Delete(ctx, alice.ID, room.ID))
}

func TestSendRoomMessage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := f.user(t, "alice"), f.user(t, "bob")
	room, err := f.rooms.Create(ctx, alice.ID, CreateRoomInput{Name: "general"})
	require.NoError(t, err)
	f.notify.reset()

	_, err = f.messages.SendRoomMessage(ctx, bob.ID, room.ID, "hello")
	assertKind(t, KindAuthorization, err)
	assert.Empty(t, f.notify.events(models.EventMessage))
	_, total, err := f.store.Messages.ListByRoom(ctx, room.ID, 0, 0)
	require.NoError(t, err)
	assert.Zero(t, total)

	_, err = f.messages.SendRoomMessage(ctx, alice.ID, models.NewID(), "hello")
	assertKind(t, KindNotFound, err)
	_, err = f.messages.SendRoomMessage(ctx, alice.ID, room.ID, "   ")
	assertKind(t, KindValidation, err)
	_, err = f.messages.SendRoomMessage(ctx, alice.ID, room.ID, "this message is longer than twenty runes")
	assertKind(t, KindValidation, err)

	view, err := f.messages.SendRoomMessage(ctx, alice.ID, room.ID, " héllo wörld ")
	require.NoError(t, err)
	assert.Equal(t, "héllo wörld", view.Content)
	assert.Equal(t, "alice", view.Sender.Username)

	sent := f.notify.events(models.EventMessage)
	require.Len(t, sent, 1)
	assert.Equal(t, models.RoomChannel(room.ID), sent[0].channel)

	stored, err := f.store.Rooms.FindByID(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, view.ID, stored.LastMessage)

	rooms, err := f.rooms.ListMine(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	require.NotNil(t, rooms[0].LastMessage)
	assert.Equal(t, view.ID, rooms[0].LastMessage.ID)
}

func TestPrivateMessageUnreadCounters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := f.user(t, "alice"), f.user(t, "bob")

	unread := func(owner, peer string) int {
		t.Helper()
		u, err := f.store.Users.FindByID(ctx, owner)
		require.NoError(t, err)
		pc := u.PrivateChatWith(peer)
		require.NotNil(t, pc)
		return pc.UnreadCount
	}

	_, err := f.messages.SendPrivateMessage(ctx, alice.ID, alice.ID, "me")
	assertKind(t, KindValidation, err)
	_, err = f.messages.SendPrivateMessage(ctx, alice.ID, models.NewID(), "ghost")
	assertKind(t, KindNotFound, err)
	_, err = f.messages.SendPrivateMessage(ctx, alice.ID, "bad-id", "ghost")
	assertKind(t, KindNotFound, err)

	first, err := f.messages.SendPrivateMessage(ctx, alice.ID, bob.ID, "one")
	require.NoError(t, err)
	assert.Equal(t, 0, unread(alice.ID, bob.ID))
	assert.Equal(t, 1, unread(bob.ID, alice.ID))

	_, err = f.messages.SendPrivateMessage(ctx, alice.ID, bob.ID, "two")
	require.NoError(t, err)
	assert.Equal(t, 2, unread(bob.ID, alice.ID))

	_, err = f.messages.SendPrivateMessage(ctx, bob.ID, alice.ID, "back")
	require.NoError(t, err)
	assert.Equal(t, 0, unread(bob.ID, alice.ID))
	assert.Equal(t, 1, unread(alice.ID, bob.ID))

	private := f.notify.events(models.EventPrivateMessage)
	require.Len(t, private, 6)
	assert.Equal(t, models.UserChannel(bob.ID), private[0].channel)
	assert.Equal(t, models.UserChannel(alice.ID), private[1].channel)

	counts := f.notify.events(models.EventUnreadCount)
	require.Len(t, counts, 3)
	assert.Equal(t, models.UserChannel(alice.ID), counts[0].channel)
	assert.Equal(t, models.UnreadCountEvent{UserID: bob.ID, Count: 0}, counts[0].data)

	conv, err := f.messages.OpenConversation(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	require.Len(t, conv.Messages, 3)
	assert.Equal(t, first.ID, conv.Messages[0].ID, "conversation is oldest first")
	assert.Equal(t, alice.ID, conv.Chat.With)
	assert.Equal(t, 0, conv.Chat.UnreadCount)
	assert.Equal(t, 0, unread(bob.ID, alice.ID))
}

func TestConcurrentPrivateMessagesKeepCount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := f.user(t, "alice"), f.user(t, "bob")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.messages.SendPrivateMessage(ctx, alice.ID, bob.ID, fmt.Sprintf("m%d", i))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	u, err := f.store.Users.FindByID(ctx, bob.ID)
	require.NoError(t, err)
	require.NotNil(t, u.PrivateChatWith(alice.ID))
	assert.Equal(t, 20, u.PrivateChatWith(alice.ID).UnreadCount)
}

func TestHistoryPaging(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := f.user(t, "alice"), f.user(t, "bob")
	room, err := f.rooms.Create(ctx, alice.ID, CreateRoomInput{Name: "busy"})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := f.messages.SendRoomMessage(ctx, alice.ID, room.ID, fmt.Sprintf("msg %d", i))
		require.NoError(t, err)
	}

	h, err := f.messages.RoomHistory(ctx, alice.ID, room.ID, 2, 2)
	require.NoError(t, err)
	require.Len(t, h.Messages, 2)
	assert.Equal(t, "msg 2", h.Messages[0].Content)
	assert.Equal(t, models.Page{Page: 2, Limit: 2, Total: 5, Pages: 3}, h.Pagination)

	h, err = f.messages.RoomHistory(ctx, alice.ID, room.ID, 0, 1000)
	require.NoError(t, err)
	assert.Equal(t, 1, h.Pagination.Page)
	assert.Equal(t, maxPageSize, h.Pagination.Limit)
	assert.Len(t, h.Messages, 5)

	_, err = f.messages.RoomHistory(ctx, bob.ID, room.ID, 1, 10)
	assertKind(t, KindAuthorization, err)
	_, err = f.messages.RoomHistory(ctx, bob.ID, models.NewID(), 1, 10)
	assertKind(t, KindNotFound, err)

	_, err = f.messages.SendPrivateMessage(ctx, alice.ID, bob.ID, "dm")
	require.NoError(t, err)
	ph, err := f.messages.PrivateHistory(ctx, bob.ID, alice.ID, 1, 10)
	require.NoError(t, err)
	require.Len(t, ph.Messages, 1)
	assert.Equal(t, int64(1), ph.Pagination.Total)
}

func TestMarkReadOnlyVisibleMessages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob, carol := f.user(t, "alice"), f.user(t, "bob"), f.user(t, "carol")
	room, err := f.rooms.Create(ctx, alice.ID, CreateRoomInput{Name: "general"})
	require.NoError(t, err)

	inRoom, err := f.messages.SendRoomMessage(ctx, alice.ID, room.ID, "room")
	require.NoError(t, err)
	dm, err := f.messages.SendPrivateMessage(ctx, alice.ID, bob.ID, "dm")
	require.NoError(t, err)

	_, err = f.messages.MarkRead(ctx, bob.ID, nil)
	assertKind(t, KindValidation, err)

	n, err := f.messages.MarkRead(ctx, bob.ID, []string{inRoom.ID, dm.ID, models.NewID()})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = f.messages.MarkRead(ctx, carol.ID, []string{inRoom.ID, dm.ID})
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = f.messages.MarkRead(ctx, bob.ID, []string{dm.ID})
	require.NoError(t, err)
	assert.Zero(t, n, "a receipt is recorded once")
}

func TestDeleteMessage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := f.user(t, "alice"), f.user(t, "bob")
	room, err := f.rooms.Create(ctx, alice.ID, CreateRoomInput{Name: "general"})
	require.NoError(t, err)
	_, err = f.rooms.Join(ctx, bob.ID, room.ID, "")
	require.NoError(t, err)

	first, err := f.messages.SendRoomMessage(ctx, alice.ID, room.ID, "first")
	require.NoError(t, err)
	second, err := f.messages.SendRoomMessage(ctx, alice.ID, room.ID, "second")
	require.NoError(t, err)

	assertKind(t, KindAuthorization, f.messages.Delete(ctx, bob.ID, second.ID))
	require.NoError(t, f.messages.Delete(ctx, alice.ID, second.ID))
	assertKind(t, KindNotFound, f.messages.Delete(ctx, alice.ID, second.ID))

	stored, err := f.store.Rooms.FindByID(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, stored.LastMessage)
}

func TestPresenceBroadcastsToContacts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob, carol := f.user(t, "alice"), f.user(t, "bob"), f.user(t, "carol")
	require.NoError(t, f.auth.AddContact(ctx, alice.ID, bob.ID))
	require.NoError(t, f.auth.AddContact(ctx, alice.ID, carol.ID))

	require.NoError(t, f.presence.SetStatus(ctx, alice.ID, models.StatusAway))
	got := f.notify.events(models.EventUserStatus)
	require.Len(t, got, 2)
	channels := []string{got[0].channel, got[1].channel}
	assert.ElementsMatch(t, []string{models.UserChannel(bob.ID), models.UserChannel(carol.ID)}, channels)
	assert.Equal(t, models.UserStatusEvent{UserID: alice.ID, Status: models.StatusAway}, got[0].data)

	u, err := f.store.Users.FindByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAway, u.Status)
	assert.False(t, u.LastSeen.IsZero())

	assertKind(t, KindValidation, f.presence.SetStatus(ctx, alice.ID, "busy"))
	assertKind(t, KindNotFound, f.presence.SetStatus(ctx, models.NewID(), models.StatusOnline))
}

func TestErrorKinds(t *testing.T) {
	cause := errors.New("disk on fire")
	err := internal("save message", cause)
	assert.Equal(t, KindServer, KindOf(err))
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrInternal)
	assert.Equal(t, "internal server error", PublicMessage(err))

	wrapped := fmt.Errorf("handler: %w", notFound("room not found"))
	assert.Equal(t, KindNotFound, KindOf(wrapped))
	assert.ErrorIs(t, wrapped, ErrNotFound)
	assert.NotErrorIs(t, wrapped, ErrConflict)
	assert.Equal(t, "room not found", PublicMessage(wrapped))

	assert.Equal(t, KindServer, KindOf(errors.New("plain")))
	assert.Equal(t, "not_found", KindNotFound.String())
}
