package socket

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"openmm_server/config"
	"openmm_server/models"
	"openmm_server/services"
	"openmm_server/utils"
)

type sent struct {
	room  string
	event string
	args  []interface{}
}

type fakeBroadcaster struct {
	mu        sync.Mutex
	connected map[string]int
	sent      []sent
}

func newFakeBroadcaster(online ...string) *fakeBroadcaster {
	b := &fakeBroadcaster{connected: map[string]int{}}
	for _, p := range online {
		b.connected[ParticipantRoom("g", p)] = 1
	}
	return b
}

func (b *fakeBroadcaster) BroadcastToRoom(_, room, event string, args ...interface{}) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, sent{room: room, event: event, args: args})
	return true
}

func (b *fakeBroadcaster) RoomLen(_, room string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connected[room]
}

func (b *fakeBroadcaster) events(room string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []string
	for _, s := range b.sent {
		if s.room == room {
			out = append(out, s.event)
		}
	}
	return out
}

var testCommunities = config.Communities{
	"g": {QueueRoom: "queue", MatchCategory: "matches", Hosts: []string{"host"}, Moderators: []string{"mod"}},
}

func TestPlatformCapabilities(t *testing.T) {
	p := NewPlatform(newFakeBroadcaster(), testCommunities, zerolog.Nop())
	ctx := context.Background()
	assert.True(t, p.HasHostingCapability(ctx, "g", "host"))
	assert.True(t, p.HasHostingCapability(ctx, "g", "mod"))
	assert.False(t, p.HasHostingCapability(ctx, "g", "alice"))
	assert.True(t, p.HasModerationCapability(ctx, "g", "mod"))
	assert.False(t, p.HasModerationCapability(ctx, "g", "host"))
	assert.False(t, p.HasModerationCapability(ctx, "other", "mod"))
}

func TestPlatformNotify(t *testing.T) {
	b := newFakeBroadcaster("alice")
	p := NewPlatform(b, testCommunities, zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, p.NotifyParticipant(ctx, "g", "alice", models.Notification{Kind: models.NotifyMatchStarted}))
	assert.Equal(t, []string{EventNotification}, b.events(ParticipantRoom("g", "alice")))

	err := p.NotifyParticipant(ctx, "g", "bob", models.Notification{Kind: models.NotifyMatchStarted})
	require.ErrorIs(t, err, errNotConnected)
}

func TestPlatformRooms(t *testing.T) {
	b := newFakeBroadcaster("alice", "bob")
	p := NewPlatform(b, testCommunities, zerolog.Nop())
	ctx := context.Background()

	room, err := p.OpenSideRoom(ctx, "g", models.RoomSpec{MatchID: "abc123", Side: models.SideRed, Allowed: []string{"alice"}})
	require.NoError(t, err)
	assert.NotEqual(t, models.NoRoom, room)
	assert.Equal(t, 1, p.OpenRooms())
	assert.Equal(t, []string{EventRoomOpened}, b.events(CommunityRoom("g")))

	require.NoError(t, p.MoveParticipant(ctx, "g", "alice", room))
	require.ErrorIs(t, p.MoveParticipant(ctx, "g", "bob", room), errRoomDenied)

	require.NoError(t, p.SetRoomAccess(ctx, "g", room, "bob", true))
	require.NoError(t, p.MoveParticipant(ctx, "g", "bob", room))
	require.NoError(t, p.SetRoomAccess(ctx, "g", room, "alice", false))
	require.ErrorIs(t, p.MoveParticipant(ctx, "g", "alice", room), errRoomDenied)

	require.NoError(t, p.MoveParticipant(ctx, "g", "alice", models.WaitingRoom))
	require.ErrorIs(t, p.MoveParticipant(ctx, "g", "carol", models.NoRoom), errNotConnected)

	require.ErrorIs(t, p.CloseRoom(ctx, "other", room), errUnknownRoom)
	require.NoError(t, p.CloseRoom(ctx, "g", room))
	assert.Equal(t, 0, p.OpenRooms())
	require.ErrorIs(t, p.CloseRoom(ctx, "g", room), errUnknownRoom)
	require.ErrorIs(t, p.MoveParticipant(ctx, "g", "bob", room), errUnknownRoom)
	require.ErrorIs(t, p.SetRoomAccess(ctx, "g", room, "bob", true), errUnknownRoom)
}

func TestPlatformSuspensionEffects(t *testing.T) {
	p := NewPlatform(newFakeBroadcaster(), testCommunities, zerolog.Nop())
	ctx := context.Background()

	has, err := p.HasSuspension(ctx, "g", "alice")
	require.NoError(t, err)
	assert.False(t, has)

	require.NoError(t, p.ApplySuspension(ctx, "g", "alice"))
	has, _ = p.HasSuspension(ctx, "g", "alice")
	assert.True(t, has)

	require.NoError(t, p.LiftSuspension(ctx, "g", "alice"))
	has, _ = p.HasSuspension(ctx, "g", "alice")
	assert.False(t, has)
}

func TestVoiceEventsFeedPresence(t *testing.T) {
	b := newFakeBroadcaster("alice")
	p := NewPlatform(b, testCommunities, zerolog.Nop())
	keys := utils.NewKeyedMutex()
	penalties := services.NewPenaltyService(p, keys, zerolog.Nop(), services.WithAfterFunc(func(time.Duration, func()) {}))
	presence := services.NewPresenceService(penalties, p, testCommunities.QueueRoom, keys, zerolog.Nop())
	s := &Server{presence: presence, log: zerolog.Nop()}
	ctx := context.Background()

	sess := &session{}
	_, err := s.voice(ctx, sess, "queue")
	require.ErrorIs(t, err, models.ErrValidation)

	s.identify(ctx, sess, IdentifyMessage{Community: "g", Participant: "alice"})
	action, err := s.voice(ctx, sess, "queue")
	require.NoError(t, err)
	assert.Equal(t, services.TransitionJoined, action)
	assert.True(t, presence.Contains("g", "alice"))

	action, err = s.voice(ctx, sess, "queue")
	require.NoError(t, err)
	assert.Equal(t, services.TransitionIgnored, action)

	action, err = s.voice(ctx, sess, "")
	require.NoError(t, err)
	assert.Equal(t, services.TransitionLeft, action)
	assert.False(t, presence.Contains("g", "alice"))

	bot := &session{}
	s.identify(ctx, bot, IdentifyMessage{Community: "g", Participant: "bot", Bot: true})
	action, err = s.voice(ctx, bot, "queue")
	require.NoError(t, err)
	assert.Equal(t, services.TransitionIgnored, action)
	assert.False(t, presence.Contains("g", "bot"))
}

func TestReidentifyLeavesQueue(t *testing.T) {
	b := newFakeBroadcaster("alice", "bob")
	p := NewPlatform(b, testCommunities, zerolog.Nop())
	keys := utils.NewKeyedMutex()
	penalties := services.NewPenaltyService(p, keys, zerolog.Nop(), services.WithAfterFunc(func(time.Duration, func()) {}))
	presence := services.NewPresenceService(penalties, p, testCommunities.QueueRoom, keys, zerolog.Nop())
	s := &Server{presence: presence, log: zerolog.Nop()}
	ctx := context.Background()

	sess := &session{}
	community, participant := s.identify(ctx, sess, IdentifyMessage{Community: "g", Participant: "alice"})
	assert.Empty(t, community)
	assert.Empty(t, participant)
	_, err := s.voice(ctx, sess, "queue")
	require.NoError(t, err)
	require.True(t, presence.Contains("g", "alice"))

	community, participant = s.identify(ctx, sess, IdentifyMessage{Community: "g", Participant: "bob"})
	assert.Equal(t, "g", community)
	assert.Equal(t, "alice", participant)
	assert.False(t, presence.Contains("g", "alice"), "alice leaves the queue when her connection rebinds")

	_, err = s.voice(ctx, sess, "queue")
	require.NoError(t, err)
	_, err = s.voice(ctx, sess, "")
	require.NoError(t, err)
	assert.False(t, presence.Contains("g", "alice"))
	assert.False(t, presence.Contains("g", "bob"))
}
