package socket

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"

	"openmm_server/config"
	"openmm_server/models"
	"openmm_server/services"
	"openmm_server/utils"
)

var _ services.Platform = &Platform{}

// Namespace every event is sent on.
const Namespace = "/"

// Events sent to clients
const (
	EventNotification = "notification"
	EventRoomOpened   = "room_opened"
	EventRoomClosed   = "room_closed"
	EventRoomAccess   = "room_access"
	EventMove         = "move"
	EventSuspension   = "suspension"
)

var (
	errNotConnected = eris.New("participant is not connected")
	errUnknownRoom  = eris.New("unknown room")
	errRoomDenied   = eris.New("participant may not join the room")
)

// Broadcaster is the part of the socket.io server the platform talks to.
type Broadcaster interface {
	BroadcastToRoom(namespace, room, event string, args ...interface{}) bool
	RoomLen(namespace, room string) int
}

// ParticipantRoom is the socket room a participant's connections join.
func ParticipantRoom(community, participant string) string {
	return "participant:" + utils.ParticipantKey(community, participant)
}

// CommunityRoom is joined by every connection of a community.
func CommunityRoom(community string) string {
	return "community:" + community
}

type sideRoom struct {
	community string
	matchID   string
	side      models.Side
	allowed   []string
}

// Platform is the engine's platform backed by connected socket clients.
// Rooms and suspension roles live in memory; capabilities come from the
// community settings.
type Platform struct {
	io          Broadcaster
	communities config.Communities
	log         zerolog.Logger

	mu        sync.Mutex
	rooms     map[models.RoomHandle]*sideRoom
	suspended map[string]bool
}

func NewPlatform(io Broadcaster, communities config.Communities, log zerolog.Logger) *Platform {
	return &Platform{
		io:          io,
		communities: communities,
		log:         log,
		rooms:       make(map[models.RoomHandle]*sideRoom),
		suspended:   make(map[string]bool),
	}
}

func (p *Platform) HasHostingCapability(_ context.Context, community, participant string) bool {
	return p.communities[community].CanHost(participant)
}

func (p *Platform) HasModerationCapability(_ context.Context, community, participant string) bool {
	return p.communities[community].CanModerate(participant)
}

// send emits to every connection of the participant.
func (p *Platform) send(community, participant, event string, payload any) error {
	room := ParticipantRoom(community, participant)
	if p.io.RoomLen(Namespace, room) == 0 {
		return errNotConnected
	}
	p.io.BroadcastToRoom(Namespace, room, event, payload)
	return nil
}

func (p *Platform) NotifyParticipant(_ context.Context, community, participant string, n models.Notification) error {
	return p.send(community, participant, EventNotification, n)
}

type roomPayload struct {
	Room    models.RoomHandle `json:"room"`
	MatchID string            `json:"matchId,omitempty"`
	Side    models.Side       `json:"side,omitempty"`
	Name    string            `json:"name,omitempty"`
	Allowed *bool             `json:"allowed,omitempty"`
}

func (p *Platform) OpenSideRoom(_ context.Context, community string, spec models.RoomSpec) (models.RoomHandle, error) {
	handle := models.RoomHandle("room-" + uuid.NewString())
	p.mu.Lock()
	p.rooms[handle] = &sideRoom{
		community: community,
		matchID:   spec.MatchID,
		side:      spec.Side,
		allowed:   slices.Clone(spec.Allowed),
	}
	p.mu.Unlock()

	p.log.Debug().Str("community", community).Str("match", spec.MatchID).Str("room", string(handle)).Msg("side room opened")
	name := fmt.Sprintf("%s-%s", spec.MatchID, spec.Side)
	if category := p.communities[community].MatchCategory; category != "" {
		name = category + "/" + name
	}
	p.io.BroadcastToRoom(Namespace, CommunityRoom(community), EventRoomOpened,
		roomPayload{Room: handle, MatchID: spec.MatchID, Side: spec.Side, Name: name})
	return handle, nil
}

func (p *Platform) CloseRoom(_ context.Context, community string, room models.RoomHandle) error {
	p.mu.Lock()
	r, ok := p.rooms[room]
	if ok && r.community == community {
		delete(p.rooms, room)
	}
	p.mu.Unlock()
	if !ok || r.community != community {
		return eris.Wrapf(errUnknownRoom, "close %s", room)
	}
	p.io.BroadcastToRoom(Namespace, CommunityRoom(community), EventRoomClosed,
		roomPayload{Room: room, MatchID: r.matchID, Side: r.side})
	p.log.Debug().Str("community", community).Str("match", r.matchID).Str("room", string(room)).Msg("side room closed")
	return nil
}

func (p *Platform) SetRoomAccess(_ context.Context, community string, room models.RoomHandle, participant string, allowed bool) error {
	p.mu.Lock()
	r, ok := p.rooms[room]
	if ok && r.community == community {
		r.allowed = slices.DeleteFunc(r.allowed, func(a string) bool { return a == participant })
		if allowed {
			r.allowed = append(r.allowed, participant)
		}
	}
	p.mu.Unlock()
	if !ok || r.community != community {
		return eris.Wrapf(errUnknownRoom, "set access on %s", room)
	}
	// an offline participant still gets the access change
	_ = p.send(community, participant, EventRoomAccess, roomPayload{Room: room, Allowed: &allowed})
	return nil
}

// MoveParticipant asks the participant's client to switch rooms. NoRoom
// disconnects it from voice.
func (p *Platform) MoveParticipant(_ context.Context, community, participant string, destination models.RoomHandle) error {
	if destination != models.NoRoom && destination != models.WaitingRoom {
		p.mu.Lock()
		r, ok := p.rooms[destination]
		permitted := ok && r.community == community && slices.Contains(r.allowed, participant)
		p.mu.Unlock()
		if !ok {
			return eris.Wrapf(errUnknownRoom, "move to %s", destination)
		}
		if !permitted {
			return eris.Wrapf(errRoomDenied, "move to %s", destination)
		}
	}
	return p.send(community, participant, EventMove, roomPayload{Room: destination})
}

type suspensionPayload struct {
	Suspended bool `json:"suspended"`
}

func (p *Platform) ApplySuspension(_ context.Context, community, participant string) error {
	p.mu.Lock()
	p.suspended[utils.ParticipantKey(community, participant)] = true
	p.mu.Unlock()
	_ = p.send(community, participant, EventSuspension, suspensionPayload{Suspended: true})
	return nil
}

func (p *Platform) LiftSuspension(_ context.Context, community, participant string) error {
	p.mu.Lock()
	delete(p.suspended, utils.ParticipantKey(community, participant))
	p.mu.Unlock()
	_ = p.send(community, participant, EventSuspension, suspensionPayload{Suspended: false})
	return nil
}

func (p *Platform) HasSuspension(_ context.Context, community, participant string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.suspended[utils.ParticipantKey(community, participant)], nil
}

// OpenRooms is the number of side rooms currently open.
func (p *Platform) OpenRooms() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.rooms)
}
