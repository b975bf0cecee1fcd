package socket

import (
	"context"
	"sync"

	socketio "github.com/googollee/go-socket.io"
	"github.com/rs/zerolog"

	"openmm_server/models"
	"openmm_server/services"
)

// IdentifyMessage binds a connection to a participant of a community.
type IdentifyMessage struct {
	Community   string `json:"communityId"`
	Participant string `json:"participantId"`
	Bot         bool   `json:"bot"`
}

// VoiceMessage reports that the participant's voice room changed.
type VoiceMessage struct {
	Room string `json:"room"`
}

// session is the per-connection state kept in the connection context.
type session struct {
	mu          sync.Mutex
	community   string
	participant string
	bot         bool
	room        string
}

// Server feeds socket events into the presence tracker.
type Server struct {
	io       *socketio.Server
	presence *services.PresenceService
	log      zerolog.Logger
}

// NewSocketServer registers the event handlers on io.
func NewSocketServer(io *socketio.Server, presence *services.PresenceService, log zerolog.Logger) *Server {
	s := &Server{io: io, presence: presence, log: log}

	io.OnConnect(Namespace, func(c socketio.Conn) error {
		c.SetContext(&session{})
		s.log.Debug().Str("conn", c.ID()).Msg("socket connected")
		return nil
	})

	io.OnEvent(Namespace, "identify", func(c socketio.Conn, msg IdentifyMessage) string {
		sess, ok := c.Context().(*session)
		if !ok || msg.Community == "" || msg.Participant == "" {
			return "invalid"
		}
		prevCommunity, prevParticipant := s.identify(context.Background(), sess, msg)
		if prevParticipant != "" {
			c.Leave(ParticipantRoom(prevCommunity, prevParticipant))
			c.Leave(CommunityRoom(prevCommunity))
		}
		c.Join(ParticipantRoom(msg.Community, msg.Participant))
		c.Join(CommunityRoom(msg.Community))
		s.log.Debug().Str("conn", c.ID()).Str("community", msg.Community).
			Str("participant", msg.Participant).Msg("socket identified")
		return "ok"
	})

	io.OnEvent(Namespace, "voice", func(c socketio.Conn, msg VoiceMessage) string {
		sess, ok := c.Context().(*session)
		if !ok {
			return "invalid"
		}
		action, err := s.voice(context.Background(), sess, msg.Room)
		if err != nil {
			s.log.Warn().Err(err).Str("conn", c.ID()).Msg("voice event rejected")
			return "error"
		}
		return action
	})

	io.OnError(Namespace, func(c socketio.Conn, err error) {
		s.log.Warn().Err(err).Msg("socket error")
	})

	io.OnDisconnect(Namespace, func(c socketio.Conn, reason string) {
		if sess, ok := c.Context().(*session); ok {
			if _, err := s.voice(context.Background(), sess, ""); err != nil {
				s.log.Debug().Err(err).Str("conn", c.ID()).Msg("disconnect transition skipped")
			}
		}
		s.log.Debug().Str("conn", c.ID()).Str("reason", reason).Msg("socket disconnected")
	})

	return s
}

// identify binds the connection to msg's participant and returns the previous
// binding. A previous participant still in a room leaves it first.
func (s *Server) identify(ctx context.Context, sess *session, msg IdentifyMessage) (community, participant string) {
	sess.mu.Lock()
	community, participant = sess.community, sess.participant
	inRoom := participant != "" && sess.room != ""
	sess.mu.Unlock()
	if inRoom {
		if _, err := s.voice(ctx, sess, ""); err != nil {
			s.log.Warn().Err(err).Str("community", community).Str("participant", participant).
				Msg("leave transition on re-identify failed")
		}
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.community = msg.Community
	sess.participant = msg.Participant
	sess.bot = msg.Bot
	sess.room = ""
	return community, participant
}

// voice turns a room change of an identified connection into a transition.
func (s *Server) voice(ctx context.Context, sess *session, room string) (string, error) {
	sess.mu.Lock()
	if sess.participant == "" {
		sess.mu.Unlock()
		return "", models.Reasonf(models.ErrValidation, "connection has not identified")
	}
	ev := models.VoiceTransition{
		Community:    sess.community,
		Participant:  sess.participant,
		PreviousRoom: sess.room,
		NewRoom:      room,
		Bot:          sess.bot,
	}
	sess.room = room
	sess.mu.Unlock()

	out, err := s.presence.HandleTransition(ctx, ev)
	if err != nil {
		return "", err
	}
	for _, adv := range out.Advisories {
		s.log.Warn().Err(adv).Str("community", ev.Community).Str("participant", ev.Participant).Msg("voice transition advisory")
	}
	return out.Action, nil
}

// Serve runs the socket.io event loop until Close.
func (s *Server) Serve() error { return s.io.Serve() }

func (s *Server) Close() error { return s.io.Close() }
