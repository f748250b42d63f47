package chat

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"school-messenger/internal/messaging"
	"school-messenger/internal/middleware"
	"school-messenger/internal/models"
	"school-messenger/internal/registry"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 5 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 10 * time.Second
	maxFrameSize   = 4096
	sendBufferSize = 64
	opTimeout      = 5 * time.Second
)

var errSessionGone = errors.New("session closed or buffer full")

// Session is one websocket connection bound to an authenticated
// participant. It registers itself for push delivery and feeds inbound
// send/mark_read frames into the messaging core.
type Session struct {
	id  string
	ref models.Ref

	conn    *websocket.Conn
	send    chan models.Frame
	done    chan struct{}
	closing sync.Once

	router  *messaging.Router
	tracker *messaging.Tracker
	reg     *registry.Registry
	limiter *middleware.RateLimiter

	lastWarning time.Time
}

func NewSession(conn *websocket.Conn, ref models.Ref, router *messaging.Router, tracker *messaging.Tracker, reg *registry.Registry) *Session {
	return &Session{
		id:      uuid.NewString(),
		ref:     ref,
		conn:    conn,
		send:    make(chan models.Frame, sendBufferSize),
		done:    make(chan struct{}),
		router:  router,
		tracker: tracker,
		reg:     reg,
		limiter: middleware.NewRatelimiter(5, 500*time.Millisecond),
	}
}

func (s *Session) ID() string      { return s.id }
func (s *Session) Ref() models.Ref { return s.ref }

func (s *Session) Alive() bool {
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

// Deliver enqueues a frame without blocking. A full buffer means a slow
// consumer; the push is dropped here and the recipient reconciles through
// the unread query, so one stuck socket cannot stall the router.
func (s *Session) Deliver(frame models.Frame) error {
	select {
	case <-s.done:
		return errSessionGone
	default:
	}

	select {
	case s.send <- frame:
		return nil
	default:
		return errSessionGone
	}
}

// Start registers the session and runs both pumps.
func (s *Session) Start() {
	s.reg.Register(s)
	go s.writePump()
	go s.readPump()
}

func (s *Session) close() {
	s.closing.Do(func() {
		close(s.done)
		s.reg.Unregister(s)
		s.conn.Close()
		log.Printf("[SESSION] Closed %s for %s", s.id, s.ref.Key())
	})
}

func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.close()
	}()

	for {
		select {
		case <-s.done:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			s.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case frame := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteJSON(frame); err != nil {
				return
			}

			// Drain whatever queued up behind this frame.
			n := len(s.send)
			for i := 0; i < n; i++ {
				if err := s.conn.WriteJSON(<-s.send); err != nil {
					return
				}
			}

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Session) readPump() {
	defer s.close()

	s.conn.SetReadLimit(maxFrameSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var frame models.Frame
		if err := s.conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[SESSION] Unexpected close on %s: %v", s.id, err)
			}
			return
		}

		if !s.limiter.Allow() {
			if time.Since(s.lastWarning) > 3*time.Second {
				s.reply(models.Frame{Type: models.FrameError, Error: "rate limit exceeded"})
				s.lastWarning = time.Now()
			}
			continue
		}

		switch frame.Type {
		case models.FrameSend:
			s.handleSend(frame)
		case models.FrameMarkRead:
			s.handleMarkRead(frame)
		default:
			s.reply(models.Frame{Type: models.FrameError, Error: "unknown frame type"})
		}
	}
}

func (s *Session) handleSend(frame models.Frame) {
	if frame.Receiver == nil {
		s.reply(models.Frame{Type: models.FrameError, Error: "send frame missing receiver"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	// The sender is always the session's own identity; the frame cannot
	// speak for anyone else.
	msg, err := s.router.Send(ctx, s.ref, messaging.SendIntent{
		Sender:   s.ref,
		Receiver: *frame.Receiver,
		Subject:  frame.Subject,
		Content:  frame.Content,
		Origin:   s.id,
	})
	if err != nil {
		s.reply(models.Frame{Type: models.FrameError, Error: err.Error()})
		return
	}

	s.reply(models.Frame{Type: models.FrameAck, Message: msg})
}

func (s *Session) handleMarkRead(frame models.Frame) {
	if frame.Counterpart == nil {
		s.reply(models.Frame{Type: models.FrameError, Error: "mark_read frame missing counterpart"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if err := s.tracker.MarkConversationRead(ctx, s.ref, *frame.Counterpart); err != nil {
		s.reply(models.Frame{Type: models.FrameError, Error: "could not mark conversation read"})
	}
}

func (s *Session) reply(frame models.Frame) {
	if err := s.Deliver(frame); err != nil {
		log.Printf("[SESSION] Dropped reply to %s: %v", s.id, err)
	}
}
