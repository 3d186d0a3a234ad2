package ws

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"voxelcraft.ai/internal/protocol"
	"voxelcraft.ai/internal/sim/catalogs"
	"voxelcraft.ai/internal/sim/tuning"
	"voxelcraft.ai/internal/sim/world/chunk"
	"voxelcraft.ai/internal/sim/world/terrain/gen"
	"voxelcraft.ai/internal/sim/world/terrain/store"
)

// EventSink receives every pipeline event of every session.
type EventSink interface {
	WriteEvent(e store.EventEntry) error
}

// SessionIndex records session lifetimes.
type SessionIndex interface {
	OpenSession(id, remote string)
	CloseSession(id string, chunks, edits int)
}

type Config struct {
	Tuning   tuning.Tuning
	Registry *catalogs.Registry
	UVs      chunk.UVSource
	Sinks    []EventSink
	Sessions SessionIndex
}

type Server struct {
	cfg      Config
	log      *log.Logger
	gen      *gen.Generator
	chunkCfg *chunk.Config

	upgrader websocket.Upgrader

	// ctx is the parent of every session; Shutdown cancels it.
	ctx      context.Context
	stop     context.CancelFunc
	mu       sync.Mutex
	closing  bool
	sessions sync.WaitGroup

	active     atomic.Int64
	total      atomic.Uint64
	meshesSent atomic.Uint64
	edits      atomic.Uint64
	rejected   atomic.Uint64
}

func NewServer(cfg Config, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	ctx, stop := context.WithCancel(context.Background())
	return &Server{
		cfg:  cfg,
		log:  logger,
		ctx:  ctx,
		stop: stop,
		gen:  gen.New(cfg.Tuning.Seed, cfg.Tuning.GenParams()),
		chunkCfg: &chunk.Config{
			Registry:   cfg.Registry,
			UVs:        cfg.UVs,
			AOStrength: cfg.Tuning.Mesh.AOStrength,
		},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

type Stats struct {
	ActiveSessions int64  `json:"active_sessions"`
	TotalSessions  uint64 `json:"total_sessions"`
	MeshesSent     uint64 `json:"meshes_sent"`
	Edits          uint64 `json:"edits"`
	EditsRejected  uint64 `json:"edits_rejected"`
}

func (s *Server) Stats() Stats {
	return Stats{
		ActiveSessions: s.active.Load(),
		TotalSessions:  s.total.Load(),
		MeshesSent:     s.meshesSent.Load(),
		Edits:          s.edits.Load(),
		EditsRejected:  s.rejected.Load(),
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !s.acquire() {
			http.Error(rw, "shutting down", http.StatusServiceUnavailable)
			return
		}
		defer s.sessions.Done()

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		n := s.active.Add(1)
		defer s.active.Add(-1)
		if limit := s.cfg.Tuning.Server.MaxSessions; limit > 0 && int(n) > limit {
			_ = writeJSON(conn, protocol.ErrorMsg{Type: protocol.TypeError, Code: protocol.ErrServerBusy, Message: "too many sessions"})
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "busy"), time.Now().Add(time.Second))
			return
		}
		s.total.Add(1)

		sess := s.newSession()
		if err := writeJSON(conn, sess.welcome()); err != nil {
			return
		}
		if s.cfg.Sessions != nil {
			s.cfg.Sessions.OpenSession(sess.id, r.RemoteAddr)
		}
		s.log.Printf("session %s open remote=%s", sess.id, r.RemoteAddr)

		ctx, cancel := context.WithCancel(s.ctx)
		defer cancel()

		// Writer goroutine.
		writerDone := make(chan struct{})
		go func() {
			defer close(writerDone)
			for {
				select {
				case <-ctx.Done():
					return
				case b := <-sess.out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader goroutine.
		in := make(chan []byte, 16)
		go func() {
			defer cancel()
			for {
				_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
				_, msg, err := conn.ReadMessage()
				if err != nil {
					return
				}
				select {
				case in <- msg:
				case <-ctx.Done():
					return
				}
			}
		}()

		runErr := sess.run(ctx, in)

		// Cleanup.
		cancel()
		<-writerDone
		if runErr != nil {
			s.log.Printf("session %s: %v", sess.id, runErr)
			_ = writeJSON(conn, protocol.ErrorMsg{Type: protocol.TypeError, Code: protocol.ErrInternal, Message: runErr.Error()})
		}
		if s.cfg.Sessions != nil {
			s.cfg.Sessions.CloseSession(sess.id, sess.mgr.Len(), sess.edits)
		}
		s.log.Printf("session %s closed chunks=%d edits=%d", sess.id, sess.mgr.Len(), sess.edits)
		if s.ctx.Err() != nil {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutdown"), time.Now().Add(time.Second))
		}
	}
}

func (s *Server) acquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}
	s.sessions.Add(1)
	return true
}

// Shutdown refuses new sessions, ends the running ones and waits for their
// handlers to return. After it returns no session writes to the sinks.
// http.Server.Shutdown does not cover hijacked websocket connections.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closing = true
	s.mu.Unlock()
	s.stop()

	done := make(chan struct{})
	go func() {
		s.sessions.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	}
	return nil
}
