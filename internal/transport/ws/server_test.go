package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gorilla/websocket"

	"voxelcraft.ai/internal/atlas"
	"voxelcraft.ai/internal/protocol"
	"voxelcraft.ai/internal/sim/catalogs"
	"voxelcraft.ai/internal/sim/tuning"
	"voxelcraft.ai/internal/sim/world/chunk"
	"voxelcraft.ai/internal/sim/world/terrain/store"
)

type recordingSink struct {
	mu      sync.Mutex
	entries []store.EventEntry
}

func (r *recordingSink) WriteEvent(e store.EventEntry) error {
	r.mu.Lock()
	r.entries = append(r.entries, e)
	r.mu.Unlock()
	return nil
}

func (r *recordingSink) kinds() map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[string]int{}
	for _, e := range r.entries {
		out[e.Kind]++
	}
	return out
}

func newTestServer(t *testing.T, mutate func(*tuning.Tuning)) (*Server, *recordingSink) {
	t.Helper()
	tu := tuning.Defaults()
	tu.Streaming.RenderDistance = 1
	tu.Streaming.ItemsPerUpdate = 4
	tu.Server.TickRateHz = 100
	tu.Server.MaxReach = 400
	if mutate != nil {
		mutate(&tu)
	}
	reg := catalogs.Defaults()
	a := atlas.New(tu.Atlas.Size, reg, atlas.PlaceholderLoader{Size: 16}, atlas.NewImageTexture(tu.Atlas.Size, 1), nil)
	sink := &recordingSink{}
	return NewServer(Config{Tuning: tu, Registry: reg, UVs: a, Sinks: []EventSink{sink}}, nil), sink
}

func serve(t *testing.T, s *Server) string {
	t.Helper()
	hs := httptest.NewServer(s.Handler())
	t.Cleanup(hs.Close)
	return "ws" + strings.TrimPrefix(hs.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func sendJSON(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	if err := conn.WriteJSON(v); err != nil {
		t.Fatalf("write: %v", err)
	}
}

// readUntil skips messages until one of type typ satisfies match.
func readUntil(t *testing.T, conn *websocket.Conn, typ string, match func([]byte) bool) []byte {
	t.Helper()
	deadline := time.Now().Add(20 * time.Second)
	for {
		_ = conn.SetReadDeadline(deadline)
		_, msg, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("waiting for %s: %v", typ, err)
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if base.Type == typ && (match == nil || match(msg)) {
			return msg
		}
	}
}

func meshAt(cx, cz int) func([]byte) bool {
	return func(b []byte) bool {
		var m protocol.MeshMsg
		return json.Unmarshal(b, &m) == nil && m.CX == cx && m.CZ == cz
	}
}

func viewDown(x, z float32) protocol.ViewMsg {
	return protocol.ViewMsg{Type: protocol.TypeView, Pos: [3]float32{x, 380, z}, Dir: [3]float32{0, -1, 0}}
}

func TestWelcomeThenMesh(t *testing.T) {
	s, sink := newTestServer(t, nil)
	conn := dial(t, serve(t, s))

	var w protocol.WelcomeMsg
	if err := json.Unmarshal(readUntil(t, conn, protocol.TypeWelcome, nil), &w); err != nil {
		t.Fatal(err)
	}
	if w.SessionID == "" || w.VertexStride != 9 || w.ChunkSize != [3]int{chunk.SizeX, chunk.SizeY, chunk.SizeZ} || w.AtlasSize != 128 {
		t.Fatalf("unexpected welcome %+v", w)
	}

	sendJSON(t, conn, viewDown(8, 8))
	var m protocol.MeshMsg
	if err := json.Unmarshal(readUntil(t, conn, protocol.TypeMesh, meshAt(0, 0)), &m); err != nil {
		t.Fatal(err)
	}
	if len(m.Vertices) == 0 || len(m.Vertices)%protocol.VertexStride != 0 {
		t.Fatalf("bad vertex buffer length %d", len(m.Vertices))
	}
	if len(m.Indices)%6 != 0 {
		t.Fatalf("bad index count %d", len(m.Indices))
	}
	nv := uint32(len(m.Vertices) / protocol.VertexStride)
	for _, i := range m.Indices {
		if i >= nv {
			t.Fatalf("index %d out of range %d", i, nv)
		}
	}
	if m.Version == 0 {
		t.Fatalf("mesh version should be set")
	}
	if sink.kinds()["generate"] == 0 {
		t.Fatalf("expected generate events, got %v", sink.kinds())
	}
	if s.Stats().MeshesSent == 0 || s.Stats().TotalSessions != 1 {
		t.Fatalf("unexpected stats %+v", s.Stats())
	}
}

func TestEditBreakThenRateLimited(t *testing.T) {
	s, sink := newTestServer(t, func(tu *tuning.Tuning) {
		tu.Server.EditsPerSec = 0.001
		tu.Server.EditBurst = 1
	})
	conn := dial(t, serve(t, s))
	readUntil(t, conn, protocol.TypeWelcome, nil)
	sendJSON(t, conn, viewDown(8.5, 8.5))

	var before protocol.MeshMsg
	_ = json.Unmarshal(readUntil(t, conn, protocol.TypeMesh, meshAt(0, 0)), &before)

	sendJSON(t, conn, protocol.EditMsg{Type: protocol.TypeEdit, Action: protocol.EditBreak})
	var res protocol.EditResultMsg
	_ = json.Unmarshal(readUntil(t, conn, protocol.TypeEditResult, nil), &res)
	if !res.OK || res.Pos[0] != 8 || res.Pos[2] != 8 || res.Block != 0 {
		t.Fatalf("unexpected edit result %+v", res)
	}
	readUntil(t, conn, protocol.TypeMesh, func(b []byte) bool {
		var m protocol.MeshMsg
		return json.Unmarshal(b, &m) == nil && m.CX == 0 && m.CZ == 0 && m.Version > before.Version
	})

	sendJSON(t, conn, protocol.EditMsg{Type: protocol.TypeEdit, Action: protocol.EditBreak})
	res = protocol.EditResultMsg{}
	_ = json.Unmarshal(readUntil(t, conn, protocol.TypeEditResult, nil), &res)
	if res.OK || res.Code != protocol.ErrRateLimit {
		t.Fatalf("expected rate limit, got %+v", res)
	}
	if sink.kinds()["edit"] != 1 {
		t.Fatalf("expected one edit event, got %v", sink.kinds())
	}
}

func TestPlaceRejectsUnknownBlock(t *testing.T) {
	s, _ := newTestServer(t, nil)
	conn := dial(t, serve(t, s))
	readUntil(t, conn, protocol.TypeWelcome, nil)
	sendJSON(t, conn, viewDown(8.5, 8.5))
	readUntil(t, conn, protocol.TypeMesh, meshAt(0, 0))

	sendJSON(t, conn, protocol.EditMsg{Type: protocol.TypeEdit, Action: protocol.EditPlace, Block: 200})
	var res protocol.EditResultMsg
	_ = json.Unmarshal(readUntil(t, conn, protocol.TypeEditResult, nil), &res)
	if res.OK || res.Code != protocol.ErrBadRequest {
		t.Fatalf("expected bad request, got %+v", res)
	}
	if s.Stats().EditsRejected != 1 {
		t.Fatalf("expected a rejected edit, got %+v", s.Stats())
	}
}

func TestEditWithoutViewHasNoTarget(t *testing.T) {
	s, _ := newTestServer(t, nil)
	conn := dial(t, serve(t, s))
	readUntil(t, conn, protocol.TypeWelcome, nil)
	sendJSON(t, conn, protocol.EditMsg{Type: protocol.TypeEdit, Action: protocol.EditBreak})
	var res protocol.EditResultMsg
	_ = json.Unmarshal(readUntil(t, conn, protocol.TypeEditResult, nil), &res)
	if res.OK || res.Code != protocol.ErrNoTarget {
		t.Fatalf("expected no target, got %+v", res)
	}
}

func TestUnknownMessageType(t *testing.T) {
	s, _ := newTestServer(t, nil)
	conn := dial(t, serve(t, s))
	readUntil(t, conn, protocol.TypeWelcome, nil)
	sendJSON(t, conn, map[string]string{"type": "HELLO"})
	var e protocol.ErrorMsg
	_ = json.Unmarshal(readUntil(t, conn, protocol.TypeError, nil), &e)
	if e.Code != protocol.ErrProtoBadRequest {
		t.Fatalf("unexpected error %+v", e)
	}
}

func TestServerBusy(t *testing.T) {
	s, _ := newTestServer(t, func(tu *tuning.Tuning) { tu.Server.MaxSessions = 1 })
	url := serve(t, s)
	first := dial(t, url)
	readUntil(t, first, protocol.TypeWelcome, nil)

	second := dial(t, url)
	var e protocol.ErrorMsg
	_ = json.Unmarshal(readUntil(t, second, protocol.TypeError, nil), &e)
	if e.Code != protocol.ErrServerBusy {
		t.Fatalf("expected busy, got %+v", e)
	}
}

func TestEvictedChunksAreUnloaded(t *testing.T) {
	s, sink := newTestServer(t, nil)
	sess := s.newSession()
	sess.viewer = mgl32.Vec3{8, 200, 8}
	sess.hasView = true

	for i := 0; i < 50 && len(sess.sent) < 5; i++ {
		if err := sess.tick(); err != nil {
			t.Fatalf("tick: %v", err)
		}
	}
	if len(sess.sent) != 5 {
		t.Fatalf("expected the 5 chunk disc to be sent, got %d", len(sess.sent))
	}
	for len(sess.out) > 0 {
		<-sess.out
	}

	sess.viewer = mgl32.Vec3{16 * 80, 200, 8}
	if err := sess.tick(); err != nil {
		t.Fatalf("tick: %v", err)
	}
	unloads := 0
	for len(sess.out) > 0 {
		base, _ := protocol.DecodeBase(<-sess.out)
		if base.Type == protocol.TypeUnload {
			unloads++
		}
	}
	if unloads != 5 || len(sess.sent) != 0 {
		t.Fatalf("expected 5 unloads, got %d (sent=%d)", unloads, len(sess.sent))
	}
	if sink.kinds()["evict"] != 5 {
		t.Fatalf("expected 5 evict events, got %v", sink.kinds())
	}
}

type recordingSessions struct {
	mu     sync.Mutex
	opened int
	closed int
}

func (r *recordingSessions) OpenSession(id, remote string) {
	r.mu.Lock()
	r.opened++
	r.mu.Unlock()
}

func (r *recordingSessions) CloseSession(id string, chunks, edits int) {
	r.mu.Lock()
	r.closed++
	r.mu.Unlock()
}

func TestShutdownDrainsSessions(t *testing.T) {
	s, _ := newTestServer(t, nil)
	sessions := &recordingSessions{}
	s.cfg.Sessions = sessions
	url := serve(t, s)

	conn := dial(t, url)
	readUntil(t, conn, protocol.TypeWelcome, nil)
	sendJSON(t, conn, viewDown(8, 8))
	readUntil(t, conn, protocol.TypeMesh, meshAt(0, 0))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	sessions.mu.Lock()
	opened, closed := sessions.opened, sessions.closed
	sessions.mu.Unlock()
	if opened != 1 || closed != 1 {
		t.Fatalf("expected the session closed before shutdown returned, opened=%d closed=%d", opened, closed)
	}
	if n := s.Stats().ActiveSessions; n != 0 {
		t.Fatalf("expected no active sessions, got %d", n)
	}

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatalf("expected new sessions to be refused")
	}
	if resp == nil || resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %v", resp)
	}
}
