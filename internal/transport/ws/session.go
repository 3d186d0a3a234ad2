package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"voxelcraft.ai/internal/protocol"
	"voxelcraft.ai/internal/sim/catalogs"
	"voxelcraft.ai/internal/sim/world/chunk"
	"voxelcraft.ai/internal/sim/world/logic/mathx"
	"voxelcraft.ai/internal/sim/world/raycast"
	"voxelcraft.ai/internal/sim/world/terrain/store"
)

// session owns one viewer's chunk manager. Everything except out is touched
// only from run.
type session struct {
	srv     *Server
	id      string
	mgr     *store.Manager
	out     chan []byte
	limiter *rate.Limiter
	start   time.Time

	viewer  mgl32.Vec3
	dir     mgl32.Vec3
	hasView bool

	// sent is the mesh version last pushed per chunk.
	sent  map[chunk.Coords]uint64
	edits int
}

func (s *Server) newSession() *session {
	sv := s.cfg.Tuning.Server
	sess := &session{
		srv:     s,
		id:      uuid.NewString(),
		out:     make(chan []byte, sv.SendQueueLen),
		limiter: rate.NewLimiter(rate.Limit(sv.EditsPerSec), sv.EditBurst),
		start:   time.Now(),
		sent:    map[chunk.Coords]uint64{},
	}
	cfg := s.cfg.Tuning.StoreConfig()
	cfg.Generator = s.gen
	cfg.Chunk = s.chunkCfg
	cfg.Logger = s.log
	cfg.OnEvent = sess.record
	sess.mgr = store.NewManager(cfg)
	return sess
}

func (ss *session) welcome() protocol.WelcomeMsg {
	t := ss.srv.cfg.Tuning
	w := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       ss.id,
		ChunkSize:       [3]int{chunk.SizeX, chunk.SizeY, chunk.SizeZ},
		AtlasSize:       t.Atlas.Size,
		VertexStride:    protocol.VertexStride,
		Seed:            t.Seed,
	}
	if ss.srv.cfg.Registry != nil {
		w.CatalogDigest = ss.srv.cfg.Registry.Digest
	}
	return w
}

func (ss *session) record(ev store.Event) {
	e := ev.Entry(ss.id)
	for _, sink := range ss.srv.cfg.Sinks {
		if err := sink.WriteEvent(e); err != nil {
			ss.srv.log.Printf("session %s: event sink: %v", ss.id, err)
		}
	}
}

func (ss *session) now() float64 {
	return time.Since(ss.start).Seconds()
}

func (ss *session) run(ctx context.Context, in <-chan []byte) error {
	hz := ss.srv.cfg.Tuning.Server.TickRateHz
	if hz <= 0 {
		hz = 20
	}
	ticker := time.NewTicker(time.Second / time.Duration(hz))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-in:
			if err := ss.handle(msg); err != nil {
				return err
			}
		case <-ticker.C:
			if err := ss.tick(); err != nil {
				return err
			}
		}
	}
}

func (ss *session) tick() error {
	if !ss.hasView {
		return nil
	}
	now := ss.now()
	ss.mgr.RequestAround(ss.viewer, now)
	if err := ss.mgr.Update(ss.viewer, now); err != nil {
		return fmt.Errorf("update: %w", err)
	}
	ss.push()
	return nil
}

// push sends UNLOAD for evicted chunks and MESH for every chunk whose mesh
// changed since it was last sent. A full send queue leaves the rest for the
// next tick.
func (ss *session) push() {
	for cc := range ss.sent {
		if _, ok := ss.mgr.FindChunk(cc); ok {
			continue
		}
		if !ss.send(protocol.UnloadMsg{Type: protocol.TypeUnload, CX: cc.X, CZ: cc.Z}) {
			return
		}
		delete(ss.sent, cc)
	}
	for _, cc := range ss.mgr.LoadedChunkKeys() {
		c, _ := ss.mgr.FindChunk(cc)
		v := c.MeshVersion()
		if v == 0 || ss.sent[cc] == v {
			continue
		}
		if !ss.send(protocol.NewMeshMsg(cc, c.Mesh())) {
			return
		}
		ss.sent[cc] = v
		ss.srv.meshesSent.Add(1)
	}
}

func (ss *session) send(v any) bool {
	b, err := json.Marshal(v)
	if err != nil {
		return false
	}
	select {
	case ss.out <- b:
		return true
	default:
		return false
	}
}

func (ss *session) sendError(code, msg string) {
	ss.send(protocol.ErrorMsg{Type: protocol.TypeError, Code: code, Message: msg})
}

func (ss *session) handle(msg []byte) error {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		ss.sendError(protocol.ErrProtoBadRequest, "invalid json")
		return nil
	}
	switch base.Type {
	case protocol.TypeView:
		var v protocol.ViewMsg
		if err := json.Unmarshal(msg, &v); err != nil || !finite(v.Pos) || !finite(v.Dir) {
			ss.sendError(protocol.ErrProtoBadRequest, "bad VIEW")
			return nil
		}
		ss.viewer = v.Position()
		ss.dir = v.Direction()
		ss.hasView = true
		return nil
	case protocol.TypeEdit:
		var e protocol.EditMsg
		if err := json.Unmarshal(msg, &e); err != nil {
			ss.sendError(protocol.ErrProtoBadRequest, "bad EDIT")
			return nil
		}
		return ss.edit(e)
	default:
		ss.sendError(protocol.ErrProtoBadRequest, "unknown type "+base.Type)
		return nil
	}
}

func (ss *session) edit(e protocol.EditMsg) error {
	res := protocol.EditResultMsg{Type: protocol.TypeEditResult}
	reject := func(code string) error {
		res.Code = code
		ss.srv.rejected.Add(1)
		ss.send(res)
		return nil
	}

	if !ss.limiter.Allow() {
		return reject(protocol.ErrRateLimit)
	}
	if !ss.hasView {
		return reject(protocol.ErrNoTarget)
	}

	var (
		target mathx.IVec3
		block  catalogs.BlockType
	)
	hit, ok := raycast.Pick(ss.mgr, ss.viewer, ss.dir, ss.srv.cfg.Tuning.Server.MaxReach)
	if !ok {
		return reject(protocol.ErrNoTarget)
	}
	switch e.Action {
	case protocol.EditBreak:
		target, block = hit.Coords, catalogs.Empty
	case protocol.EditPlace:
		if e.Block <= 0 || e.Block > math.MaxUint8 || !ss.srv.cfg.Registry.Known(catalogs.BlockType(e.Block)) {
			return reject(protocol.ErrBadRequest)
		}
		target, block = hit.Place(), catalogs.BlockType(e.Block)
		if ss.mgr.BlockTypeAt(target) != catalogs.Empty {
			return reject(protocol.ErrInvalidTarget)
		}
	default:
		return reject(protocol.ErrBadRequest)
	}
	res.Pos = [3]int{target[0], target[1], target[2]}
	res.Block = int(block)

	changed, err := ss.mgr.EditBlock(target, block, ss.now())
	if err != nil {
		return fmt.Errorf("edit %v: %w", target, err)
	}
	if !changed {
		return reject(protocol.ErrInvalidTarget)
	}
	ss.edits++
	ss.srv.edits.Add(1)
	res.OK = true
	ss.send(res)
	ss.push()
	return nil
}

func finite(v [3]float32) bool {
	for _, f := range v {
		if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
			return false
		}
	}
	return true
}
