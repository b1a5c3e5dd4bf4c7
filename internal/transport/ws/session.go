package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"patchwork.studio/internal/persistence/journal"
	"patchwork.studio/internal/persistence/savefile"
	"patchwork.studio/internal/protocol"
	"patchwork.studio/internal/quilt"
	"patchwork.studio/internal/report"
)

const defaultSaveName = "quilt"

// Session owns the quilt being designed over one connection. It is not safe
// for concurrent use; the connection handler feeds it one message at a time.
type Session struct {
	id  string
	srv *Server
	q   *quilt.Quilt
}

func (s *Server) NewSession() *Session {
	return &Session{id: uuid.NewString(), srv: s}
}

func (ss *Session) ID() string { return ss.id }

// Quilt returns the session's current quilt, or nil before NEW_QUILT/LOAD.
func (ss *Session) Quilt() *quilt.Quilt { return ss.q }

func (ss *Session) Welcome() protocol.WelcomeMsg {
	return protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       ss.id,
		Blocks:          ss.srv.catalog.Names(),
	}
}

// Handle applies one client message and returns the reply.
func (ss *Session) Handle(ctx context.Context, msg []byte) any {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		return badRequest("malformed message: %v", err)
	}
	switch base.Type {
	case protocol.TypeNewQuilt:
		var m protocol.NewQuiltMsg
		if err := json.Unmarshal(msg, &m); err != nil {
			return badRequest("%s: %v", base.Type, err)
		}
		return ss.newQuilt(m)
	case protocol.TypeAddBlock:
		var m protocol.AddBlockMsg
		if err := json.Unmarshal(msg, &m); err != nil {
			return badRequest("%s: %v", base.Type, err)
		}
		if m.Slot == nil || m.BlockType == "" {
			return badRequest("%s needs slot and block_type", base.Type)
		}
		return ss.addBlock(*m.Slot, m.BlockType)
	case protocol.TypeRemoveBlock:
		var m protocol.RemoveBlockMsg
		if err := json.Unmarshal(msg, &m); err != nil {
			return badRequest("%s: %v", base.Type, err)
		}
		if m.Slot == nil {
			return badRequest("%s needs slot", base.Type)
		}
		return ss.removeBlock(*m.Slot)
	case protocol.TypeSetColours:
		var m protocol.SetColoursMsg
		if err := json.Unmarshal(msg, &m); err != nil {
			return badRequest("%s: %v", base.Type, err)
		}
		return ss.setColours(m.FabricA, m.FabricB)
	case protocol.TypeCalculate:
		if ss.q == nil {
			return noQuilt()
		}
		s := report.Summarize(ss.q)
		return protocol.ReportMsg{Type: protocol.TypeReport, Summary: s, Text: s.Text()}
	case protocol.TypeListBlocks:
		return ss.srv.blocksMsg()
	case protocol.TypeSave:
		var m protocol.SaveMsg
		if err := json.Unmarshal(msg, &m); err != nil {
			return badRequest("%s: %v", base.Type, err)
		}
		return ss.save(ctx, m.Name)
	case protocol.TypeLoad:
		var m protocol.LoadMsg
		if err := json.Unmarshal(msg, &m); err != nil {
			return badRequest("%s: %v", base.Type, err)
		}
		return ss.load(m.Name)
	}
	return badRequest("unknown message type %q", base.Type)
}

func (ss *Session) newQuilt(m protocol.NewQuiltMsg) any {
	d := ss.srv.defaults
	across, down, size := m.BlocksAcross, m.BlocksDown, m.BlockSize
	if across == 0 {
		across = d.BlocksAcross
	}
	if down == 0 {
		down = d.BlocksDown
	}
	if size == 0 {
		size = d.BlockSize
	}
	q, err := quilt.New(ss.srv.catalog, across, down, size)
	ss.record(journal.Entry{Op: journal.OpNew, Across: across, Down: down, BlockSize: size}, err)
	if err != nil {
		return protocol.NewError(err)
	}
	q.SetFabricColours(d.Colours())
	ss.q = q
	return ss.quiltMsg()
}

func (ss *Session) addBlock(slot int, blockType string) any {
	if ss.q == nil {
		return noQuilt()
	}
	err := ss.q.AddBlock(blockType, slot)
	ss.record(journal.Entry{Op: journal.OpAdd, Slot: &slot, Block: blockType}, err)
	if err != nil {
		return protocol.NewError(err)
	}
	return ss.quiltMsg()
}

func (ss *Session) removeBlock(slot int) any {
	if ss.q == nil {
		return noQuilt()
	}
	err := ss.q.RemoveBlock(slot)
	ss.record(journal.Entry{Op: journal.OpRemove, Slot: &slot}, err)
	if err != nil {
		return protocol.NewError(err)
	}
	return ss.quiltMsg()
}

func (ss *Session) setColours(a, b *string) any {
	if ss.q == nil {
		return noQuilt()
	}
	ss.q.SetFabricColours(a, b)
	ss.record(journal.Entry{Op: journal.OpColours, Colours: []*string{a, b}}, nil)
	return ss.quiltMsg()
}

func (ss *Session) save(ctx context.Context, name string) any {
	if ss.q == nil {
		return noQuilt()
	}
	path, err := ss.srv.savePath(name)
	if err != nil {
		return badRequest("%v", err)
	}
	ss.srv.archivePrevious(path)
	err = savefile.Save(ss.q, path)
	ss.record(journal.Entry{Op: journal.OpSave, Path: path}, err)
	if err != nil {
		ss.srv.log.Printf("session %s: save %s: %v", ss.id, path, err)
		return protocol.NewError(err)
	}
	out := ss.quiltMsg()
	out.Path = path
	if ss.srv.index != nil {
		rec, err := ss.srv.index.RecordSave(ctx, path, ss.q)
		if err != nil {
			// The file is written; only the index row is missing.
			ss.srv.log.Printf("session %s: index save %s: %v", ss.id, path, err)
		} else {
			out.SaveID = rec.ID
		}
	}
	return out
}

func (ss *Session) load(name string) any {
	path, err := ss.srv.savePath(name)
	if err != nil {
		return badRequest("%v", err)
	}
	q, err := savefile.Load(path, ss.srv.catalog)
	ss.record(journal.Entry{Op: journal.OpLoad, Path: path}, err)
	if err != nil {
		return protocol.NewError(err)
	}
	ss.q = q
	out := ss.quiltMsg()
	out.Path = path
	return out
}

func (ss *Session) quiltMsg() protocol.QuiltMsg {
	return protocol.QuiltMsg{Type: protocol.TypeQuilt, Quilt: ss.q, Listing: ss.q.Listing()}
}

func (ss *Session) record(e journal.Entry, err error) {
	e.Session = ss.id
	if err != nil {
		e.Error = err.Error()
	}
	if werr := ss.srv.journal.Write(e); werr != nil {
		ss.srv.log.Printf("session %s: journal: %v", ss.id, werr)
	}
}

// savePath resolves a client-supplied save name inside the saves directory.
func (s *Server) savePath(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = defaultSaveName
	}
	if name != filepath.Base(name) || name == "." || name == ".." {
		return "", fmt.Errorf("save name %q must be a plain file name", name)
	}
	if !strings.HasSuffix(strings.ToLower(name), ".json") && !strings.HasSuffix(strings.ToLower(name), ".json"+savefile.CompressedExt) {
		name += ".json"
		if s.compress {
			name += savefile.CompressedExt
		}
	}
	return filepath.Join(s.savesDir, name), nil
}

func (s *Server) blocksMsg() protocol.BlocksMsg {
	m := protocol.BlocksMsg{Type: protocol.TypeBlocks, Blocks: []protocol.BlockInfo{}}
	for _, name := range s.catalog.Names() {
		m.Blocks = append(m.Blocks, protocol.BlockInfo{Name: name, Display: report.DisplayName(name)})
	}
	return m
}

func badRequest(format string, args ...any) protocol.ErrorMsg {
	return protocol.ErrorMsg{Type: protocol.TypeError, Code: protocol.ErrBadRequest, Message: fmt.Sprintf(format, args...)}
}

func noQuilt() protocol.ErrorMsg {
	return protocol.ErrorMsg{Type: protocol.TypeError, Code: protocol.ErrNoQuilt, Message: "create or load a quilt first"}
}
