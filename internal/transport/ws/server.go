// Package ws serves interactive design sessions over a websocket. Each
// connection owns one quilt; messages are applied in arrival order.
package ws

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"patchwork.studio/internal/catalogs"
	"patchwork.studio/internal/persistence/archive"
	"patchwork.studio/internal/persistence/indexdb"
	"patchwork.studio/internal/persistence/journal"
	"patchwork.studio/internal/tuning"
)

type Options struct {
	Catalog *catalogs.Catalog
	// Index and Journal are optional.
	Index   *indexdb.SQLiteIndex
	Journal *journal.Writer

	SavesDir      string
	CompressSaves bool
	KeepVersions  int
	Defaults      tuning.QuiltDefaults
	WebSocket     tuning.WebSocket
	Logger        *log.Logger
}

type Server struct {
	catalog  *catalogs.Catalog
	index    *indexdb.SQLiteIndex
	journal  *journal.Writer
	savesDir string
	compress bool
	keep     int
	defaults tuning.QuiltDefaults
	limits   tuning.WebSocket
	log      *log.Logger

	upgrader websocket.Upgrader
}

func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	limits := opts.WebSocket
	d := tuning.Defaults().WebSocket
	if limits.MaxMessageBytes <= 0 {
		limits.MaxMessageBytes = d.MaxMessageBytes
	}
	if limits.WriteTimeoutMs <= 0 {
		limits.WriteTimeoutMs = d.WriteTimeoutMs
	}
	if limits.SendQueue <= 0 {
		limits.SendQueue = d.SendQueue
	}
	defaults := opts.Defaults
	if defaults.BlocksAcross <= 0 || defaults.BlocksDown <= 0 || defaults.BlockSize <= 0 {
		defaults = tuning.Defaults().DefaultQuilt
	}
	cat := opts.Catalog
	if cat == nil {
		cat = catalogs.Load("", logger)
	}
	return &Server{
		catalog:  cat,
		index:    opts.Index,
		journal:  opts.Journal,
		savesDir: opts.SavesDir,
		compress: opts.CompressSaves,
		keep:     opts.KeepVersions,
		defaults: defaults,
		limits:   limits,
		log:      logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.SetReadLimit(s.limits.MaxMessageBytes)

		ss := s.NewSession()
		s.log.Printf("session %s: connected from %s", ss.ID(), r.RemoteAddr)
		defer s.log.Printf("session %s: closed", ss.ID())

		if err := s.writeJSON(conn, ss.Welcome()); err != nil {
			return
		}

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		out := make(chan []byte, s.limits.SendQueue)
		done := make(chan struct{})

		// Writer goroutine.
		go func() {
			defer close(done)
			for {
				select {
				case <-ctx.Done():
					return
				case b := <-out:
					_ = conn.SetWriteDeadline(time.Now().Add(s.limits.WriteTimeout()))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop. Replies are encoded here so the writer never sees a
		// quilt the next message is changing.
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			b, err := json.Marshal(ss.Handle(ctx, msg))
			if err != nil {
				s.log.Printf("session %s: encode reply: %v", ss.ID(), err)
				continue
			}
			select {
			case out <- b:
			case <-ctx.Done():
			}
			if ctx.Err() != nil {
				break
			}
		}
		cancel()
		<-done
	}
}

// archivePrevious copies an existing save aside before it is overwritten.
func (s *Server) archivePrevious(path string) {
	if s.keep <= 0 {
		return
	}
	if dst, ok, err := archive.ArchiveSave(path, s.keep, time.Now()); err != nil {
		s.log.Printf("archive %s: %v", path, err)
	} else if ok {
		s.log.Printf("archived previous save to %s", dst)
	}
}

func (s *Server) writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(s.limits.WriteTimeout()))
	return conn.WriteMessage(websocket.TextMessage, b)
}
