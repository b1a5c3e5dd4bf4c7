// Package api is the REST surface: block catalog, fabric reports for a
// posted quilt, the save index, and the websocket endpoint.
package api

import (
	"bytes"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"patchwork.studio/internal/catalogs"
	"patchwork.studio/internal/persistence/indexdb"
	"patchwork.studio/internal/persistence/savefile"
	"patchwork.studio/internal/protocol"
	"patchwork.studio/internal/quilt"
	"patchwork.studio/internal/report"
	"patchwork.studio/internal/transport/ws"
)

const (
	maxQuiltBody = 4 << 20
	xlsxType     = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type Options struct {
	Catalog *catalogs.Catalog
	Index   *indexdb.SQLiteIndex
	WS      *ws.Server
	Logger  *log.Logger
}

type handlers struct {
	catalog *catalogs.Catalog
	index   *indexdb.SQLiteIndex
	log     *log.Logger
}

// NewRouter wires every endpoint. Index and WS may be nil; the matching
// endpoints then answer 503 or are not mounted.
func NewRouter(opts Options) *gin.Engine {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	h := &handlers{catalog: opts.Catalog, index: opts.Index, log: logger}
	if h.catalog == nil {
		h.catalog = catalogs.Load("", logger)
	}

	r := gin.New()
	r.Use(gin.LoggerWithWriter(logger.Writer()), gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true, "blocks": h.catalog.Len()})
	})

	v1 := r.Group("/v1")
	v1.GET("/blocks", h.listBlocks)
	v1.GET("/blocks/:name", h.getBlock)
	v1.POST("/report", h.report)
	v1.POST("/report.xlsx", h.reportXLSX)
	v1.POST("/report.html", h.reportHTML)
	v1.GET("/saves", h.listSaves)
	if opts.WS != nil {
		v1.GET("/ws", gin.WrapF(opts.WS.Handler()))
	}
	return r
}

type blockJSON struct {
	Name    string        `json:"name"`
	Display string        `json:"display"`
	File    string        `json:"file"`
	Digest  string        `json:"digest,omitempty"`
	Patches []quilt.Patch `json:"patches,omitempty"`
}

func (h *handlers) listBlocks(c *gin.Context) {
	out := []blockJSON{}
	for _, name := range h.catalog.Names() {
		out = append(out, blockJSON{Name: name, Display: report.DisplayName(name), File: catalogs.FileName(name)})
	}
	c.JSON(http.StatusOK, gin.H{"blocks": out})
}

func (h *handlers) getBlock(c *gin.Context) {
	name := c.Param("name")
	patches, err := h.catalog.Pattern(name)
	if err != nil {
		status := http.StatusNotFound
		if h.catalog.IsAvailable(name) {
			// Listed but unreadable.
			status = http.StatusUnprocessableEntity
		}
		abort(c, status, err)
		return
	}
	digest, _ := h.catalog.Digest(name)
	c.JSON(http.StatusOK, blockJSON{
		Name:    name,
		Display: report.DisplayName(name),
		File:    catalogs.FileName(name),
		Digest:  digest,
		Patches: patches,
	})
}

// readQuilt decodes a posted save document.
func (h *handlers) readQuilt(c *gin.Context) (*quilt.Quilt, bool) {
	raw, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxQuiltBody))
	if err != nil {
		abort(c, http.StatusRequestEntityTooLarge, err)
		return nil, false
	}
	q, err := savefile.Decode(raw, h.catalog)
	if err != nil {
		abort(c, http.StatusBadRequest, err)
		return nil, false
	}
	return q, true
}

func (h *handlers) report(c *gin.Context) {
	q, ok := h.readQuilt(c)
	if !ok {
		return
	}
	s := report.Summarize(q)
	c.JSON(http.StatusOK, gin.H{"summary": s, "text": s.Text()})
}

func (h *handlers) reportXLSX(c *gin.Context) {
	q, ok := h.readQuilt(c)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := report.WriteXLSX(&buf, q); err != nil {
		h.log.Printf("api: xlsx: %v", err)
		abort(c, http.StatusInternalServerError, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="quilt-fabric.xlsx"`)
	c.Data(http.StatusOK, xlsxType, buf.Bytes())
}

func (h *handlers) reportHTML(c *gin.Context) {
	q, ok := h.readQuilt(c)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := report.WriteChart(&buf, report.Summarize(q)); err != nil {
		h.log.Printf("api: chart: %v", err)
		abort(c, http.StatusInternalServerError, err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
}

func (h *handlers) listSaves(c *gin.Context) {
	if h.index == nil {
		abort(c, http.StatusServiceUnavailable, errors.New("save index disabled"))
		return
	}
	limit := 50
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"code": protocol.ErrBadRequest, "error": "limit must be a non-negative integer"})
			return
		}
		limit = n
	}
	saves, err := h.index.ListSaves(c.Request.Context(), limit)
	if err != nil {
		abort(c, http.StatusInternalServerError, err)
		return
	}
	if saves == nil {
		saves = []indexdb.SaveRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"saves": saves})
}

func abort(c *gin.Context, status int, err error) {
	c.AbortWithStatusJSON(status, gin.H{"code": protocol.CodeFor(err), "error": err.Error()})
}
