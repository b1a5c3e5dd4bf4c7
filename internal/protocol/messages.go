package protocol

import (
	"patchwork.studio/internal/quilt"
	"patchwork.studio/internal/report"
)

// NEW_QUILT (client -> server). Zero fields fall back to the server defaults.
type NewQuiltMsg struct {
	Type         string  `json:"type"`
	BlocksAcross int     `json:"blocks_across,omitempty"`
	BlocksDown   int     `json:"blocks_down,omitempty"`
	BlockSize    float64 `json:"block_size,omitempty"`
}

// ADD_BLOCK (client -> server). Slots are 0-based.
type AddBlockMsg struct {
	Type      string `json:"type"`
	Slot      *int   `json:"slot"`
	BlockType string `json:"block_type"`
}

// REMOVE_BLOCK (client -> server)
type RemoveBlockMsg struct {
	Type string `json:"type"`
	Slot *int   `json:"slot"`
}

// SET_COLOURS (client -> server). A null colour clears it.
type SetColoursMsg struct {
	Type    string  `json:"type"`
	FabricA *string `json:"fabric_a"`
	FabricB *string `json:"fabric_b"`
}

// SAVE and LOAD (client -> server). Name is a file name inside the server's
// saves directory; empty means the default save.
type SaveMsg struct {
	Type string `json:"type"`
	Name string `json:"name,omitempty"`
}

type LoadMsg struct {
	Type string `json:"type"`
	Name string `json:"name,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version"`
	SessionID       string   `json:"session_id"`
	Blocks          []string `json:"blocks"`
}

// QUILT (server -> client) carries the whole quilt after every change.
type QuiltMsg struct {
	Type    string       `json:"type"`
	Quilt   *quilt.Quilt `json:"quilt"`
	Listing string       `json:"listing"`
	SaveID  string       `json:"save_id,omitempty"`
	Path    string       `json:"path,omitempty"`
}

// REPORT (server -> client)
type ReportMsg struct {
	Type    string         `json:"type"`
	Summary report.Summary `json:"summary"`
	Text    string         `json:"text"`
}

type BlockInfo struct {
	Name    string `json:"name"`
	Display string `json:"display"`
}

// BLOCKS (server -> client)
type BlocksMsg struct {
	Type   string      `json:"type"`
	Blocks []BlockInfo `json:"blocks"`
}

// ERROR (server -> client)
type ErrorMsg struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}
