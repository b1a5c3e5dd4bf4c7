// Package protocol defines the JSON messages exchanged with a design
// session over the websocket.
package protocol

import "encoding/json"

const Version = "1.0"

// Client -> server.
const (
	TypeNewQuilt    = "NEW_QUILT"
	TypeAddBlock    = "ADD_BLOCK"
	TypeRemoveBlock = "REMOVE_BLOCK"
	TypeSetColours  = "SET_COLOURS"
	TypeCalculate   = "CALCULATE"
	TypeListBlocks  = "LIST_BLOCKS"
	TypeSave        = "SAVE"
	TypeLoad        = "LOAD"
)

// Server -> client.
const (
	TypeWelcome = "WELCOME"
	TypeQuilt   = "QUILT"
	TypeReport  = "REPORT"
	TypeBlocks  = "BLOCKS"
	TypeError   = "ERROR"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type string `json:"type"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}
