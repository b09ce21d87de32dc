package ws

import (
	"github.com/persistorai/fluxtrace/internal/flux"
	"github.com/persistorai/fluxtrace/internal/models"
)

// Message types sent to websocket trace clients.
const (
	TypeStart = "start"
	TypeHit   = "hit"
	TypeDone  = "done"
	TypeError = "error"
)

// Message is one JSON text frame of a websocket trace. Exactly one start
// frame comes first and exactly one done or error frame comes last.
type Message struct {
	Type      string           `json:"type"`
	Start     *models.Node     `json:"start,omitempty"`
	Hit       *models.TraceHit `json:"hit,omitempty"`
	Hits      int              `json:"hits,omitempty"`
	Truncated bool             `json:"truncated,omitempty"`
	Stats     *flux.Stats      `json:"stats,omitempty"`
	Error     string           `json:"error,omitempty"`
}
