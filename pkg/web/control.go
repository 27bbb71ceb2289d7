package web

import (
	"encoding/json"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"

	"github.com/skysim/go-quadpilot/internal/log"
)

// handleControlWS serves the bidirectional control channel: the viewer
// sends {"command": "..."} messages and receives a CommandResult for
// each. Equivalent to POST /api/command for clients that keep a socket
// open.
func (s *Server) handleControlWS(c *websocket.Conn) {
	connID := uuid.NewString()[:8]
	log.Info("control channel connected", "conn", connID)
	defer log.Info("control channel closed", "conn", connID)

	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			return
		}

		var req CommandRequest
		if err := json.Unmarshal(data, &req); err != nil || req.Command == "" {
			c.WriteJSON(map[string]string{"error": "expected {\"command\": \"...\"}"})
			continue
		}

		result := s.execute(req.Command)
		log.Info("manual command", "conn", connID,
			"command", req.Command, "token", result.Token, "status", result.Status)
		if err := c.WriteJSON(result); err != nil {
			return
		}
	}
}

// handleMicWS receives the viewer's microphone stream: binary PCM16
// mono 16 kHz chunks. Chunks feed the voice loop's utterance buffer;
// if voice control is disabled the stream is drained and dropped.
func (s *Server) handleMicWS(c *websocket.Conn) {
	connID := uuid.NewString()[:8]
	log.Info("microphone stream connected", "conn", connID)

	defer func() {
		if s.mic != nil {
			// Close out any utterance cut off by the disconnect.
			s.mic.Flush()
		}
		log.Info("microphone stream closed", "conn", connID)
	}()

	for {
		mt, data, err := c.ReadMessage()
		if err != nil {
			return
		}
		if mt != websocket.BinaryMessage || s.mic == nil {
			continue
		}
		s.mic.Push(data)
	}
}
