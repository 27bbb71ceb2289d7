package web

import (
	"bufio"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/valyala/fasthttp"

	"github.com/skysim/go-quadpilot/pkg/command"
	"github.com/skysim/go-quadpilot/pkg/feed"
	"github.com/skysim/go-quadpilot/pkg/flight"
	"github.com/skysim/go-quadpilot/pkg/hub"
)

// CommandRequest is the body of POST /api/command.
type CommandRequest struct {
	Command string `json:"command"`
}

// CommandResult reports the outcome of a manual command.
type CommandResult struct {
	ID      string `json:"id"`
	Command string `json:"command"`
	Token   string `json:"token"`
	Status  string `json:"status"` // ok, rejected, error
	Message string `json:"message"`
}

// handleStatus returns the latest status snapshot.
func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.feed.LatestStatus())
}

// handleCommand executes a manual command from the viewer, bypassing the
// voice loop entirely.
func (s *Server) handleCommand(c *fiber.Ctx) error {
	var req CommandRequest
	if err := c.BodyParser(&req); err != nil || req.Command == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "missing command",
		})
	}

	result := s.execute(req.Command)

	code := fiber.StatusOK
	switch result.Status {
	case "rejected":
		code = fiber.StatusConflict
	case "error":
		code = fiber.StatusBadGateway
		if result.Token == command.Unknown.String() {
			code = fiber.StatusBadRequest
		}
	}
	return c.Status(code).JSON(result)
}

// execute interprets and applies one command text, updating the shared
// status counters. Used by both the REST handler and the control socket.
func (s *Server) execute(text string) CommandResult {
	tok := command.Interpret(text)
	result := CommandResult{
		ID:      uuid.NewString(),
		Command: text,
		Token:   tok.String(),
	}

	if tok == command.Unknown {
		result.Status = "error"
		result.Message = "unknown command; try: take off, land, forward, back, left, right, up, down, hover"
		s.controller.Apply(tok) // counted as dropped
		return result
	}

	err := s.controller.Apply(tok)
	switch {
	case err == nil:
		result.Status = "ok"
		result.Message = "executing " + tok.String()
	case errors.Is(err, flight.ErrPrecondition):
		result.Status = "rejected"
		result.Message = err.Error()
	default:
		result.Status = "error"
		result.Message = err.Error()
	}

	s.feed.UpdateStatus(func(st *feed.Status) {
		st.CommandsTotal++
		if err == nil {
			st.CommandsSucceeded++
		}
		st.LastCommand = tok.String()
		st.LastCommandID = result.ID
		st.LastCommandAt = time.Now()
		vs := s.controller.State()
		st.Flying = vs.Flying
		st.Position = vs.Position
	})

	return result
}

// handleFrame returns the single latest JPEG frame.
func (s *Server) handleFrame(c *fiber.Ctx) error {
	frame := s.feed.LatestFrame()
	if frame == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "no frame captured yet",
		})
	}
	c.Set(fiber.HeaderContentType, "image/jpeg")
	c.Set("X-Frame-Seq", fmt.Sprint(frame.Seq))
	return c.Send(frame.JPEG)
}

// handleVideo streams MJPEG: one JPEG part per new frame, at the
// viewer's own pace. The stream pulls from the latest-frame slot, so a
// slow viewer just sees fewer frames.
func (s *Server) handleVideo(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, "multipart/x-mixed-replace; boundary=frame")

	interval := time.Second / time.Duration(s.pushFPS)
	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		var lastSeq uint64
		for {
			select {
			case <-s.stop:
				return
			default:
			}
			frame := s.feed.LatestFrame()
			if frame != nil && frame.Seq != lastSeq {
				lastSeq = frame.Seq
				fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(frame.JPEG))
				w.Write(frame.JPEG)
				w.WriteString("\r\n")
				if err := w.Flush(); err != nil {
					return
				}
			}
			time.Sleep(interval)
		}
	}))
	return nil
}

// handleCameraWS attaches a viewer to the camera frame hub.
func (s *Server) handleCameraWS(c *websocket.Conn) {
	client := hub.NewClient(s.cameraHub, c)
	// Seed with the current frame so the viewer isn't blank until the
	// next capture.
	if frame := s.feed.LatestFrame(); frame != nil {
		c.WriteMessage(websocket.BinaryMessage, frame.JPEG)
	}
	client.Run()
}

// handleStatusWS attaches a viewer to the status hub.
func (s *Server) handleStatusWS(c *websocket.Conn) {
	client := hub.NewClient(s.statusHub, c)
	c.WriteJSON(s.feed.LatestStatus())
	client.Run()
}
