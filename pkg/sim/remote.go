package sim

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Remote API call timeouts.
const (
	handshakeTimeout = 10 * time.Second
	callTimeout      = 5 * time.Second
)

// RemoteSession talks to the simulator's remote API bridge over a
// websocket. Requests and responses are JSON with matching ids; each call
// is a synchronous round trip. Not safe for concurrent use on its own;
// the Gateway provides the exclusion.
type RemoteSession struct {
	ws *websocket.Conn

	mu     sync.Mutex
	nextID uint64
	closed bool
}

// DialRemote connects to the remote API bridge at addr
// (e.g. "ws://127.0.0.1:23050/api").
func DialRemote(ctx context.Context, addr string) (Session, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: handshakeTimeout,
	}

	conn, _, err := dialer.DialContext(ctx, addr, nil)
	if err != nil {
		return nil, fmt.Errorf("remote api dial %s: %w", addr, err)
	}

	return &RemoteSession{ws: conn}, nil
}

type rpcRequest struct {
	ID     uint64 `json:"id"`
	Method string `json:"method"`
	Params []any  `json:"params,omitempty"`
}

type rpcResponse struct {
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// call performs one request/response round trip. Responses arrive in
// order; anything with a stale id is discarded.
func (s *RemoteSession) call(method string, params []any, out any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	s.nextID++
	req := rpcRequest{ID: s.nextID, Method: method, Params: params}

	s.ws.SetWriteDeadline(time.Now().Add(callTimeout))
	if err := s.ws.WriteJSON(req); err != nil {
		return fmt.Errorf("%s: write: %w", method, err)
	}

	s.ws.SetReadDeadline(time.Now().Add(callTimeout))
	for {
		var resp rpcResponse
		if err := s.ws.ReadJSON(&resp); err != nil {
			return fmt.Errorf("%s: read: %w", method, err)
		}
		if resp.ID != req.ID {
			continue
		}
		if resp.Error != "" {
			return fmt.Errorf("%s: %s", method, resp.Error)
		}
		if out != nil {
			if err := json.Unmarshal(resp.Result, out); err != nil {
				return fmt.Errorf("%s: decode result: %w", method, err)
			}
		}
		return nil
	}
}

// GetObject resolves a scene path to an object handle.
func (s *RemoteSession) GetObject(path string) (ObjectRef, error) {
	var ref int64
	if err := s.call("sim.getObject", []any{path}, &ref); err != nil {
		return 0, err
	}
	return ObjectRef(ref), nil
}

// GetObjectPosition returns an object's absolute position.
func (s *RemoteSession) GetObjectPosition(ref ObjectRef) (Pose, error) {
	var xyz [3]float64
	// -1 selects the absolute reference frame.
	if err := s.call("sim.getObjectPosition", []any{int64(ref), -1}, &xyz); err != nil {
		return Pose{}, err
	}
	return Pose{X: xyz[0], Y: xyz[1], Z: xyz[2]}, nil
}

// SetObjectPosition moves an object to an absolute position.
func (s *RemoteSession) SetObjectPosition(ref ObjectRef, p Pose) error {
	return s.call("sim.setObjectPosition", []any{int64(ref), -1, []float64{p.X, p.Y, p.Z}}, nil)
}

// GetVisionSensorImage captures one frame from a vision sensor.
func (s *RemoteSession) GetVisionSensorImage(ref ObjectRef) (Image, error) {
	var result struct {
		Image      []byte `json:"image"` // base64 in transit
		Resolution [2]int `json:"resolution"`
	}
	if err := s.call("sim.getVisionSensorImg", []any{int64(ref)}, &result); err != nil {
		return Image{}, err
	}

	img := Image{
		Pixels: result.Image,
		Width:  result.Resolution[0],
		Height: result.Resolution[1],
	}
	if want := img.Width * img.Height * 3; len(img.Pixels) != want {
		return Image{}, fmt.Errorf("sim.getVisionSensorImg: got %d bytes, want %d for %dx%d",
			len(img.Pixels), want, img.Width, img.Height)
	}
	return img, nil
}

// Close closes the websocket connection.
func (s *RemoteSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	s.ws.SetWriteDeadline(time.Now().Add(time.Second))
	s.ws.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return s.ws.Close()
}
