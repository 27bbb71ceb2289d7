// Package sim provides access to the simulated vehicle's environment.
//
// The underlying remote API session is not safe for concurrent use, so
// every operation is funneled through the Gateway, which owns the session
// and serializes calls. Consumers never touch the session directly.
package sim

import "context"

// Pose is a position in scene coordinates.
type Pose struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// ObjectRef is a handle to an object in the simulated scene.
type ObjectRef int64

// Image is a raw RGB8 frame from a vision sensor. Rows are bottom-up,
// as delivered by the simulator.
type Image struct {
	Pixels []byte
	Width  int
	Height int
}

// Session is a live connection to the simulator. Implementations are not
// required to be safe for concurrent use; the Gateway serializes access.
type Session interface {
	// GetObject resolves a scene path ("/Quadcopter") to an object handle.
	GetObject(path string) (ObjectRef, error)

	// GetObjectPosition returns an object's absolute position.
	GetObjectPosition(ref ObjectRef) (Pose, error)

	// SetObjectPosition moves an object to an absolute position.
	SetObjectPosition(ref ObjectRef, p Pose) error

	// GetVisionSensorImage captures a frame from a vision sensor.
	GetVisionSensorImage(ref ObjectRef) (Image, error)

	// Close releases the connection.
	Close() error
}

// Dialer establishes a Session. The production dialer speaks the
// websocket remote API; tests substitute their own.
type Dialer func(ctx context.Context, addr string) (Session, error)
