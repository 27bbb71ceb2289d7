// Package feed publishes the latest frame and status snapshot to any
// number of viewers.
//
// Both values use whole-value replacement through atomic pointers:
// producers swap in a complete new value, readers load without locking
// and may miss intermediate values. There is no queueing; stale reads
// are acceptable by design.
package feed

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/skysim/go-quadpilot/pkg/sim"
)

// Frame is the single most-recently-captured encoded frame. Seq is
// strictly increasing across publishes, including placeholder frames.
type Frame struct {
	JPEG        []byte
	Seq         uint64
	Captured    time.Time
	Placeholder bool
}

// Status is a read-only projection of vehicle state plus per-subsystem
// health, recomputed on each publish. A viewer can tell "temporarily
// degraded" (camera/voice error set, connection up) from fatal.
type Status struct {
	Connected bool `json:"connected"`

	Flying bool `json:"flying"`

	// Position is the intended target pose; VehiclePosition is the
	// vehicle's actual pose as last read from the simulator.
	Position        sim.Pose `json:"position"`
	VehiclePosition sim.Pose `json:"vehicle_position"`

	LastCommand   string    `json:"last_command"`
	LastCommandID string    `json:"last_command_id,omitempty"`
	LastCommandAt time.Time `json:"last_command_at"`

	CameraOK    bool   `json:"camera_ok"`
	CameraError string `json:"camera_error,omitempty"`
	VoiceOK     bool   `json:"voice_ok"`
	VoiceError  string `json:"voice_error,omitempty"`

	FrameSeq           uint64    `json:"frame_seq"`
	CommandsTotal      uint64    `json:"commands_total"`
	CommandsSucceeded  uint64    `json:"commands_succeeded"`
	ConnectedViewers   int       `json:"connected_viewers"`
	StartedAt          time.Time `json:"started_at"`
}

// Feed holds the latest frame and status.
type Feed struct {
	frame  atomic.Pointer[Frame]
	status atomic.Pointer[Status]
	seq    atomic.Uint64

	// Writers to status are serialized; readers stay lock-free.
	statusMu sync.Mutex
}

// New creates a Feed with an empty frame slot and a zero status stamped
// with the start time.
func New() *Feed {
	f := &Feed{}
	f.status.Store(&Status{StartedAt: time.Now()})
	return f
}

// PublishFrame stores jpeg as the latest frame and assigns the next
// sequence number. It returns the published frame.
func (f *Feed) PublishFrame(jpeg []byte, placeholder bool) *Frame {
	fr := &Frame{
		JPEG:        jpeg,
		Seq:         f.seq.Add(1),
		Captured:    time.Now(),
		Placeholder: placeholder,
	}
	f.frame.Store(fr)
	return fr
}

// LatestFrame returns the most recent frame, or nil before the first
// publish. Never blocks.
func (f *Feed) LatestFrame() *Frame {
	return f.frame.Load()
}

// UpdateStatus applies mutate to a copy of the current status and
// publishes the copy. Readers never observe a half-written snapshot.
func (f *Feed) UpdateStatus(mutate func(*Status)) {
	f.statusMu.Lock()
	defer f.statusMu.Unlock()

	next := *f.status.Load()
	mutate(&next)
	next.FrameSeq = f.seq.Load()
	f.status.Store(&next)
}

// LatestStatus returns the most recent status snapshot. Never blocks.
func (f *Feed) LatestStatus() Status {
	return *f.status.Load()
}
