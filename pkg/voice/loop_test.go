package voice

import (
	"context"
	"testing"
	"time"

	"github.com/skysim/go-quadpilot/pkg/feed"
	"github.com/skysim/go-quadpilot/pkg/flight"
	"github.com/skysim/go-quadpilot/pkg/sim"
)

// scriptedListener returns canned audio payloads, then blocks until the
// context is cancelled.
type scriptedListener struct {
	payloads chan []byte
}

func newScriptedListener(payloads ...[]byte) *scriptedListener {
	ch := make(chan []byte, len(payloads))
	for _, p := range payloads {
		ch <- p
	}
	return &scriptedListener{payloads: ch}
}

func (l *scriptedListener) Listen(ctx context.Context, timeout time.Duration) ([]byte, error) {
	select {
	case p := <-l.payloads:
		return p, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// mapTranscriber maps audio payloads to transcripts by their first byte.
type mapTranscriber struct {
	texts map[byte]string
	fail  bool
}

func (t *mapTranscriber) Transcribe(ctx context.Context, pcm []byte) (string, error) {
	if t.fail {
		return "", ErrTranscribe
	}
	return t.texts[pcm[0]], nil
}

type nopGateway struct{}

func (nopGateway) SetTargetPose(ref sim.ObjectRef, p sim.Pose) error { return nil }

func testController() *flight.Controller {
	cfg := flight.Config{Step: 0.2, TakeoffAltitude: 1.0, LandingAltitude: 0.3}
	return flight.NewController(nopGateway{}, 1, sim.Pose{Z: 0.3}, cfg, nil)
}

func waitForStatus(t *testing.T, f *feed.Feed, pred func(feed.Status) bool) feed.Status {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if st := f.LatestStatus(); pred(st) {
			return st
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("status condition not reached within deadline")
	return feed.Status{}
}

func TestLoop_AppliesHeardCommand(t *testing.T) {
	listener := newScriptedListener([]byte{1})
	transcriber := &mapTranscriber{texts: map[byte]string{1: "take off"}}
	ctrl := testController()
	f := feed.New()

	loop := NewLoop(listener, transcriber, ctrl, f, 50*time.Millisecond, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		loop.Run(ctx)
		close(done)
	}()

	st := waitForStatus(t, f, func(s feed.Status) bool { return s.CommandsTotal == 1 })
	cancel()
	<-done

	if !ctrl.State().Flying {
		t.Error("vehicle not flying after a heard take-off")
	}
	if st.LastCommand != "take_off" {
		t.Errorf("LastCommand = %q, want take_off", st.LastCommand)
	}
	if st.LastCommandID == "" {
		t.Error("LastCommandID not assigned")
	}
	if st.CommandsSucceeded != 1 {
		t.Errorf("CommandsSucceeded = %d, want 1", st.CommandsSucceeded)
	}
	if !st.Flying {
		t.Error("status Flying not updated")
	}
}

func TestLoop_TranscriptionFailureSurvives(t *testing.T) {
	// First utterance fails to transcribe; the loop reports degraded
	// voice health and keeps listening.
	listener := newScriptedListener([]byte{1})
	transcriber := &mapTranscriber{fail: true}
	f := feed.New()

	loop := NewLoop(listener, transcriber, testController(), f, 50*time.Millisecond, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		loop.Run(ctx)
		close(done)
	}()

	st := waitForStatus(t, f, func(s feed.Status) bool { return !s.VoiceOK && s.VoiceError != "" })
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("loop did not stop after cancellation")
	}

	if st.VoiceError != "processing failed" {
		t.Errorf("VoiceError = %q, want %q", st.VoiceError, "processing failed")
	}
	if st.CommandsTotal != 0 {
		t.Errorf("CommandsTotal = %d after failed transcription, want 0", st.CommandsTotal)
	}
}

func TestLoop_UnknownUtteranceNotCounted(t *testing.T) {
	listener := newScriptedListener([]byte{1}, []byte{2})
	transcriber := &mapTranscriber{texts: map[byte]string{1: "banana", 2: "land"}}
	ctrl := testController()
	f := feed.New()

	loop := NewLoop(listener, transcriber, ctrl, f, 50*time.Millisecond, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		loop.Run(ctx)
		close(done)
	}()

	// "land" while grounded is rejected but still counted; "banana" is
	// not a command at all and must not be.
	st := waitForStatus(t, f, func(s feed.Status) bool { return s.CommandsTotal == 1 })
	cancel()
	<-done

	if st.CommandsSucceeded != 0 {
		t.Errorf("CommandsSucceeded = %d, want 0 (land was rejected)", st.CommandsSucceeded)
	}
	if st.LastCommand != "land" {
		t.Errorf("LastCommand = %q, want land", st.LastCommand)
	}
	if got := ctrl.UnknownCount(); got != 1 {
		t.Errorf("UnknownCount = %d, want 1", got)
	}
}

func TestLoop_StopsDuringListen(t *testing.T) {
	// Listener blocks forever; cancellation must still stop the loop.
	listener := newScriptedListener()
	loop := NewLoop(listener, &mapTranscriber{}, testController(), feed.New(), time.Minute, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v on cancellation", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}
