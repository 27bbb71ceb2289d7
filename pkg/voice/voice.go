// Package voice runs the background voice-control loop: capture an
// utterance, transcribe it, interpret it and hand the resulting command
// to the flight controller.
//
// Audio capture and transcription are external collaborators behind the
// Listener and Transcriber interfaces. The production listener is a
// websocket microphone bridge (MicBuffer); the production transcriber is
// Google Cloud Speech-to-Text.
package voice

import (
	"context"
	"errors"
	"time"
)

// Audio format expected from listeners: PCM16 little-endian mono.
const (
	SampleRate     = 16000
	BytesPerSample = 2
)

// Errors reported by listeners and transcribers.
var (
	// ErrNoSpeech means the listen timeout elapsed without an
	// utterance. Routine, not a failure.
	ErrNoSpeech = errors.New("voice: no speech detected")

	// ErrTranscribe means the speech backend could not produce text.
	ErrTranscribe = errors.New("voice: transcription failed")
)

// Listener blocks until a complete utterance is available or the timeout
// elapses. The timeout must be enforced internally so shutdown can never
// stall on audio capture.
type Listener interface {
	Listen(ctx context.Context, timeout time.Duration) ([]byte, error)
}

// Transcriber converts a PCM16 utterance to text.
type Transcriber interface {
	Transcribe(ctx context.Context, pcm16 []byte) (string, error)
}
