package voice

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"
)

// Utterance segmentation parameters, tuned for command-length phrases:
// start capturing when chunk energy crosses the threshold, finalize after
// a pause or once the phrase limit is hit.
const (
	// DefaultEnergyThreshold is the RMS level (int16 scale) above which
	// a chunk counts as speech.
	DefaultEnergyThreshold = 150

	// DefaultPause is how much trailing silence ends an utterance.
	DefaultPause = 600 * time.Millisecond

	// DefaultPhraseLimit caps a single utterance's length.
	DefaultPhraseLimit = 4 * time.Second
)

// MicBuffer assembles PCM16 chunks pushed from a remote microphone (the
// viewer page streams them over a websocket) into discrete utterances.
// It implements Listener: Listen blocks until a complete utterance is
// ready or the timeout elapses.
type MicBuffer struct {
	energyThreshold float64
	pause           time.Duration
	phraseLimit     time.Duration
	logger          *slog.Logger

	mu          sync.Mutex
	capturing   bool
	current     []byte
	lastVoice   time.Time
	captureFrom time.Time

	utterances chan []byte
}

// MicConfig tunes utterance segmentation. Zero fields fall back to the
// defaults.
type MicConfig struct {
	EnergyThreshold float64
	Pause           time.Duration
	PhraseLimit     time.Duration
}

// NewMicBuffer creates a MicBuffer with the given segmentation
// parameters.
func NewMicBuffer(cfg MicConfig, logger *slog.Logger) *MicBuffer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.EnergyThreshold <= 0 {
		cfg.EnergyThreshold = DefaultEnergyThreshold
	}
	if cfg.Pause <= 0 {
		cfg.Pause = DefaultPause
	}
	if cfg.PhraseLimit <= 0 {
		cfg.PhraseLimit = DefaultPhraseLimit
	}
	return &MicBuffer{
		energyThreshold: cfg.EnergyThreshold,
		pause:           cfg.Pause,
		phraseLimit:     cfg.PhraseLimit,
		logger:          logger,
		utterances:      make(chan []byte, 4),
	}
}

// Push feeds one PCM16 chunk from the microphone stream. Chunks arriving
// while nobody is capturing and below the energy threshold are dropped.
func (m *MicBuffer) Push(chunk []byte) {
	if len(chunk) < BytesPerSample {
		return
	}

	level := rms(chunk)
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.capturing {
		if level < m.energyThreshold {
			return
		}
		m.capturing = true
		m.current = m.current[:0]
		m.captureFrom = now
		m.lastVoice = now
	}

	m.current = append(m.current, chunk...)
	if level >= m.energyThreshold {
		m.lastVoice = now
	}

	if now.Sub(m.lastVoice) >= m.pause || now.Sub(m.captureFrom) >= m.phraseLimit {
		m.finalizeLocked()
	}
}

// Flush finalizes any in-progress utterance, e.g. when the microphone
// stream disconnects mid-phrase.
func (m *MicBuffer) Flush() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.capturing {
		m.finalizeLocked()
	}
}

// finalizeLocked emits the current utterance. If the consumer is behind,
// the oldest pending utterance is dropped in its favor; stale commands
// are worse than dropped ones.
func (m *MicBuffer) finalizeLocked() {
	m.capturing = false
	if len(m.current) == 0 {
		return
	}
	utt := make([]byte, len(m.current))
	copy(utt, m.current)
	m.current = m.current[:0]

	for {
		select {
		case m.utterances <- utt:
			m.logger.Debug("utterance captured",
				"samples", len(utt)/BytesPerSample,
				"duration", time.Duration(len(utt)/BytesPerSample)*time.Second/SampleRate)
			return
		default:
			select {
			case <-m.utterances:
			default:
			}
		}
	}
}

// Listen implements Listener. It returns ErrNoSpeech when the timeout
// elapses before a complete utterance arrives.
func (m *MicBuffer) Listen(ctx context.Context, timeout time.Duration) ([]byte, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case utt := <-m.utterances:
		return utt, nil
	case <-timer.C:
		return nil, ErrNoSpeech
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// rms computes the root-mean-square level of a PCM16 little-endian chunk
// on the int16 scale.
func rms(pcm []byte) float64 {
	n := len(pcm) / BytesPerSample
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		s := int16(uint16(pcm[2*i]) | uint16(pcm[2*i+1])<<8)
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(n))
}
