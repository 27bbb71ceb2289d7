package voice

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/skysim/go-quadpilot/pkg/command"
	"github.com/skysim/go-quadpilot/pkg/feed"
	"github.com/skysim/go-quadpilot/pkg/flight"
)

// Loop is the background voice-control cycle. A failed iteration never
// terminates the loop; failures surface as the feed's voice health flag.
type Loop struct {
	listener    Listener
	transcriber Transcriber
	controller  *flight.Controller
	feed        *feed.Feed
	timeout     time.Duration
	logger      *slog.Logger
}

// NewLoop creates a voice loop. timeout bounds each listen cycle.
func NewLoop(l Listener, t Transcriber, c *flight.Controller, f *feed.Feed, timeout time.Duration, logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Loop{
		listener:    l,
		transcriber: t,
		controller:  c,
		feed:        f,
		timeout:     timeout,
		logger:      logger,
	}
}

// Run executes listen/transcribe/interpret/apply cycles until ctx is
// cancelled. Always returns nil on cancellation.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Info("voice loop started", "listen_timeout", l.timeout)

	for {
		if ctx.Err() != nil {
			l.logger.Info("voice loop stopped")
			return nil
		}
		l.cycle(ctx)
	}
}

// cycle runs one listen/transcribe/apply pass.
func (l *Loop) cycle(ctx context.Context) {
	audio, err := l.listener.Listen(ctx, l.timeout)
	if err != nil {
		// Timeouts are the idle state of this loop, not an error.
		if errors.Is(err, ErrNoSpeech) || ctx.Err() != nil {
			return
		}
		l.logger.Warn("listen failed", "err", err)
		l.feed.UpdateStatus(func(s *feed.Status) {
			s.VoiceOK = false
			s.VoiceError = "listen failed"
		})
		return
	}

	text, err := l.transcriber.Transcribe(ctx, audio)
	if err != nil {
		l.logger.Warn("transcription failed", "err", err)
		l.feed.UpdateStatus(func(s *feed.Status) {
			s.VoiceOK = false
			s.VoiceError = "processing failed"
		})
		return
	}

	l.logger.Info("heard utterance", "text", text)
	tok := command.Interpret(text)

	id := uuid.NewString()
	applyErr := l.controller.Apply(tok)

	l.feed.UpdateStatus(func(s *feed.Status) {
		s.VoiceOK = true
		s.VoiceError = ""
		if tok == command.Unknown {
			return
		}
		s.CommandsTotal++
		if applyErr == nil {
			s.CommandsSucceeded++
		}
		s.LastCommand = tok.String()
		s.LastCommandID = id
		s.LastCommandAt = time.Now()
		st := l.controller.State()
		s.Flying = st.Flying
		s.Position = st.Position
	})

	switch {
	case applyErr == nil:
	case errors.Is(applyErr, flight.ErrPrecondition):
		l.logger.Info("command rejected", "command", tok.String(), "err", applyErr)
	default:
		l.logger.Warn("command failed", "command", tok.String(), "err", applyErr)
	}
}
