// Package camera runs the background frame-capture loop.
//
// The loop pulls raw frames from the simulated vision sensor through the
// gateway, encodes them as JPEG and publishes them into the feed's
// latest-frame slot. It runs at a fixed rate regardless of how many
// viewers are attached or how fast they consume.
package camera

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/jpeg"
	"log/slog"
	"time"

	"github.com/skysim/go-quadpilot/pkg/feed"
	"github.com/skysim/go-quadpilot/pkg/sim"
)

// FrameReader is the slice of the gateway the capture loop needs.
type FrameReader interface {
	ReadFrame(ref sim.ObjectRef) (sim.Image, error)
}

// Config holds capture parameters.
type Config struct {
	FPS         int // target capture rate
	JPEGQuality int
}

// Loop captures frames until its context is cancelled. Capture errors
// are never fatal: the loop publishes a "no signal" placeholder and
// keeps going.
type Loop struct {
	gateway FrameReader
	sensor  sim.ObjectRef
	feed    *feed.Feed
	cfg     Config
	logger  *slog.Logger

	placeholder []byte
}

// NewLoop creates a capture loop for the given vision sensor.
func NewLoop(gateway FrameReader, sensor sim.ObjectRef, f *feed.Feed, cfg Config, logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.FPS <= 0 {
		cfg.FPS = 30
	}
	if cfg.JPEGQuality <= 0 {
		cfg.JPEGQuality = 85
	}
	return &Loop{
		gateway:     gateway,
		sensor:      sensor,
		feed:        f,
		cfg:         cfg,
		logger:      logger,
		placeholder: encodePlaceholder(cfg.JPEGQuality),
	}
}

// Run executes the capture loop until ctx is cancelled. It always
// returns nil on cancellation; individual capture failures are reported
// through the feed's camera health flag.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(time.Second / time.Duration(l.cfg.FPS))
	defer ticker.Stop()

	l.logger.Info("capture loop started", "fps", l.cfg.FPS)

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("capture loop stopped")
			return nil
		case <-ticker.C:
			l.tick()
		}
	}
}

// tick captures, encodes and publishes one frame. The gateway lock is
// held only inside ReadFrame; encoding happens outside it.
func (l *Loop) tick() {
	raw, err := l.gateway.ReadFrame(l.sensor)
	if err != nil {
		l.feed.PublishFrame(l.placeholder, true)
		l.feed.UpdateStatus(func(s *feed.Status) {
			s.CameraOK = false
			s.CameraError = err.Error()
		})
		if !errors.Is(err, sim.ErrCapture) {
			l.logger.Warn("unexpected capture error", "err", err)
		}
		return
	}

	jpg, err := encodeJPEG(raw, l.cfg.JPEGQuality)
	if err != nil {
		l.feed.PublishFrame(l.placeholder, true)
		l.feed.UpdateStatus(func(s *feed.Status) {
			s.CameraOK = false
			s.CameraError = "encode: " + err.Error()
		})
		l.logger.Warn("frame encode failed", "err", err)
		return
	}

	l.feed.PublishFrame(jpg, false)
	l.feed.UpdateStatus(func(s *feed.Status) {
		s.CameraOK = true
		s.CameraError = ""
	})
}

// encodeJPEG converts a raw sensor image to JPEG. The sensor delivers
// RGB8 rows bottom-up, so rows are flipped while copying.
func encodeJPEG(raw sim.Image, quality int) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, raw.Width, raw.Height))

	for y := 0; y < raw.Height; y++ {
		srcRow := raw.Pixels[(raw.Height-1-y)*raw.Width*3:]
		dstRow := img.Pix[y*img.Stride:]
		for x := 0; x < raw.Width; x++ {
			dstRow[x*4+0] = srcRow[x*3+0]
			dstRow[x*4+1] = srcRow[x*3+1]
			dstRow[x*4+2] = srcRow[x*3+2]
			dstRow[x*4+3] = 0xff
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Placeholder frame dimensions match the scene's default sensor.
const (
	placeholderWidth  = 640
	placeholderHeight = 480
)

// encodePlaceholder renders the "no signal" frame once at startup: a
// dark field with a lighter center band where the viewer page overlays
// its own message.
func encodePlaceholder(quality int) []byte {
	img := image.NewGray(image.Rect(0, 0, placeholderWidth, placeholderHeight))
	for y := 0; y < placeholderHeight; y++ {
		shade := uint8(40)
		if y > placeholderHeight/2-30 && y < placeholderHeight/2+30 {
			shade = 70
		}
		row := img.Pix[y*img.Stride : y*img.Stride+placeholderWidth]
		for x := range row {
			row[x] = shade
		}
	}

	var buf bytes.Buffer
	jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality})
	return buf.Bytes()
}
