package sim

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ConnectOptions configures the initial connection attempt.
type ConnectOptions struct {
	Addr    string
	Retries int           // total attempts before giving up
	Backoff time.Duration // wait between attempts
}

// Gateway is the sole owner of the simulator session. All operations are
// serialized through one mutex because the session cannot handle
// concurrent calls; the lock is held only for the span of a single
// session call, never across loop iterations or controller logic.
type Gateway struct {
	mu   sync.Mutex
	sess Session

	closeOnce sync.Once
	closeErr  error

	logger *slog.Logger
}

// Connect dials the simulator with bounded retries and backoff. Connect
// is the only operation that retries; everything after it fails fast and
// leaves retry policy to the caller.
func Connect(ctx context.Context, dial Dialer, opts ConnectOptions, logger *slog.Logger) (*Gateway, error) {
	if logger == nil {
		logger = slog.Default()
	}
	attempts := opts.Retries
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		sess, err := dial(ctx, opts.Addr)
		if err == nil {
			logger.Info("simulator connected", "addr", opts.Addr, "attempt", attempt)
			return &Gateway{sess: sess, logger: logger}, nil
		}
		lastErr = err
		logger.Warn("simulator connect attempt failed",
			"addr", opts.Addr, "attempt", attempt, "of", attempts, "err", err)

		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrConnect, ctx.Err())
		case <-time.After(opts.Backoff):
		}
	}

	return nil, fmt.Errorf("%w after %d attempts: %v", ErrConnect, attempts, lastErr)
}

// ResolvePath resolves a scene path to an object handle.
func (g *Gateway) ResolvePath(path string) (ObjectRef, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	ref, err := g.sess.GetObject(path)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrNotFound, path, err)
	}
	return ref, nil
}

// ResolveAny tries each path in order and returns the first that
// resolves. The scene names its objects inconsistently across versions
// ("Quadcopter" vs "/Quadcopter" vs "Drone"), so required objects are
// looked up by candidate list.
func (g *Gateway) ResolveAny(paths ...string) (ObjectRef, error) {
	for _, p := range paths {
		ref, err := g.ResolvePath(p)
		if err == nil {
			g.logger.Debug("resolved scene object", "path", p, "ref", int64(ref))
			return ref, nil
		}
	}
	return 0, fmt.Errorf("%w: none of %v", ErrNotFound, paths)
}

// ReadPose returns the object's current absolute position.
func (g *Gateway) ReadPose(ref ObjectRef) (Pose, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	p, err := g.sess.GetObjectPosition(ref)
	if err != nil {
		return Pose{}, fmt.Errorf("read pose: %w", err)
	}
	return p, nil
}

// SetTargetPose moves the target object to an absolute position. The
// vehicle's own controller inside the simulation follows the target.
func (g *Gateway) SetTargetPose(ref ObjectRef, p Pose) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.sess.SetObjectPosition(ref, p); err != nil {
		return fmt.Errorf("%w: %v", ErrActuation, err)
	}
	return nil
}

// ReadFrame captures one frame from a vision sensor.
func (g *Gateway) ReadFrame(ref ObjectRef) (Image, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	img, err := g.sess.GetVisionSensorImage(ref)
	if err != nil {
		return Image{}, fmt.Errorf("%w: %v", ErrCapture, err)
	}
	return img, nil
}

// Close releases the session. Safe to call more than once; the session
// is closed exactly once.
func (g *Gateway) Close() error {
	g.closeOnce.Do(func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		g.closeErr = g.sess.Close()
		g.logger.Info("simulator session closed")
	})
	return g.closeErr
}
