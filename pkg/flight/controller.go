// Package flight translates command tokens into vehicle motion.
//
// The controller is a small state machine over the vehicle's flying
// state: take-off is only valid on the ground, landing and directional
// motion only in the air. Every accepted transition results in exactly
// one SetTargetPose call through the gateway.
package flight

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/skysim/go-quadpilot/pkg/command"
	"github.com/skysim/go-quadpilot/pkg/sim"
)

// ErrPrecondition is returned when the vehicle's flight state does not
// permit a command: take-off while flying, or directional motion while
// grounded. It is informational; state is left unchanged.
var ErrPrecondition = errors.New("flight: precondition failed")

// TargetSetter is the slice of the gateway the controller needs.
type TargetSetter interface {
	SetTargetPose(ref sim.ObjectRef, p sim.Pose) error
}

// Config holds motion constants.
type Config struct {
	Step            float64 // distance of one directional command
	TakeoffAltitude float64 // minimum altitude after take-off
	LandingAltitude float64 // target altitude when landing; floor for Down
}

// VehicleState is the controller's view of the vehicle. Position tracks
// the intended target, not confirmed actuation; the gateway read path is
// the source of truth for actual position.
type VehicleState struct {
	Flying        bool          `json:"flying"`
	Position      sim.Pose      `json:"position"`
	LastCommand   command.Token `json:"-"`
	LastCommandAt time.Time     `json:"last_command_at"`
}

// Controller applies command tokens to the vehicle. All Apply calls are
// serialized by the controller's mutex, so simultaneous commands from the
// voice and remote-control paths resolve deterministically: the first
// one wins and the second observes the updated state.
type Controller struct {
	gateway TargetSetter
	target  sim.ObjectRef
	cfg     Config
	logger  *slog.Logger

	mu           sync.Mutex
	state        VehicleState
	unknownCount uint64
}

// NewController creates a controller driving the given target object.
// The initial position should come from a gateway ReadPose at startup.
func NewController(gateway TargetSetter, target sim.ObjectRef, initial sim.Pose, cfg Config, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		gateway: gateway,
		target:  target,
		cfg:     cfg,
		logger:  logger,
		state:   VehicleState{Position: initial},
	}
}

// State returns a copy of the current vehicle state.
func (c *Controller) State() VehicleState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// UnknownCount returns how many unrecognized tokens have been dropped.
func (c *Controller) UnknownCount() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.unknownCount
}

// Apply executes one command token. Unknown tokens are dropped silently
// (counted, not surfaced). Precondition violations return
// ErrPrecondition. Actuation failures are returned with state unchanged.
func (c *Controller) Apply(tok command.Token) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch tok {
	case command.Unknown:
		c.unknownCount++
		c.logger.Debug("dropping unrecognized command")
		return nil

	case command.TakeOff:
		if c.state.Flying {
			return fmt.Errorf("%w: already flying", ErrPrecondition)
		}
		next := c.state.Position
		if next.Z < c.cfg.TakeoffAltitude {
			next.Z = c.cfg.TakeoffAltitude
		}
		return c.actuate(tok, next, true)

	case command.Land:
		if !c.state.Flying {
			return fmt.Errorf("%w: already grounded", ErrPrecondition)
		}
		next := c.state.Position
		next.Z = c.cfg.LandingAltitude
		return c.actuate(tok, next, false)

	case command.Hover:
		if !c.state.Flying {
			return fmt.Errorf("%w: grounded", ErrPrecondition)
		}
		// Holding position needs no actuation; the vehicle already
		// tracks the current target.
		c.state.LastCommand = tok
		c.state.LastCommandAt = time.Now()
		return nil

	default:
		if !c.state.Flying {
			return fmt.Errorf("%w: %s while grounded", ErrPrecondition, tok)
		}
		next := c.step(tok)
		return c.actuate(tok, next, true)
	}
}

// step computes the target position for a directional command.
func (c *Controller) step(tok command.Token) sim.Pose {
	next := c.state.Position
	switch tok {
	case command.Forward:
		next.X += c.cfg.Step
	case command.Backward:
		next.X -= c.cfg.Step
	case command.Left:
		next.Y += c.cfg.Step
	case command.Right:
		next.Y -= c.cfg.Step
	case command.Up:
		next.Z += c.cfg.Step
	case command.Down:
		next.Z -= c.cfg.Step
		if next.Z < c.cfg.LandingAltitude {
			next.Z = c.cfg.LandingAltitude
		}
	}
	return next
}

// actuate sends the new target pose and, on success, commits the state
// transition. On actuation failure the state is left as it was.
func (c *Controller) actuate(tok command.Token, next sim.Pose, flying bool) error {
	if err := c.gateway.SetTargetPose(c.target, next); err != nil {
		c.logger.Warn("actuation failed", "command", tok.String(), "err", err)
		return err
	}

	c.state.Flying = flying
	c.state.Position = next
	c.state.LastCommand = tok
	c.state.LastCommandAt = time.Now()

	c.logger.Info("command applied", "command", tok.String(),
		"x", next.X, "y", next.Y, "z", next.Z, "flying", flying)
	return nil
}
