package flight

import (
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/skysim/go-quadpilot/pkg/command"
	"github.com/skysim/go-quadpilot/pkg/sim"
)

const floatTolerance = 1e-9

func floatEquals(a, b float64) bool {
	return math.Abs(a-b) < floatTolerance
}

// mockGateway records every SetTargetPose call.
type mockGateway struct {
	mu    sync.Mutex
	calls []sim.Pose
	fail  bool
}

func (m *mockGateway) SetTargetPose(ref sim.ObjectRef, p sim.Pose) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return sim.ErrActuation
	}
	m.calls = append(m.calls, p)
	return nil
}

func (m *mockGateway) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func (m *mockGateway) lastCall() sim.Pose {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[len(m.calls)-1]
}

var testConfig = Config{
	Step:            0.2,
	TakeoffAltitude: 1.0,
	LandingAltitude: 0.3,
}

func newTestController(gw *mockGateway, initial sim.Pose) *Controller {
	return NewController(gw, 1, initial, testConfig, nil)
}

func TestController_TakeOffFromGround(t *testing.T) {
	gw := &mockGateway{}
	c := newTestController(gw, sim.Pose{X: 0.5, Y: -0.5, Z: 0.3})

	if err := c.Apply(command.TakeOff); err != nil {
		t.Fatalf("TakeOff: %v", err)
	}

	st := c.State()
	if !st.Flying {
		t.Error("vehicle should be flying after take-off")
	}
	if !floatEquals(st.Position.Z, 1.0) {
		t.Errorf("altitude = %v, want 1.0", st.Position.Z)
	}
	if gw.callCount() != 1 {
		t.Errorf("SetTargetPose called %d times, want 1", gw.callCount())
	}
	got := gw.lastCall()
	if !floatEquals(got.X, 0.5) || !floatEquals(got.Y, -0.5) {
		t.Errorf("take-off moved laterally: %+v", got)
	}
}

func TestController_TakeOffKeepsHigherAltitude(t *testing.T) {
	gw := &mockGateway{}
	c := newTestController(gw, sim.Pose{Z: 1.5})

	if err := c.Apply(command.TakeOff); err != nil {
		t.Fatalf("TakeOff: %v", err)
	}
	if got := c.State().Position.Z; !floatEquals(got, 1.5) {
		t.Errorf("altitude = %v, want 1.5 (not lowered to takeoff altitude)", got)
	}
}

func TestController_TakeOffWhileFlying(t *testing.T) {
	gw := &mockGateway{}
	c := newTestController(gw, sim.Pose{Z: 0.3})
	if err := c.Apply(command.TakeOff); err != nil {
		t.Fatalf("first TakeOff: %v", err)
	}

	before := c.State()
	err := c.Apply(command.TakeOff)
	if !errors.Is(err, ErrPrecondition) {
		t.Fatalf("second TakeOff: got %v, want ErrPrecondition", err)
	}
	if c.State() != before {
		t.Error("state changed on rejected command")
	}
	if gw.callCount() != 1 {
		t.Errorf("SetTargetPose called %d times, want 1", gw.callCount())
	}
}

func TestController_DirectionalWhileGrounded(t *testing.T) {
	for _, tok := range []command.Token{
		command.Forward, command.Backward, command.Left,
		command.Right, command.Up, command.Down,
	} {
		gw := &mockGateway{}
		c := newTestController(gw, sim.Pose{Z: 0.3})

		err := c.Apply(tok)
		if !errors.Is(err, ErrPrecondition) {
			t.Errorf("%v while grounded: got %v, want ErrPrecondition", tok, err)
		}
		if gw.callCount() != 0 {
			t.Errorf("%v while grounded reached the gateway", tok)
		}
		if c.State().Flying {
			t.Errorf("%v while grounded changed flying state", tok)
		}
	}
}

func TestController_DirectionalSteps(t *testing.T) {
	cases := []struct {
		tok        command.Token
		dx, dy, dz float64
	}{
		{command.Forward, 0.2, 0, 0},
		{command.Backward, -0.2, 0, 0},
		{command.Left, 0, 0.2, 0},
		{command.Right, 0, -0.2, 0},
		{command.Up, 0, 0, 0.2},
		{command.Down, 0, 0, -0.2},
	}

	for _, tc := range cases {
		gw := &mockGateway{}
		c := newTestController(gw, sim.Pose{X: 1, Y: 1, Z: 1})
		if err := c.Apply(command.TakeOff); err != nil {
			t.Fatalf("TakeOff: %v", err)
		}
		base := c.State().Position

		if err := c.Apply(tc.tok); err != nil {
			t.Fatalf("%v: %v", tc.tok, err)
		}

		got := c.State().Position
		if !floatEquals(got.X-base.X, tc.dx) ||
			!floatEquals(got.Y-base.Y, tc.dy) ||
			!floatEquals(got.Z-base.Z, tc.dz) {
			t.Errorf("%v: delta = (%v,%v,%v), want (%v,%v,%v)", tc.tok,
				got.X-base.X, got.Y-base.Y, got.Z-base.Z, tc.dx, tc.dy, tc.dz)
		}
	}
}

func TestController_TruncatedLeftStepsLateralAxis(t *testing.T) {
	// Interpreted "lef" while flying: the lateral axis moves by exactly
	// one step.
	gw := &mockGateway{}
	c := newTestController(gw, sim.Pose{Z: 1})
	if err := c.Apply(command.TakeOff); err != nil {
		t.Fatalf("TakeOff: %v", err)
	}
	base := c.State().Position

	if err := c.Apply(command.Interpret("lef")); err != nil {
		t.Fatalf("Left: %v", err)
	}
	if got := c.State().Position.Y; !floatEquals(got, base.Y+testConfig.Step) {
		t.Errorf("lateral position = %v, want %v", got, base.Y+testConfig.Step)
	}
}

func TestController_DownClampsAtLandingAltitude(t *testing.T) {
	gw := &mockGateway{}
	c := newTestController(gw, sim.Pose{Z: 0.4})
	if err := c.Apply(command.TakeOff); err != nil {
		t.Fatalf("TakeOff: %v", err)
	}

	// From 1.0, four Downs would reach 0.2; it must stop at 0.3.
	for i := 0; i < 4; i++ {
		if err := c.Apply(command.Down); err != nil {
			t.Fatalf("Down #%d: %v", i+1, err)
		}
	}
	if got := c.State().Position.Z; !floatEquals(got, testConfig.LandingAltitude) {
		t.Errorf("altitude = %v, want clamp at %v", got, testConfig.LandingAltitude)
	}
}

func TestController_Land(t *testing.T) {
	gw := &mockGateway{}
	c := newTestController(gw, sim.Pose{Z: 0.3})
	if err := c.Apply(command.TakeOff); err != nil {
		t.Fatalf("TakeOff: %v", err)
	}

	if err := c.Apply(command.Land); err != nil {
		t.Fatalf("Land: %v", err)
	}
	st := c.State()
	if st.Flying {
		t.Error("still flying after Land")
	}
	if !floatEquals(st.Position.Z, 0.3) {
		t.Errorf("altitude = %v, want 0.3", st.Position.Z)
	}

	if err := c.Apply(command.Land); !errors.Is(err, ErrPrecondition) {
		t.Errorf("Land while grounded: got %v, want ErrPrecondition", err)
	}
}

func TestController_HoverNeedsFlight(t *testing.T) {
	gw := &mockGateway{}
	c := newTestController(gw, sim.Pose{Z: 0.3})

	if err := c.Apply(command.Hover); !errors.Is(err, ErrPrecondition) {
		t.Errorf("Hover while grounded: got %v, want ErrPrecondition", err)
	}

	if err := c.Apply(command.TakeOff); err != nil {
		t.Fatalf("TakeOff: %v", err)
	}
	calls := gw.callCount()
	if err := c.Apply(command.Hover); err != nil {
		t.Errorf("Hover while flying: %v", err)
	}
	if gw.callCount() != calls {
		t.Error("Hover actuated; holding position should not")
	}
}

func TestController_ActuationFailureLeavesStateUnchanged(t *testing.T) {
	gw := &mockGateway{fail: true}
	c := newTestController(gw, sim.Pose{Z: 0.3})

	err := c.Apply(command.TakeOff)
	if !errors.Is(err, sim.ErrActuation) {
		t.Fatalf("got %v, want ErrActuation", err)
	}
	st := c.State()
	if st.Flying {
		t.Error("flying set despite actuation failure")
	}
	if !floatEquals(st.Position.Z, 0.3) {
		t.Errorf("position changed despite actuation failure: %v", st.Position.Z)
	}
}

func TestController_UnknownDroppedSilently(t *testing.T) {
	gw := &mockGateway{}
	c := newTestController(gw, sim.Pose{Z: 0.3})

	for i := 0; i < 3; i++ {
		if err := c.Apply(command.Unknown); err != nil {
			t.Fatalf("Unknown: %v", err)
		}
	}
	if got := c.UnknownCount(); got != 3 {
		t.Errorf("UnknownCount = %d, want 3", got)
	}
	if gw.callCount() != 0 {
		t.Error("Unknown reached the gateway")
	}
}

func TestController_ConcurrentTakeOffSingleWinner(t *testing.T) {
	// Voice and remote-control paths racing on TakeOff: exactly one
	// wins, the other observes the precondition failure.
	gw := &mockGateway{}
	c := newTestController(gw, sim.Pose{Z: 0.3})

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = c.Apply(command.TakeOff)
		}(i)
	}
	wg.Wait()

	var ok, rejected int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrPrecondition):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 || rejected != 1 {
		t.Errorf("got %d accepted, %d rejected; want 1 and 1", ok, rejected)
	}
	if gw.callCount() != 1 {
		t.Errorf("SetTargetPose called %d times, want 1", gw.callCount())
	}
}
