// Command quadpilot runs the voice-controlled quadcopter system against
// a simulated scene: camera capture, voice control and the viewer web
// server, all sharing one simulator session through the gateway.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/skysim/go-quadpilot/internal/config"
	"github.com/skysim/go-quadpilot/internal/log"
	"github.com/skysim/go-quadpilot/pkg/camera"
	"github.com/skysim/go-quadpilot/pkg/feed"
	"github.com/skysim/go-quadpilot/pkg/flight"
	"github.com/skysim/go-quadpilot/pkg/sim"
	"github.com/skysim/go-quadpilot/pkg/voice"
	"github.com/skysim/go-quadpilot/pkg/web"
)

// Candidate scene paths for the required objects. Scene files name them
// inconsistently across simulator versions.
var (
	vehiclePaths = []string{"/Quadcopter", "Quadcopter", "/Drone", "Drone", "/Quadricopter"}
	targetPaths  = []string{"/target", "target", "/Target", "Target", "/goal", "goal"}
	sensorPaths  = []string{"/VisionSensor", "VisionSensor", "/Camera", "Camera", "/vision_sensor"}
)

// shutdownGrace bounds how long shutdown waits for the loops to exit.
const shutdownGrace = 5 * time.Second

func main() {
	simAddr := flag.String("sim", config.SimAddr(), "simulator remote API address")
	webPort := flag.String("port", config.Env("WEB_PORT", config.DefaultWebPort), "viewer web server port")
	fps := flag.Int("fps", config.EnvInt("CAPTURE_FPS", config.DefaultCaptureFPS), "camera capture rate")
	logLevel := flag.String("log-level", config.LogLevel(), "log level (debug, info, warn, error)")
	flag.Parse()

	log.Init(*logLevel)
	logger := log.L()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("shutdown signal received")
		cancel()
	}()

	// Connect to the simulator. This is the only retried operation;
	// failure here is fatal.
	gateway, err := sim.Connect(ctx, sim.DialRemote, sim.ConnectOptions{
		Addr:    *simAddr,
		Retries: config.EnvInt("SIM_CONNECT_RETRIES", config.DefaultConnectRetries),
		Backoff: config.EnvDuration("SIM_CONNECT_BACKOFF", config.DefaultConnectBackoff),
	}, logger)
	if err != nil {
		logger.Error("simulator connection failed", "err", err)
		os.Exit(1)
	}
	defer gateway.Close()

	// Resolve the required scene objects; missing objects abort startup.
	vehicle, err := gateway.ResolveAny(vehiclePaths...)
	if err != nil {
		logger.Error("vehicle object missing from scene", "err", err)
		os.Exit(1)
	}
	target, err := gateway.ResolveAny(targetPaths...)
	if err != nil {
		logger.Error("target object missing from scene", "err", err)
		os.Exit(1)
	}
	sensor, err := gateway.ResolveAny(sensorPaths...)
	if err != nil {
		logger.Error("vision sensor missing from scene", "err", err)
		os.Exit(1)
	}
	initial, err := gateway.ReadPose(target)
	if err != nil {
		logger.Error("reading initial target pose failed", "err", err)
		os.Exit(1)
	}

	f := feed.New()
	f.UpdateStatus(func(s *feed.Status) {
		s.Connected = true
	})

	controller := flight.NewController(gateway, target, initial, flight.Config{
		Step:            config.EnvFloat("MOVE_STEP", config.DefaultMoveStep),
		TakeoffAltitude: config.EnvFloat("TAKEOFF_ALTITUDE", config.DefaultTakeoffAltitude),
		LandingAltitude: config.EnvFloat("LANDING_ALTITUDE", config.DefaultLandingAltitude),
	}, logger.With("component", "flight"))

	captureLoop := camera.NewLoop(gateway, sensor, f, camera.Config{
		FPS:         *fps,
		JPEGQuality: config.EnvInt("JPEG_QUALITY", config.DefaultJPEGQuality),
	}, logger.With("component", "camera"))

	// Voice control needs a speech backend; without credentials it is
	// disabled and the viewer still gets video and manual control.
	var mic *voice.MicBuffer
	var voiceLoop *voice.Loop
	transcriber, err := voice.NewGoogleTranscriber(ctx, config.GoogleAPIKey())
	if err != nil {
		logger.Warn("voice control disabled", "err", err)
		f.UpdateStatus(func(s *feed.Status) {
			s.VoiceOK = false
			s.VoiceError = "speech backend unavailable"
		})
	} else {
		mic = voice.NewMicBuffer(voice.MicConfig{
			EnergyThreshold: config.EnvFloat("ENERGY_THRESHOLD", voice.DefaultEnergyThreshold),
			Pause:           config.EnvDuration("VOICE_PAUSE", voice.DefaultPause),
			PhraseLimit:     config.EnvDuration("PHRASE_LIMIT", voice.DefaultPhraseLimit),
		}, logger.With("component", "mic"))
		voiceLoop = voice.NewLoop(mic, transcriber, controller, f,
			config.EnvDuration("LISTEN_TIMEOUT", config.DefaultListenTimeout),
			logger.With("component", "voice"))
		f.UpdateStatus(func(s *feed.Status) {
			s.VoiceOK = true
		})
	}

	server := web.NewServer(*webPort, f, controller, mic, *fps)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		captureLoop.Run(ctx)
	}()
	if voiceLoop != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			voiceLoop.Run(ctx)
		}()
	}

	// Track the vehicle's actual pose for the status feed; the gateway
	// read path is the source of truth for position queries.
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if p, err := gateway.ReadPose(vehicle); err == nil {
					f.UpdateStatus(func(s *feed.Status) {
						s.VehiclePosition = p
					})
				}
			}
		}
	}()

	go func() {
		if err := server.Start(ctx); err != nil {
			logger.Error("web server failed", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()

	// Shutdown: stop the server with a bounded wait (open video streams
	// must not hold it), join the loops, then release the session
	// (deferred Close, exactly once).
	server.Shutdown(shutdownGrace)

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		logger.Info("background loops stopped")
	case <-time.After(shutdownGrace):
		logger.Warn("background loops did not stop in time", "grace", shutdownGrace)
	}
}
