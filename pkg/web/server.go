// Package web serves the viewer: a REST API for status and manual
// commands, an MJPEG video stream, and websocket feeds for camera frames
// and status snapshots. It is glue around the core's pull contracts;
// the loops never know how many viewers exist.
package web

import (
	"context"
	"sync"
	"time"

	contribws "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/skysim/go-quadpilot/internal/log"
	"github.com/skysim/go-quadpilot/pkg/feed"
	"github.com/skysim/go-quadpilot/pkg/flight"
	"github.com/skysim/go-quadpilot/pkg/hub"
	"github.com/skysim/go-quadpilot/pkg/voice"
)

// statusPushInterval is the cadence of status broadcasts to websocket
// viewers. REST polling reads the feed directly and is not limited by it.
const statusPushInterval = time.Second

// Server is the viewer web server.
type Server struct {
	app  *fiber.App
	port string

	feed       *feed.Feed
	controller *flight.Controller
	mic        *voice.MicBuffer // nil when voice control is disabled

	statusHub *hub.Hub
	cameraHub *hub.Hub

	pushFPS int // camera websocket push rate

	// stop ends long-lived response streams (MJPEG) so shutdown never
	// waits on a viewer that would otherwise hold its connection open
	// forever.
	stop     chan struct{}
	stopOnce sync.Once
}

// NewServer creates the server and registers all routes.
func NewServer(port string, f *feed.Feed, ctrl *flight.Controller, mic *voice.MicBuffer, pushFPS int) *Server {
	if pushFPS <= 0 {
		pushFPS = 30
	}

	s := &Server{
		port:       port,
		feed:       f,
		controller: ctrl,
		mic:        mic,
		statusHub:  hub.New("status"),
		cameraHub:  hub.New("camera"),
		pushFPS:    pushFPS,
		stop:       make(chan struct{}),
	}

	app := fiber.New(fiber.Config{
		AppName:               "quadpilot viewer",
		DisableStartupMessage: true,
	})

	// CORS for local development
	app.Use(cors.New())

	// Static viewer page
	app.Static("/", "./web")

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Post("/command", s.handleCommand)

	app.Get("/frame", s.handleFrame)
	app.Get("/video", s.handleVideo)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/camera", websocket.New(s.handleCameraWS))
	app.Get("/ws/status", websocket.New(s.handleStatusWS))
	app.Get("/ws/control", contribws.New(s.handleControlWS))
	app.Get("/ws/mic", contribws.New(s.handleMicWS))

	s.app = app
	return s
}

// Start runs the hubs, the push loops and the listener. Blocks until the
// listener stops.
func (s *Server) Start(ctx context.Context) error {
	go s.statusHub.Run(ctx)
	go s.cameraHub.Run(ctx)
	go s.pushFrames(ctx)
	go s.pushStatus(ctx)
	go func() {
		<-ctx.Done()
		s.closeStreams()
	}()

	log.Info("viewer server listening", "port", s.port)
	return s.app.Listen(":" + s.port)
}

// Shutdown stops the web server, waiting at most grace for in-flight
// requests. Response streams are ended first; an open MJPEG stream would
// otherwise keep its connection busy and stall shutdown past any grace.
func (s *Server) Shutdown(grace time.Duration) error {
	s.closeStreams()
	return s.app.ShutdownWithTimeout(grace)
}

func (s *Server) closeStreams() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// pushFrames forwards new frames from the feed to camera websocket
// viewers. Only sequence changes are pushed; the feed itself is the
// latest-value source of truth.
func (s *Server) pushFrames(ctx context.Context) {
	ticker := time.NewTicker(time.Second / time.Duration(s.pushFPS))
	defer ticker.Stop()

	var lastSeq uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.cameraHub.ClientCount() == 0 {
				continue
			}
			frame := s.feed.LatestFrame()
			if frame == nil || frame.Seq == lastSeq {
				continue
			}
			lastSeq = frame.Seq
			s.cameraHub.BroadcastBinary(frame.JPEG)
		}
	}
}

// pushStatus broadcasts the latest status snapshot once per interval and
// refreshes the viewer count.
func (s *Server) pushStatus(ctx context.Context) {
	ticker := time.NewTicker(statusPushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			viewers := s.statusHub.ClientCount() + s.cameraHub.ClientCount()
			s.feed.UpdateStatus(func(st *feed.Status) {
				st.ConnectedViewers = viewers
			})
			s.statusHub.BroadcastJSON(s.feed.LatestStatus())
		}
	}
}
