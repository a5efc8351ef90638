package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"cropview"
)

type Config struct {
	Addr             string
	OnBeforeShutdown func()
	OnReady          func(addr string)
}

// WebApp exposes crop editor sessions over a JSON API. A session wraps one
// Controller; the browser UI reports viewport sizes and gesture deltas and
// reads back the selection to position its overlay.
type WebApp struct {
	config       Config
	shutdownCh   chan struct{}
	shutdownOnce sync.Once

	mu       sync.Mutex
	sessions map[string]*session
}

func NewWebApp(config Config) *WebApp {
	return &WebApp{
		config:     config,
		shutdownCh: make(chan struct{}),
		sessions:   make(map[string]*session),
	}
}

func (a *WebApp) Shutdown() {
	a.shutdownOnce.Do(func() {
		close(a.shutdownCh)
	})
}

type session struct {
	ID         string
	controller *cropview.Controller

	mu     sync.Mutex // serializes crop requests
	cropCh chan []byte
	errCh  chan error
}

type sessionState struct {
	ID        string        `json:"id"`
	Status    string        `json:"status"`
	Selection cropview.Rect `json:"selection"`
	ImageRect cropview.Rect `json:"image_rect"`
	FitMode   string        `json:"fit_mode"`
}

func (s *session) state() sessionState {
	return sessionState{
		ID:        s.ID,
		Status:    s.controller.Status().String(),
		Selection: s.controller.Selection(),
		ImageRect: s.controller.ImageRect(),
		FitMode:   s.controller.FitMode().String(),
	}
}

func (a *WebApp) newSession(cfg cropview.Config) *session {
	s := &session{
		ID:     uuid.NewString(),
		cropCh: make(chan []byte, 1),
		errCh:  make(chan error, 1),
	}
	sessionLogger := log.Logger.With().Str("session", s.ID).Logger()
	cfg.Logger = &sessionLogger
	cfg.OnCrop = func(data []byte) {
		select {
		case s.cropCh <- data:
		default:
		}
	}
	cfg.OnError = func(err error) {
		select {
		case s.errCh <- err:
		default:
		}
	}
	s.controller = cropview.NewController(cfg)

	a.mu.Lock()
	a.sessions[s.ID] = s
	a.mu.Unlock()
	return s
}

func (a *WebApp) session(id string) (*session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	s, ok := a.sessions[id]
	if !ok {
		return nil, fiber.NewError(http.StatusNotFound, "unknown session")
	}
	return s, nil
}

func (a *WebApp) Run(ctx context.Context) error {
	webapp := fiber.New(fiber.Config{
		Immutable:             true,
		DisableStartupMessage: true,
		BodyLimit:             64 * 1024 * 1024,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			log.Ctx(c.Context()).Error().
				Err(err).
				Str("path", c.Path()).
				Str("method", c.Method()).
				Msg("Request failed")
			var fiberErr *fiber.Error
			if errors.As(err, &fiberErr) {
				return c.Status(fiberErr.Code).JSON(fiber.Map{"error": fiberErr.Message})
			}
			return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "Internal Server Error"})
		},
	})

	webapp.Hooks().OnListen(func(listen fiber.ListenData) error {
		if fn := a.config.OnReady; fn != nil {
			fn(fmt.Sprintf("http://%s:%s", listen.Host, listen.Port))
		}
		return nil
	})

	go func() {
		select {
		case <-ctx.Done():
		case <-a.shutdownCh:
		}
		if fn := a.config.OnBeforeShutdown; fn != nil {
			fn()
		}
		if err := webapp.ShutdownWithTimeout(5 * time.Second); err != nil {
			log.Ctx(ctx).Error().Err(err).Msg("Failed to shutdown web application")
		}
	}()

	webapp.Post("/api/sessions", a.handleCreateSession)
	webapp.Get("/api/sessions/:id", a.handleGetSession)
	webapp.Post("/api/sessions/:id/viewport", a.handleViewport)
	webapp.Post("/api/sessions/:id/aspect", a.handleAspect)
	webapp.Post("/api/sessions/:id/circle", a.handleCircle)
	webapp.Post("/api/sessions/:id/rect", a.handleRect)
	webapp.Post("/api/sessions/:id/area", a.handleArea)
	webapp.Post("/api/sessions/:id/gesture", a.handleGesture)
	webapp.Post("/api/sessions/:id/crop", a.handleCrop)
	webapp.Post("/api/shutdown", func(c *fiber.Ctx) error {
		a.Shutdown()
		return nil
	})

	listener, err := net.Listen("tcp", a.config.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	if err := webapp.Listener(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

func (a *WebApp) handleCreateSession(c *fiber.Ctx) error {
	body := c.Body()
	if len(body) == 0 {
		return fiber.NewError(http.StatusBadRequest, "request body must contain image bytes")
	}

	cfg := cropview.Config{
		AspectRatio:         c.QueryFloat("aspect"),
		FixedAspect:         c.QueryBool("fixed"),
		Circle:              c.QueryBool("circle"),
		InitialSizeFraction: c.QueryFloat("fraction"),
	}
	s := a.newSession(cfg)
	// The decode outlives the request handler, so it must not borrow the
	// pooled fasthttp request context.
	s.controller.SetImage(context.Background(), body)

	return c.Status(http.StatusCreated).JSON(s.state())
}

func (a *WebApp) handleGetSession(c *fiber.Ctx) error {
	s, err := a.session(c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(s.state())
}

func (a *WebApp) handleViewport(c *fiber.Ctx) error {
	s, err := a.session(c.Params("id"))
	if err != nil {
		return err
	}
	var viewport cropview.Size
	if err := c.BodyParser(&viewport); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	s.controller.OnViewportResized(viewport)
	return c.JSON(s.state())
}

func (a *WebApp) handleAspect(c *fiber.Ctx) error {
	s, err := a.session(c.Params("id"))
	if err != nil {
		return err
	}
	var request struct {
		Ratio float64 `json:"ratio"`
	}
	if err := c.BodyParser(&request); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := s.controller.SetAspectRatio(request.Ratio); err != nil {
		return controllerError(err)
	}
	return c.JSON(s.state())
}

func (a *WebApp) handleCircle(c *fiber.Ctx) error {
	s, err := a.session(c.Params("id"))
	if err != nil {
		return err
	}
	var request struct {
		On bool `json:"on"`
	}
	if err := c.BodyParser(&request); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := s.controller.SetCircleMode(request.On); err != nil {
		return controllerError(err)
	}
	return c.JSON(s.state())
}

func (a *WebApp) handleRect(c *fiber.Ctx) error {
	s, err := a.session(c.Params("id"))
	if err != nil {
		return err
	}
	var rect cropview.Rect
	if err := c.BodyParser(&rect); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := s.controller.SetRect(rect); err != nil {
		return controllerError(err)
	}
	return c.JSON(s.state())
}

func (a *WebApp) handleArea(c *fiber.Ctx) error {
	s, err := a.session(c.Params("id"))
	if err != nil {
		return err
	}
	var area cropview.Rect
	if err := c.BodyParser(&area); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := s.controller.SetArea(area); err != nil {
		return controllerError(err)
	}
	return c.JSON(s.state())
}

func (a *WebApp) handleGesture(c *fiber.Ctx) error {
	s, err := a.session(c.Params("id"))
	if err != nil {
		return err
	}
	var request struct {
		Type   string  `json:"type"`
		Corner string  `json:"corner"`
		DX     float64 `json:"dx"`
		DY     float64 `json:"dy"`
	}
	if err := c.BodyParser(&request); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	switch request.Type {
	case "move":
		err = s.controller.MoveSelection(request.DX, request.DY)
	case "corner":
		corner, ok := parseCorner(request.Corner)
		if !ok {
			return fiber.NewError(http.StatusBadRequest, fmt.Sprintf("unknown corner %q", request.Corner))
		}
		err = s.controller.MoveCorner(corner, request.DX, request.DY)
	default:
		return fiber.NewError(http.StatusBadRequest, fmt.Sprintf("unknown gesture %q", request.Type))
	}
	if err != nil {
		return controllerError(err)
	}
	return c.JSON(s.state())
}

func (a *WebApp) handleCrop(c *fiber.Ctx) error {
	s, err := a.session(c.Params("id"))
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Drop results of requests nobody waited for.
	select {
	case <-s.cropCh:
	default:
	}
	select {
	case <-s.errCh:
	default:
	}

	if err := s.controller.RequestCrop(context.Background(), c.QueryBool("circular")); err != nil {
		return controllerError(err)
	}

	select {
	case data := <-s.cropCh:
		c.Set(fiber.HeaderContentType, "image/png")
		return c.Send(data)
	case err := <-s.errCh:
		return fiber.NewError(http.StatusUnprocessableEntity, err.Error())
	case <-time.After(30 * time.Second):
		return fiber.NewError(http.StatusGatewayTimeout, "crop did not complete in time")
	}
}

func parseCorner(name string) (cropview.Corner, bool) {
	switch name {
	case "top-left":
		return cropview.TopLeft, true
	case "top-right":
		return cropview.TopRight, true
	case "bottom-left":
		return cropview.BottomLeft, true
	case "bottom-right":
		return cropview.BottomRight, true
	}
	return 0, false
}

func controllerError(err error) error {
	switch {
	case errors.Is(err, cropview.ErrInvalidState):
		return fiber.NewError(http.StatusConflict, err.Error())
	case errors.Is(err, cropview.ErrFixedSelection):
		return fiber.NewError(http.StatusForbidden, err.Error())
	}
	return err
}
