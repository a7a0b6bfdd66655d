// Package httpapi serves model documents over HTTP.
//
//	GET /:resource/:id?version=1   rendered document, from the cache when fresh
//	PUT /:resource/:id?version=1   update the entity in place from the request body
package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/goliatone/go-modelxml/engine"
	"github.com/goliatone/go-modelxml/model"
	"github.com/goliatone/go-modelxml/strategy"
)

// ErrNotFound should be returned, or wrapped, by loaders for unknown entities.
var ErrNotFound = errors.New("entity not found")

// Saver persists an updated model.
type Saver interface {
	Save(ctx context.Context, m model.Model) error
}

type SaverFunc func(ctx context.Context, m model.Model) error

// Save calls f.
func (f SaverFunc) Save(ctx context.Context, m model.Model) error { return f(ctx, m) }

// ErrorMessage is the JSON body of error responses.
type ErrorMessage struct {
	Reason string `json:"reason"`
	Code   string `json:"code,omitempty"`
}

type Server struct {
	engine    *engine.Engine
	loader    strategy.Loader
	saver     Saver
	logger    zerolog.Logger
	bodyLimit string
	kind      strategy.Kind
}

type Option func(*Server)

// WithSaver persists models after PUT. Without a saver updates are applied but not stored.
func WithSaver(saver Saver) Option {
	return func(s *Server) { s.saver = saver }
}

// WithLogger sets the request logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithBodyLimit caps PUT bodies, e.g. "2M". Default "1M".
func WithBodyLimit(limit string) Option {
	return func(s *Server) { s.bodyLimit = limit }
}

// WithDefaultKind sets the format served when a request has no version parameter.
func WithDefaultKind(kind strategy.Kind) Option {
	return func(s *Server) { s.kind = kind }
}

// New returns a server that renders and updates the models loader finds.
func New(eng *engine.Engine, loader strategy.Loader, opts ...Option) *Server {
	s := &Server{
		engine:    eng,
		loader:    loader,
		logger:    zerolog.Nop(),
		bodyLimit: "1M",
		kind:      strategy.VersionA,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Echo returns a configured echo instance with the routes registered.
func (s *Server) Echo() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	s.Register(e.Group(""))
	return e
}

// Register adds the document routes to g.
func (s *Server) Register(g *echo.Group) {
	g.GET("/:resource/:id", s.getDocument)
	g.PUT("/:resource/:id", s.putDocument, middleware.BodyLimit(s.bodyLimit))
}

func (s *Server) getDocument(c echo.Context) error {
	ctx := c.Request().Context()
	kind, err := s.kindParam(c)
	if err != nil {
		return err
	}
	m, err := s.load(ctx, c)
	if err != nil {
		return err
	}

	out, err := s.engine.Render(ctx, m, kind)
	if err != nil {
		return s.httpError(c, err)
	}
	return c.Blob(http.StatusOK, echo.MIMEApplicationXMLCharsetUTF8, []byte(out))
}

func (s *Server) putDocument(c echo.Context) error {
	ctx := c.Request().Context()
	kind, err := s.kindParam(c)
	if err != nil {
		return err
	}
	m, err := s.load(ctx, c)
	if err != nil {
		return err
	}

	updated, err := s.engine.Update(ctx, m, c.Request().Body, kind)
	if err != nil {
		return s.httpError(c, err)
	}
	if s.saver != nil {
		if err := s.saver.Save(ctx, updated); err != nil {
			return s.httpError(c, err)
		}
	}

	st, err := s.engine.Strategy(kind)
	if err != nil {
		return s.httpError(c, err)
	}
	doc, err := st.Serialize(updated)
	if err != nil {
		return s.httpError(c, err)
	}
	return c.Blob(http.StatusOK, echo.MIMEApplicationXMLCharsetUTF8, []byte(doc.String()))
}

func (s *Server) load(ctx context.Context, c echo.Context) (model.Model, error) {
	m, err := s.loader.Load(ctx, c.Param("resource"), model.ID{c.Param("id")})
	if err != nil {
		return nil, s.httpError(c, err)
	}
	if m == nil {
		return nil, s.httpError(c, ErrNotFound)
	}
	return m, nil
}

func (s *Server) kindParam(c echo.Context) (strategy.Kind, error) {
	v := c.QueryParam("version")
	if v == "" {
		return s.kind, nil
	}
	kind, err := strategy.ParseKind(v)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, ErrorMessage{Reason: "unknown version " + v}).SetInternal(err)
	}
	return kind, nil
}

func (s *Server) httpError(c echo.Context, err error) *echo.HTTPError {
	code := StatusOf(err)
	ev := s.logger.Info()
	if code >= http.StatusInternalServerError {
		ev = s.logger.Error()
	}
	ev.Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Request().URL.Path).
		Int("status", code).
		Msg("request failed")

	msg := ErrorMessage{Reason: http.StatusText(code), Code: textCode(err)}
	if code < http.StatusInternalServerError {
		msg.Reason = err.Error()
	}
	return echo.NewHTTPError(code, msg).SetInternal(err)
}

// StatusOf maps serialization errors to HTTP status codes.
func StatusOf(err error) int {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, strategy.ErrReferenceResolution):
		return http.StatusNotFound
	case errors.Is(err, strategy.ErrNotImplemented):
		return http.StatusNotImplemented
	case errors.Is(err, strategy.ErrUnknownField),
		errors.Is(err, strategy.ErrMalformedInput),
		errors.Is(err, strategy.ErrModelResolution),
		errors.Is(err, strategy.ErrNoModel):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func textCode(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, strategy.ErrReferenceResolution):
		return strategy.CodeReferenceResolution
	case errors.Is(err, strategy.ErrNotImplemented):
		return strategy.CodeNotImplemented
	case errors.Is(err, strategy.ErrUnknownField):
		return strategy.CodeUnknownField
	case errors.Is(err, strategy.ErrMalformedInput):
		return strategy.CodeMalformedInput
	case errors.Is(err, strategy.ErrModelResolution):
		return strategy.CodeModelResolution
	case errors.Is(err, strategy.ErrNoModel):
		return strategy.CodeNoModel
	case errors.Is(err, strategy.ErrCyclicModel):
		return strategy.CodeCyclicModel
	}
	return ""
}
