package echoapi

import (
	"context"
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/Evian1k/school12k/core"
	"github.com/Evian1k/school12k/core/auth"
	"github.com/Evian1k/school12k/core/identity"
)

type (
	Options struct {
		Address        string
		DisableReqLogs bool

		Conf        *core.Config
		Logger      core.Logger
		IdentitySvc identity.Service
		Issuer      *auth.Issuer
		Sessions    *auth.Manager
		Validate    *validator.Validate
		Translator  ut.Translator

		// Shutdown is signaled when an integrity error requires the app to stop.
		Shutdown chan<- struct{}
	}

	Server interface {
		http.Handler
		Start() error
		Stop(context.Context) error
	}

	server struct {
		opts *Options
		app  *echo.Echo
	}
)

var _ Server = (*server)(nil)

func NewServer(opts *Options) Server {
	s := &server{
		opts: opts,
		app:  echo.New(),
	}
	s.setup()
	return s
}

func (s *server) setup() {
	conf := s.opts.Conf

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.opts.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.opts.Logger, s.opts.Translator, s.signalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", home)

	v1 := s.app.Group("/v1")
	jwt := middleware.JWTWithConfig(appJWTConfig(conf))

	registerAuthAPI(v1, jwt, &authApi{
		conf:     conf,
		idSvc:    s.opts.IdentitySvc,
		issuer:   s.opts.Issuer,
		sessions: s.opts.Sessions,
		validate: s.opts.Validate,
	})

	// role-scoped portal areas
	portal := v1.Group("/portal", jwt)
	portal.GET("/admin", portalHome("admin"), roleMiddleware(identity.RoleAdmin))
	portal.GET("/teacher", portalHome("teacher"), roleMiddleware(identity.RoleTeacher))
	portal.GET("/student", portalHome("student"), roleMiddleware(identity.RoleStudent))
	portal.GET("/guardian", portalHome("guardian"), roleMiddleware(identity.RoleGuardian))
}

func (s *server) signalShutdown() {
	if s.opts.Shutdown != nil {
		s.opts.Shutdown <- struct{}{}
	}
}

func (s *server) Start() error {
	return s.app.Start(s.opts.Address)
}

func (s *server) Stop(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to EduManage API!")
}

func portalHome(name string) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		claims, err := getContextClaims(ctx)
		if err != nil {
			return err
		}
		return ctx.JSON(http.StatusOK, echo.Map{"portal": name, "name": claims.Name, "role": claims.Role})
	}
}
