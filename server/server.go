// Package server binds the authorization server and the bearer token
// validator to net/http.
package server

import (
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-oauth2-server/auth"
	"github.com/jrsteele09/go-oauth2-server/internal/config"
	"github.com/jrsteele09/go-oauth2-server/resource"
	"github.com/jrsteele09/go-oauth2-server/server/authflowrepo"
	"github.com/jrsteele09/go-oauth2-server/token"
	"github.com/jrsteele09/go-oauth2-server/users"
)

// Dependencies are the collaborators the HTTP layer dispatches to.
type Dependencies struct {
	Auth      *auth.AuthorizationServer
	Validator *resource.BearerTokenValidator
	// Users authenticates the resource owner on the login form.
	Users     users.Repo
	AuthFlows authflowrepo.Repo
	KeySet    jose.JSONWebKeySet
	// IdentifierGenerator names pending auth flows. Defaults to random hex.
	IdentifierGenerator token.IdentifierGenerator
	NowFunc             func() time.Time
}

type Server struct {
	env       string
	mux       *http.ServeMux
	routes    []string
	config    config.Config
	auth      *auth.AuthorizationServer
	validator *resource.BearerTokenValidator
	users     users.Repo
	authFlows authflowrepo.Repo
	keySet    jose.JSONWebKeySet
	ids       token.IdentifierGenerator
	now       func() time.Time
	loginTmpl *template.Template
}

func New(cfg config.Config, deps Dependencies) (*Server, error) {
	switch {
	case deps.Auth == nil:
		return nil, errors.New("[server.New] authorization server is required")
	case deps.Validator == nil:
		return nil, errors.New("[server.New] token validator is required")
	case deps.Users == nil:
		return nil, errors.New("[server.New] users repo is required")
	}

	loginTmpl, err := ParseTemplate("login.html")
	if err != nil {
		return nil, errors.Wrap(err, "[server.New] parse login template")
	}

	s := &Server{
		env:       cfg.GetEnv(),
		mux:       http.NewServeMux(),
		config:    cfg,
		auth:      deps.Auth,
		validator: deps.Validator,
		users:     deps.Users,
		authFlows: deps.AuthFlows,
		keySet:    deps.KeySet,
		ids:       deps.IdentifierGenerator,
		now:       deps.NowFunc,
		loginTmpl: loginTmpl,
	}
	if s.authFlows == nil {
		s.authFlows = authflowrepo.NewInMemoryRepo()
	}
	if s.ids == nil {
		s.ids = token.NewRandomIdentifierGenerator()
	}
	if s.now == nil {
		s.now = time.Now
	}

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return
	}
	for _, route := range s.routes {
		method, path, found := strings.Cut(route, " ")
		if !found {
			method, path = "", route
		}
		log.Debug().Msg(formatRoute(method, path))
	}
}

func formatRoute(method, path string) string {
	color, ok := methodColors[method]
	if !ok {
		color = Gray
	}
	return fmt.Sprintf("[%s %-7s%s] %s", color, method, ResetColor, path)
}

// issuer is the externally visible base URL used in discovery metadata.
func (s *Server) issuer(r *http.Request) string {
	if base := s.config.GetBaseURL(); base != "" {
		return base
	}
	return getScheme(r) + "://" + r.Host
}

func getScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if scheme := r.Header.Get("X-Forwarded-Proto"); scheme != "" {
		return scheme
	}
	return "http"
}
