package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) initRoutes() {
	s.RegisterRouteHandler("GET "+RouteAPISession, ChainMiddleware(s.SessionHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteAPISessionEvents, ChainMiddleware(s.SessionEventsHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteAPIUserInfo, ChainMiddleware(s.UserInfoHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteAPIToken, ChainMiddleware(s.TokenHandler(), s.APIMiddleware()...))

	s.RegisterRouteHandler("POST "+RouteAPILogin, ChainMiddleware(s.LoginHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteAPILogout, ChainMiddleware(s.LogoutHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteAPIRefresh, ChainMiddleware(s.RefreshHandler(), s.APIMiddleware()...))

	// Preflight requests for the API are answered by the CORS middleware.
	s.RegisterRouteHandler("OPTIONS /api/", ChainMiddleware(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}, s.APIMiddleware()...))

	metrics := promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})
	s.RegisterRouteHandler("GET "+RouteMetrics, ChainMiddleware(metrics.ServeHTTP, s.LoggingMiddleware, s.RecoverMiddleware))
}
