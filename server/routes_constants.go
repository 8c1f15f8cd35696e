package server

// Route path constants
const (
	RouteAPISession       = "/api/session"
	RouteAPISessionEvents = "/api/session/events"
	RouteAPILogin         = "/api/login"
	RouteAPILogout        = "/api/logout"
	RouteAPIRefresh       = "/api/refresh"
	RouteAPIUserInfo      = "/api/userinfo"
	RouteAPIToken         = "/api/token"

	RouteMetrics = "/metrics"
)
