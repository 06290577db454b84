package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/teamup/internal/teamup/service"
	"github.com/aussiebroadwan/teamup/internal/teamup/store"
	"github.com/aussiebroadwan/teamup/pkg/httpx"
	"github.com/aussiebroadwan/teamup/pkg/jwtx"
	"github.com/aussiebroadwan/teamup/pkg/slogx"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	_ "github.com/aussiebroadwan/teamup/api/teamup" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware
	handler     http.Handler

	verifier     jwtx.Verifier
	cookie       httpx.SessionCookie
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
	store        store.Store

	AccountService *service.AccountService
	TeamService    *service.TeamService

	// Limits backs the rate limiters. Defaults to in-process buckets.
	Limits httpx.LimiterBackend

	// CORSOrigins lists allowed origins. Empty reflects any origin.
	CORSOrigins []string

	// CachePing, when set, is reported by /readyz.
	CachePing func(ctx context.Context) error
}

func NewRouter(
	verifier jwtx.Verifier,
	cookie httpx.SessionCookie,
	buildVersion string,
	st store.Store,
	logger *slog.Logger,
) *Router {
	return &Router{
		Mux:          http.NewServeMux(),
		verifier:     verifier,
		cookie:       cookie,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
		Limits:       httpx.MemoryBackend{},
	}
}

// ApplyRoutes registers every route and builds the global middleware chain.
// It must be called once, after the services are set and before serving.
func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerUser()
	r.registerTeams()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())

	// Logging wraps recovery so panics are still logged as 500s.
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
		httpx.Recover(r.logger),
		httpx.CORS(r.CORSOrigins),
	}
	r.handler = httpx.Chain(r.Mux, r.middlewares...)
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			teamup API
//	@version		0.1.0
//	@description	Team formation service: create teams, apply with profile links, and manage applicants.
//	@description
//	@description				Sessions are HS256 JWTs delivered in the "token" cookie, or as a bearer token.
//
//	@contact.name				AussieBroadWAN Team
//	@contact.url				https://github.com/aussiebroadwan/teamup
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@schemes					http https
//
//	@securityDefinitions.apikey	CookieAuth
//	@in							cookie
//	@name						token
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Session token. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.handler.ServeHTTP(w, req)
}

func (r *Router) session() httpx.Middleware {
	return httpx.SessionMiddleware(r.verifier, r.cookie.Name)
}

func (r *Router) optionalSession() httpx.Middleware {
	return httpx.OptionalSessionMiddleware(r.verifier, r.cookie.Name)
}

func (r *Router) byIP(profile string, cfg httpx.RateLimitConfig) httpx.Middleware {
	return httpx.RateLimitByIP(r.Limits, profile, cfg)
}

func (r *Router) byUser(profile string, cfg httpx.RateLimitConfig) httpx.Middleware {
	return httpx.RateLimitByUser(r.Limits, profile, cfg)
}

func (r *Router) registerAuth() {
	h := &AuthHandler{AccountService: r.AccountService, Cookie: r.cookie}

	// Credential and code endpoints - strict rate limit by IP
	r.Mux.Handle("POST /api/auth/register",
		httpx.Chain(http.HandlerFunc(h.HandleRegister), r.byIP("auth-strict", httpx.StrictLimit)))
	r.Mux.Handle("POST /api/auth/login",
		httpx.Chain(http.HandlerFunc(h.HandleLogin), r.byIP("auth-strict", httpx.StrictLimit)))
	r.Mux.Handle("POST /api/auth/sendResetOtp",
		httpx.Chain(http.HandlerFunc(h.HandleSendResetOTP), r.byIP("auth-strict", httpx.StrictLimit)))
	r.Mux.Handle("POST /api/auth/resetPassword",
		httpx.Chain(http.HandlerFunc(h.HandleResetPassword), r.byIP("auth-strict", httpx.StrictLimit)))

	r.Mux.Handle("POST /api/auth/logout",
		httpx.Chain(http.HandlerFunc(h.HandleLogout), r.byIP("auth-lenient", httpx.LenientLimit)))

	// Signed in - rate limited per user
	r.Mux.Handle("POST /api/auth/isAuthenticated",
		httpx.Chain(http.HandlerFunc(h.HandleIsAuthenticated),
			r.session(),
			r.byUser("user-lenient", httpx.LenientLimit),
		))
	r.Mux.Handle("POST /api/auth/sendVerifyOtp",
		httpx.Chain(http.HandlerFunc(h.HandleSendVerifyOTP),
			r.session(),
			r.byUser("user-strict", httpx.StrictLimit),
		))
	r.Mux.Handle("POST /api/auth/verifyAccount",
		httpx.Chain(http.HandlerFunc(h.HandleVerifyAccount),
			r.session(),
			r.byUser("user-strict", httpx.StrictLimit),
		))
}

func (r *Router) registerUser() {
	h := &UserHandler{AccountService: r.AccountService}

	r.Mux.Handle("GET /api/user/profile",
		httpx.Chain(http.HandlerFunc(h.HandleProfile),
			r.session(),
			r.byUser("user-lenient", httpx.LenientLimit),
		))
}

func (r *Router) registerTeams() {
	h := &TeamHandler{TeamService: r.TeamService}

	read := func(fn http.HandlerFunc) http.Handler {
		return httpx.Chain(fn, r.session(), r.byUser("team-read", httpx.LenientLimit))
	}
	write := func(fn http.HandlerFunc) http.Handler {
		return httpx.Chain(fn, r.session(), r.byUser("team-write", httpx.ModerateLimit))
	}

	r.Mux.Handle("POST /api/team", write(h.HandleCreate))
	r.Mux.Handle("GET /api/team/created", read(h.HandleListCreated))
	r.Mux.Handle("GET /api/team/applied", read(h.HandleListApplied))
	r.Mux.Handle("GET /api/team/{teamId}", read(h.HandleGet))

	// Browsing works signed out, so it is limited by IP.
	r.Mux.Handle("GET /api/team/available",
		httpx.Chain(http.HandlerFunc(h.HandleListAvailable),
			r.optionalSession(),
			r.byIP("team-browse", httpx.LenientLimit),
		))

	r.Mux.Handle("POST /api/team/{teamId}/apply", write(h.HandleApply))
	r.Mux.Handle("POST /api/team/{teamId}/applicants/{applicantId}/accept", write(h.HandleAccept))
	r.Mux.Handle("POST /api/team/{teamId}/applicants/{applicantId}/reject", write(h.HandleReject))
	r.Mux.Handle("POST /api/team/{teamId}/applicants/{applicantId}/withdraw", write(h.HandleWithdraw))
	r.Mux.Handle("PATCH /api/team/{teamId}/recruiting", write(h.HandleRecruiting))
}

func (r *Router) registerSystem() {
	// Health check endpoints - lenient rate limits (monitoring systems may poll frequently)
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			r.byIP("system", httpx.PublicLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store, r.CachePing),
			r.byIP("system", httpx.PublicLimit),
		),
	)
	r.Mux.Handle("GET /metrics", promhttp.Handler())
}
