package ipc

import (
	"context"
	"net"
	"net/http"

	"github.com/expanse-sim/expanse-engine/internal/guard"
)

// Server wraps an HTTP server with engine-specific routing.
type Server struct {
	httpServer *http.Server
}

// NewServer creates a Server that binds to the given address.
func NewServer(h *Handler, listenAddr string) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:    listenAddr,
			Handler: h.Routes(),
		},
	}
}

// Routes returns the API mux wrapped in CORS and rate limiting.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	// Health endpoint.
	mux.HandleFunc("GET /api/v1/health", h.Health)

	// Galaxy and star system endpoints.
	mux.HandleFunc("GET /api/v1/galaxy", h.GetGalaxy)
	mux.HandleFunc("GET /api/v1/systems", h.ListSystems)
	mux.HandleFunc("GET /api/v1/systems/{id}", h.GetSystem)
	mux.HandleFunc("POST /api/v1/systems/{id}/colonize", h.ColonizeSystem)
	mux.HandleFunc("PUT /api/v1/active-system", h.SetActiveSystem)
	mux.HandleFunc("POST /api/v1/interstellar", h.LaunchInterstellar)

	// Zone endpoints.
	mux.HandleFunc("GET /api/v1/zones/{id}/figures", h.ZoneFigures)
	mux.HandleFunc("POST /api/v1/zones/{id}/{command}", h.ZoneCommand)

	// Transfer endpoints.
	mux.HandleFunc("GET /api/v1/transfers", h.ListTransfers)
	mux.HandleFunc("POST /api/v1/transfers", h.CreateTransfer)
	mux.HandleFunc("GET /api/v1/transfers/{id}", h.GetTransfer)
	mux.HandleFunc("DELETE /api/v1/transfers/{id}", h.CancelTransfer)
	mux.HandleFunc("POST /api/v1/transfers/{id}/pause", h.PauseTransfer)
	mux.HandleFunc("POST /api/v1/transfers/{id}/resume", h.ResumeTransfer)

	mux.HandleFunc("PUT /api/v1/skills", h.SetSkills)

	// Persistence and event endpoints.
	mux.HandleFunc("POST /api/v1/save", h.Save)
	mux.HandleFunc("GET /api/v1/events", h.ListEvents)
	mux.HandleFunc("GET /api/v1/events/stream", h.StreamEvents)

	return corsMiddleware(rateLimitMiddleware(h.Guard, mux))
}

// Start begins listening for HTTP connections. Blocks until the server stops.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// corsMiddleware adds CORS headers for local desktop app access.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// rateLimitMiddleware rejects callers whose bucket is empty. A nil guard
// disables limiting.
func rateLimitMiddleware(g *guard.Guard, next http.Handler) http.Handler {
	if g == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := g.CheckRateLimit(guard.ClientID(r)); err != nil {
			writeError(w, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// FormatListenURL turns a listen address such as ":9810" into a URL a
// local client can open.
func FormatListenURL(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://" + addr
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, port)
}
