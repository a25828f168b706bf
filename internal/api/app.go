package api

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/websocket"
	"github.com/sekmet/corefans-relay/internal/config"
	"github.com/sekmet/corefans-relay/internal/relay"
)

// RelayApp is the HTTP surface the owning service talks to: room lifecycle
// plus the websocket upgrade route.
type RelayApp struct {
	log        *log.Logger
	relay      *relay.RelayServer
	signingKey []byte
	srv        *http.Server
	upgrader   websocket.Upgrader
}

func NewRelayApp(mux *http.ServeMux, logger *log.Logger, rs *relay.RelayServer, cfg *config.Config) *RelayApp {
	a := &RelayApp{
		log:        logger,
		relay:      rs,
		signingKey: cfg.SigningKey,
	}

	a.upgrader = websocket.Upgrader{
		CheckOrigin: allowedOriginChecker(cfg.AllowedOrigins),
	}

	mux.HandleFunc("POST /api/live/start", a.authMiddleware(a.startRoom))
	mux.HandleFunc("POST /api/live/stop", a.authMiddleware(a.stopRoom))
	mux.HandleFunc("GET /api/live", a.listLive)
	mux.HandleFunc("GET /ws", a.serveWs)

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept"}),
		handlers.AllowCredentials(),
	)(mux)

	h = a.errorHandler(h)

	a.srv = &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	return a
}

// allowedOriginChecker mirrors the CORS origin list for websocket upgrades.
// An empty list means any origin is accepted.
func allowedOriginChecker(origins []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		if len(origins) == 0 {
			return true
		}

		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}

		for _, o := range origins {
			if o == origin || o == "*" {
				return true
			}
		}

		return false
	}
}

func (a *RelayApp) Start() error {
	a.log.Printf("starting server on %s\n", a.srv.Addr)
	return a.srv.ListenAndServe()
}

func (a *RelayApp) Shutdown(ctx context.Context) error {
	a.log.Println("shutting down server...")
	if err := a.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}
