package api

import (
	"fmt"
	"net/http"
)

func (a *RelayApp) errorHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				var panicError error
				switch e := err.(type) {
				case error:
					panicError = e
				default:
					panicError = fmt.Errorf("%v", e)
				}
				a.log.Printf("panic: %v", panicError)
				errResp := NewInternalServerError(panicError)
				w.Header().Set("Connection", "close")
				a.writeJson(w, errResp.StatusCode, errResp)
				return
			}
		}()

		next.ServeHTTP(w, r)
	})
}

// authMiddleware requires a valid identity token. Used for the lifecycle
// routes; the websocket route does its own, optional, check.
func (a *RelayApp) authMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tokenCookie, err := r.Cookie(tokenCookieKey)
		if err != nil {
			errResp := NewUnauthorizedError()
			a.writeJson(w, errResp.StatusCode, errResp)
			return
		}

		viewer, err := a.verifyToken(tokenCookie.Value)
		if err != nil {
			a.log.Printf("failed to verify token: %v", err)
			errResp := NewUnauthorizedError()
			a.writeJson(w, errResp.StatusCode, errResp)
			return
		}

		ctx := WithViewer(r.Context(), viewer)
		w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, private")

		next(w, r.WithContext(ctx))
	}
}
