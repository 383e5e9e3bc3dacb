package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/grakai/pitchside/internal/auth"
	"github.com/grakai/pitchside/internal/log"
	"github.com/grakai/pitchside/internal/model"
)

const (
	tokenCookie    = "token"
	xsrfHeader     = "x-xsrf-token"
	xsrfQueryParam = "xsrftoken"
	allowedHeaders = "Content-Type, X-XSRF-Token"
	allowedMethods = "GET, POST, OPTIONS"
)

type identityKeyType int

const identityKey identityKeyType = 0

// IdentityFromContext returns the authenticated identity of the request.
func IdentityFromContext(ctx context.Context) (*model.Identity, bool) {
	id, ok := ctx.Value(identityKey).(*model.Identity)
	return id, ok
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Credentials are cookies so the origin is echoed instead of using a wildcard.
		origin := r.Header.Get("Origin")
		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Add("Vary", "Origin")
		} else {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}
		w.Header().Set("Access-Control-Allow-Headers", allowedHeaders)
		w.Header().Set("Access-Control-Allow-Methods", allowedMethods)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// authenticate requires the session token cookie and the anti-forgery token. Event
// streams can't set headers, so the anti-forgery token is also accepted as a query param.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		xsrf := r.Header.Get(xsrfHeader)
		if xsrf == "" {
			xsrf = r.URL.Query().Get(xsrfQueryParam)
		}
		var token string
		if c, err := r.Cookie(tokenCookie); err == nil {
			token = c.Value
		}
		if token == "" || xsrf == "" {
			writeErr(w, http.StatusBadRequest, errors.New("missing XSRF token or token"))
			return
		}

		id, err := s.verifier.Verify(token, xsrf)
		if err != nil {
			s.logger.WithCtxValues(r.Context()).Warningf("Token verification failed: %s", err)
			if errors.Is(err, auth.ErrTokenExpired) {
				writeErr(w, http.StatusUnauthorized, errors.New("token expired"))
				return
			}
			writeErr(w, http.StatusUnauthorized, errors.New("invalid token"))
			return
		}

		ctx := context.WithValue(r.Context(), identityKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		ctx := s.logger.SetValuesOnCtx(r.Context(), log.Kv{"request-id": middleware.GetReqID(r.Context())})

		next.ServeHTTP(ww, r.WithContext(ctx))

		s.logger.WithCtxValues(ctx).Debugf("%s %s %d %dB %s", r.Method, r.URL.Path, ww.Status(), ww.BytesWritten(), time.Since(start))
	})
}
