// Package webapp is the thin CRUD surface around the realtime core:
// accounts, friends, groups, devices and shares. Mutations that affect
// a connected principal push a notification through the registry.
package webapp

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"woofpack.dev/dogtracker/internal/auth"
	"woofpack.dev/dogtracker/internal/registry"
	"woofpack.dev/dogtracker/internal/store"
)

type API struct {
	st       store.Store
	auth     *auth.Auth
	reg      *registry.Registry
	validate *validator.Validate
	logger   zerolog.Logger
}

func New(st store.Store, a *auth.Auth, reg *registry.Registry, logger zerolog.Logger) *API {
	return &API{
		st:       st,
		auth:     a,
		reg:      reg,
		validate: validator.New(),
		logger:   logger.With().Str("module", "webapp").Logger(),
	}
}

type ctxKeyType struct{}

var ctxKeyUID ctxKeyType

func currentUser(r *http.Request) string {
	uid, _ := r.Context().Value(ctxKeyUID).(string)
	return uid
}

// Router assembles all routes. The websocket handler is mounted by the
// caller so this package stays transport-agnostic.
func (a *API) Router(wsHandler http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: false,
	}))

	r.Get("/health", a.health)
	r.Post("/signup", a.signUp)
	r.Post("/signin", a.signIn)
	r.Method(http.MethodGet, "/ws", wsHandler)

	r.Group(func(r chi.Router) {
		r.Use(a.requireAuth)

		r.Get("/friends", a.getFriends)
		r.Post("/friends", a.addFriend)
		r.Post("/friends/{uuid}/accept", a.acceptFriend)
		r.Delete("/friends/{uuid}", a.removeFriend)

		r.Get("/groups", a.getGroups)
		r.Post("/groups", a.createGroup)
		r.Delete("/groups/{id}", a.deleteGroup)
		r.Post("/groups/{id}/members", a.addGroupMember)
		r.Delete("/groups/{id}/members/{uuid}", a.removeGroupMember)

		r.Get("/devices", a.getDevices)
		r.Post("/devices", a.addDevice)
		r.Put("/devices/{imei}", a.updateDevice)
		r.Delete("/devices/{imei}", a.removeDevice)
		r.Post("/devices/{imei}/share", a.shareDevice)
		r.Delete("/devices/{imei}/share/{uuid}", a.unshareDevice)

		r.Group(func(r chi.Router) {
			r.Use(a.requireAdmin)
			r.Get("/admin/users", a.adminUsers)
			r.Get("/admin/devices", a.adminDevices)
		})
	})
	return r
}

func (a *API) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token := strings.TrimPrefix(header, "Bearer ")
		if header == "" || token == header {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		uid, ok := a.auth.Verify(token)
		if !ok {
			http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), ctxKeyUID, uid)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *API) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ok, err := a.st.IsAdmin(r.Context(), currentUser(r))
		if err != nil {
			a.serverError(w, err)
			return
		}
		if !ok {
			http.Error(w, "User does not have admin rights", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *API) serverError(w http.ResponseWriter, err error) {
	a.logger.Error().Err(err).Msg("internal error")
	http.Error(w, "Internal server error", http.StatusInternalServerError)
}

// storeError maps the common store sentinels onto HTTP statuses.
func (a *API) storeError(w http.ResponseWriter, err error, notFoundMsg string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		http.Error(w, notFoundMsg, http.StatusNotFound)
	case errors.Is(err, store.ErrConflict):
		http.Error(w, "Already exists", http.StatusBadRequest)
	default:
		a.serverError(w, err)
	}
}
