// Package api is the HTTP surface of the realtime core: the kanban board
// mutations that trigger broadcasts, a simple message-history cursor and a
// presence probe. Everything under /v1 requires a bearer token.
package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"collabd/pkg/auth"
	"collabd/pkg/kanban"
	"collabd/pkg/models"
	"collabd/pkg/presence"
	"collabd/pkg/store"
	"collabd/pkg/utils"
)

type API struct {
	gateway  *auth.Gateway
	store    store.Store
	kanban   *kanban.Service
	presence *presence.Registry
}

func New(gw *auth.Gateway, st store.Store, kb *kanban.Service, pr *presence.Registry) *API {
	return &API{gateway: gw, store: st, kanban: kb, presence: pr}
}

type ctxUserKey struct{}

func userFrom(ctx context.Context) models.User {
	u, _ := ctx.Value(ctxUserKey{}).(models.User)
	return u
}

// requireUser authenticates the bearer token and injects the user into the
// request context.
func (a *API) requireUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, err := a.gateway.FromBearer(r)
		if err != nil {
			utils.JSONError(w, http.StatusUnauthorized, "invalid or missing token")
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), ctxUserKey{}, u)))
	}
}

// Router builds the full route table.
func (a *API) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}).Methods(http.MethodGet)

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/boards/{board}/columns", a.requireUser(a.listColumns)).Methods(http.MethodGet)
	v1.HandleFunc("/boards/{board}/columns", a.requireUser(a.createColumn)).Methods(http.MethodPost)
	v1.HandleFunc("/boards/{board}/columns/{column}", a.requireUser(a.renameColumn)).Methods(http.MethodPatch)
	v1.HandleFunc("/boards/{board}/columns/{column}", a.requireUser(a.deleteColumn)).Methods(http.MethodDelete)
	v1.HandleFunc("/boards/{board}/columns/{column}/reorder", a.requireUser(a.reorderColumn)).Methods(http.MethodPost)
	v1.HandleFunc("/chats/{kind}/{chat}/messages", a.requireUser(a.listMessages)).Methods(http.MethodGet)
	v1.HandleFunc("/users/{user}/online", a.requireUser(a.userOnline)).Methods(http.MethodGet)
	return r
}
