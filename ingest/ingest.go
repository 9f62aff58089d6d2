// Package ingest is the HTTP surface external collectors feed cluster state
// and journal updates through. Writes go into the shoot registry and the
// journal store; fan-out to connected clients happens through the regular
// watch feeds, never directly from here.
package ingest

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gardenhub/shoot-events/globals"
	"github.com/gardenhub/shoot-events/shoots"
	"github.com/gardenhub/shoot-events/types"
	"github.com/gorilla/mux"
)

// CommentStore persists ingested comments.
type CommentStore interface {
	StoreComment(ctx context.Context, comment types.Comment) error
}

// EventPublisher pushes a change event into the journal watch feed.
type EventPublisher interface {
	Publish(event types.WatchEvent)
}

type Handler struct {
	token    string
	shoots   *shoots.Store
	comments CommentStore
	events   EventPublisher
}

func NewHandler(token string, shootStore *shoots.Store, comments CommentStore, events EventPublisher) *Handler {
	return &Handler{
		token:    token,
		shoots:   shootStore,
		comments: comments,
		events:   events,
	}
}

func (h *Handler) Register(router *mux.Router) {
	router.HandleFunc("/api/ingest/shoots", h.authorized(h.applyShoot)).Methods(http.MethodPut)
	router.HandleFunc("/api/ingest/shoots/{namespace}/{name}", h.authorized(h.deleteShoot)).Methods(http.MethodDelete)
	router.HandleFunc("/api/ingest/comments", h.authorized(h.applyComment)).Methods(http.MethodPut)
}

// authorized gates every ingestion route behind the static bearer token. An
// empty configured token keeps the routes registered but rejects everything.
func (h *Handler) authorized(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.token == "" || r.Header.Get("Authorization") != "Bearer "+h.token {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (h *Handler) applyShoot(w http.ResponseWriter, r *http.Request) {
	shoot := types.Shoot{}
	if err := json.NewDecoder(r.Body).Decode(&shoot); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if shoot.Metadata.Namespace == "" || shoot.Metadata.Name == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if err := h.shoots.Apply(shoot); err != nil {
		globals.AppLogger.Error("could not apply shoot", "namespace", shoot.Metadata.Namespace, "name", shoot.Metadata.Name, "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) deleteShoot(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	h.shoots.Delete(vars["namespace"], vars["name"])
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) applyComment(w http.ResponseWriter, r *http.Request) {
	comment := types.Comment{}
	if err := json.NewDecoder(r.Body).Decode(&comment); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if comment.Id == 0 || comment.Number == 0 {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if err := h.comments.StoreComment(r.Context(), comment); err != nil {
		globals.AppLogger.Error("could not store comment", "issue", comment.Number, "comment", comment.Id, "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	h.events.Publish(types.WatchEvent{Type: types.WatchEventAdded, Object: comment})
	w.WriteHeader(http.StatusNoContent)
}
