// Package site serves the embedded live board page. The page subscribes to
// /live/stream and redraws each entity as views arrive.
package site

import (
	"net/http"

	"github.com/gorilla/mux"
)

// Register attaches the board page and its assets to r.
// Routes:
//
//	GET /          -> board page
//	GET /assets/*  -> scripts and styles
func Register(r *mux.Router) {
	if r == nil {
		panic("router is nil")
	}

	root := NewRootHandler()
	r.HandleFunc("/", root.HandleRoot).Methods(http.MethodGet)
	r.PathPrefix("/assets/").Handler(http.FileServer(FS())).Methods(http.MethodGet)
}

// RootHandler serves the board page.
type RootHandler struct {
	files http.Handler
}

// NewRootHandler creates a new root handler.
func NewRootHandler() *RootHandler {
	return &RootHandler{files: http.FileServer(FS())}
}

// HandleRoot handles GET / requests.
func (h *RootHandler) HandleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-cache")
	h.files.ServeHTTP(w, r)
}
