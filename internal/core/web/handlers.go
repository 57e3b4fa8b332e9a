package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/seckatie/urlhealth/internal/core"
	"github.com/seckatie/urlhealth/internal/core/logo"
	"github.com/seckatie/urlhealth/internal/core/remote"
	"github.com/seckatie/urlhealth/internal/core/view"
)

// renderTemplate renders a template with the standard HTML content-type header.
// If template execution fails, it logs the error and returns a 500 response.
func (ws *Server) renderTemplate(w http.ResponseWriter, templateName string, data any) {
	var buf bytes.Buffer
	if err := ws.templates.ExecuteTemplate(&buf, templateName, data); err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		log.Printf("Failed to execute %s template: %v", templateName, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := buf.WriteTo(w); err != nil {
		log.Printf("Failed to write %s response: %v", templateName, err)
	}
}

// requireMethod checks if the request method matches the expected method.
// Returns true if the method matches, false otherwise (and sends 405 response).
func requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		w.Header().Set("Allow", method)
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// handleIndex starts a new session and renders the full page.
func (ws *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	s := ws.newSession(r)
	ws.renderTemplate(w, "index.html", ws.pageFor(s, s.store().Snapshot(), false))
}

// handleSession routes /sessions/{id}/{action}[/{arg}].
func (ws *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/sessions/"), "/")
	if len(parts) < 2 || parts[0] == "" {
		http.NotFound(w, r)
		return
	}

	s, ok := ws.sessions.get(parts[0])
	if !ok {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}

	switch action := parts[1]; {
	case action == "history" && len(parts) == 3 && parts[2] != "":
		ws.handleHistory(w, r, s, remote.URLID(parts[2]))
	case len(parts) != 2:
		http.NotFound(w, r)
	case action == "check":
		ws.handleCheck(w, r, s)
	case action == "all":
		ws.handleFetchAll(w, r, s)
	case action == "dismiss":
		ws.handleDismiss(w, r, s)
	case action == "panel":
		ws.handlePanel(w, r, s)
	case action == "state":
		ws.handleState(w, r, s)
	case action == "ws":
		ws.handleLive(w, r, s)
	default:
		http.NotFound(w, r)
	}
}

// handleCheck validates the submitted URLs and checks them.
func (ws *Server) handleCheck(w http.ResponseWriter, r *http.Request, s *session) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	in, err := s.dispatcher.CheckURLs(s.ctx, r.FormValue("urls"))
	if err != nil {
		// Rejected input is already reflected in the state.
		var verr *core.ValidationError
		if !errors.As(err, &verr) {
			log.Printf("Failed to dispatch check: %v", err)
		}
		ws.respondWithState(w, r, s)
		return
	}
	ws.awaitAndRespond(w, r, s, in)
}

// handleFetchAll loads every URL known to the service.
func (ws *Server) handleFetchAll(w http.ResponseWriter, r *http.Request, s *session) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	ws.awaitAndRespond(w, r, s, s.dispatcher.FetchAll(s.ctx))
}

// handleHistory loads the history of one URL.
func (ws *Server) handleHistory(w http.ResponseWriter, r *http.Request, s *session, id remote.URLID) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	ws.awaitAndRespond(w, r, s, s.dispatcher.ViewHistory(s.ctx, id))
}

// handleDismiss clears the error banner.
func (ws *Server) handleDismiss(w http.ResponseWriter, r *http.Request, s *session) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	s.store().Apply(view.ErrorDismissed{})
	ws.respondWithState(w, r, s)
}

// handlePanel renders the current panel fragment.
func (ws *Server) handlePanel(w http.ResponseWriter, r *http.Request, s *session) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	ws.renderTemplate(w, "panel", ws.pageFor(s, s.store().Snapshot(), false))
}

// handleState returns the current display model as JSON.
func (ws *Server) handleState(w http.ResponseWriter, r *http.Request, s *session) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	snap := s.store().Snapshot()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(ws.pageFor(s, snap, false).Model); err != nil {
		log.Printf("Failed to encode state: %v", err)
	}
}

// handleLive streams panel updates over a websocket.
func (ws *Server) handleLive(w http.ResponseWriter, r *http.Request, s *session) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	s.attach()
	defer s.detach(ws.sessions.now())

	snap := s.store().Snapshot()
	initial, err := ws.renderPanel(s, snap, true)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		log.Printf("Failed to render panel: %v", err)
		return
	}
	ws.hub.serve(w, r, s.id, snap.Version, initial)
}

// awaitAndRespond waits for an action to settle, or for the client to go
// away, and responds with the resulting state. A superseded action still
// renders the current state.
func (ws *Server) awaitAndRespond(w http.ResponseWriter, r *http.Request, s *session, in *view.Inflight) {
	select {
	case <-in.Done():
	case <-r.Context().Done():
		return
	}
	ws.respondWithState(w, r, s)
}

// respondWithState renders the panel for HTMX requests and the full page
// otherwise.
func (ws *Server) respondWithState(w http.ResponseWriter, r *http.Request, s *session) {
	page := ws.pageFor(s, s.store().Snapshot(), false)
	if isHTMX(r) {
		ws.renderTemplate(w, "panel", page)
		return
	}
	ws.renderTemplate(w, "index.html", page)
}

// logoCSP keeps a fetched logo inert when opened directly: an SVG from a
// third party must not run script on the dashboard's origin.
const logoCSP = "default-src 'none'; style-src 'unsafe-inline'; sandbox"

// handleLogo serves the logo of a host, falling back to the default logo.
func (ws *Server) handleLogo(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	w.Header().Set("Content-Security-Policy", logoCSP)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	host := strings.TrimPrefix(r.URL.Path, "/logo/")
	if host == "" || strings.Contains(host, "/") {
		http.NotFound(w, r)
		return
	}

	if ws.opts.Logos != nil {
		l, err := ws.opts.Logos.Resolve(r.Context(), host)
		switch {
		case err == nil:
			w.Header().Set("Content-Type", l.ContentType)
			w.Header().Set("Cache-Control", "public, max-age=3600")
			if _, err := w.Write(l.Data); err != nil {
				log.Printf("Failed to write logo for %s: %v", host, err)
			}
			return
		case errors.Is(err, logo.ErrInvalidHost):
			http.Error(w, "Invalid host", http.StatusBadRequest)
			return
		case !errors.Is(err, logo.ErrNotFound):
			log.Printf("Failed to resolve logo for %s: %v", host, err)
		}
	}

	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "public, max-age=300")
	if _, err := w.Write(ws.defaultLogo); err != nil {
		log.Printf("Failed to write default logo: %v", err)
	}
}
