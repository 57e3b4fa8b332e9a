package web

import (
	"bytes"
	"context"
	"embed"
	"html/template"
	"io/fs"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/seckatie/urlhealth/internal/core"
	"github.com/seckatie/urlhealth/internal/core/logo"
	"github.com/seckatie/urlhealth/internal/core/render"
	"github.com/seckatie/urlhealth/internal/core/view"
	"github.com/seckatie/urlhealth/internal/metrics"
)

//go:embed templates/*.html static/*.css static/*.svg
var templatesFS embed.FS

// Options configures a Server.
type Options struct {
	// Service is the monitoring API every session talks to.
	Service view.Service
	// Recorder counts dispatched actions; may be nil.
	Recorder view.Recorder
	// Logos resolves /logo/{host}; when nil rows link to LogoProvider.
	Logos        *logo.Resolver
	LogoProvider string
	// Metrics is served at /metrics when set.
	Metrics *metrics.Registry
	// Locale forces a display locale; empty negotiates from Accept-Language.
	Locale     string
	Location   *time.Location
	SessionTTL time.Duration
}

// Server is the dashboard web UI.
type Server struct {
	opts        Options
	templates   *template.Template
	staticFS    http.FileSystem
	defaultLogo []byte
	sessions    *sessionStore
	hub         *Hub
	logoURL     func(host string) string

	ctx    context.Context
	cancel context.CancelFunc
}

// StartServer serves the dashboard on addr until ctx is done or the
// listener fails.
func StartServer(ctx context.Context, addr string, ws *Server) {
	go ws.sessions.run(ctx)

	srv := &http.Server{Addr: addr, Handler: ws.Handler()}
	go func() {
		<-ctx.Done()
		ws.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Failed to shut down web server: %v", err)
		}
	}()

	log.Printf("Starting web server at %s", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Web server failed: %v", err)
	}
}

// NewServer parses the embedded templates and prepares the session store.
func NewServer(opts Options) (*Server, error) {
	templates, err := template.New("").ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	staticSub, err := fs.Sub(templatesFS, "static")
	if err != nil {
		return nil, err
	}

	defaultLogo, err := templatesFS.ReadFile("static/logo.svg")
	if err != nil {
		return nil, err
	}

	if opts.SessionTTL <= 0 {
		opts.SessionTTL = core.DefaultSessionTTL
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}

	logoURL := render.ProviderLogoURL(opts.LogoProvider)
	switch {
	case opts.Logos != nil:
		logoURL = func(host string) string { return "/logo/" + url.PathEscape(host) }
	case opts.LogoProvider == "":
		logoURL = render.ProviderLogoURL(core.DefaultLogoProvider)
	}

	ctx, cancel := context.WithCancel(context.Background())
	ws := &Server{
		opts:        opts,
		templates:   templates,
		staticFS:    http.FS(staticSub),
		defaultLogo: defaultLogo,
		sessions:    newSessionStore(opts.SessionTTL),
		hub:         newHub(),
		logoURL:     logoURL,
		ctx:         ctx,
		cancel:      cancel,
	}

	if opts.Metrics != nil {
		opts.Metrics.NewGaugeFunc("urlhealth_sessions", "Open dashboard sessions.", func() float64 {
			return float64(ws.sessions.len())
		})
		opts.Metrics.NewGaugeFunc("urlhealth_live_connections", "Open live panel connections.", func() float64 {
			return float64(ws.hub.Total())
		})
	}
	return ws, nil
}

// Close cancels in-flight actions of every session.
func (ws *Server) Close() {
	ws.cancel()
	ws.sessions.closeAll()
}

// Handler returns the dashboard's routes.
func (ws *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	ws.registerRoutes(mux)
	return mux
}

func (ws *Server) registerRoutes(mux *http.ServeMux) {
	ws.registerStaticRoutes(mux)

	mux.HandleFunc("/", ws.handleIndex)
	mux.HandleFunc("/sessions/", ws.handleSession) // Handles /sessions/{id}/{action}
	mux.HandleFunc("/logo/", ws.handleLogo)        // Handles /logo/{host}
	if ws.opts.Metrics != nil {
		mux.Handle("/metrics", ws.opts.Metrics.Handler())
	}
}

func (ws *Server) registerStaticRoutes(mux *http.ServeMux) {
	// Serve embedded static assets (CSS, default logo)
	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(ws.staticFS)))
}

// newSession creates a session for a page load and wires its store to the
// live hub.
func (ws *Server) newSession(r *http.Request) *session {
	locale := render.DefaultLocale()
	switch {
	case ws.opts.Locale != "":
		locale = render.MatchLocale(ws.opts.Locale)
	case r.Header.Get("Accept-Language") != "":
		locale = render.MatchLocale(r.Header.Get("Accept-Language"))
	}

	d := view.NewDispatcher(view.NewStore(), ws.opts.Service, ws.opts.Recorder)
	s := ws.sessions.create(ws.ctx, d, locale)

	id := s.id
	s.unsubscribe = d.Store().Subscribe(func(snap view.Snapshot) error {
		if ws.hub.Count(id) == 0 {
			return nil
		}
		msg, err := ws.renderPanel(s, snap, true)
		if err != nil {
			return err
		}
		ws.hub.Publish(id, snap.Version, msg)
		return nil
	})
	go func() {
		<-s.ctx.Done()
		ws.hub.closeSession(id)
	}()
	return s
}

// renderOptions returns the projection options for a session.
func (ws *Server) renderOptions(s *session) render.Options {
	return render.Options{
		Locale:   s.locale,
		Location: ws.opts.Location,
		LogoURL:  ws.logoURL,
	}
}

// renderPanel renders the panel fragment for snap. oob marks it for an
// out-of-band swap.
func (ws *Server) renderPanel(s *session, snap view.Snapshot, oob bool) ([]byte, error) {
	var buf bytes.Buffer
	if err := ws.templates.ExecuteTemplate(&buf, "panel", ws.pageFor(s, snap, oob)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (ws *Server) pageFor(s *session, snap view.Snapshot, oob bool) pageView {
	return pageView{
		SessionID: s.id,
		Lang:      s.locale.Tag.String(),
		Version:   snap.Version,
		Model:     render.Project(snap.State, snap.Drilldown, ws.renderOptions(s)),
		OOB:       oob,
	}
}
