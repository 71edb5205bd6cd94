// Package web serves the local display page of a room: it receives offer and
// answer links, shows the share link as a QR code, streams room snapshots over
// a WebSocket and exposes metrics.
package web

import (
	"context"
	_ "embed"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/1ureka/janken/internal/app"
	"github.com/1ureka/janken/internal/rules"
	"github.com/1ureka/janken/internal/util"
)

const timeout = 10 * time.Second

// Room is the part of *app.Room the page needs.
type Room interface {
	Consume(ctx context.Context, link string) error
	QRCode() ([]byte, error)
	Subscribe() (<-chan app.Snapshot, func())
	Select(hand rules.Hand) error
	StartNewGame() error
}

//go:embed page/index.html
var indexHTML []byte

//go:embed page/app.js
var appJS []byte

// Server is the display page of one room.
type Server struct {
	room Room
	ctx  context.Context
	mux  *httprouter.Router
}

// New builds the routes. ctx bounds background work started by requests,
// such as consuming an offer link.
func New(ctx context.Context, room Room) *Server {
	s := &Server{room: room, ctx: ctx, mux: httprouter.New()}

	s.mux.PanicHandler = func(w http.ResponseWriter, r *http.Request, i any) {
		util.LogError("panic serving %s: %v", r.URL.Path, i)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}

	s.mux.GET("/", s.serveIndex)
	s.mux.GET("/app.js", s.serveJS)
	s.mux.GET("/qr.png", s.serveQR)
	s.mux.GET("/ws", s.serveWS)
	s.mux.GET("/healthz", serveHealthCheck)
	s.mux.Handler(http.MethodGet, "/metrics", promhttp.HandlerFor(util.Registry, promhttp.HandlerOpts{}))

	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.mux,
		IdleTimeout:       10 * time.Minute,
		ReadHeaderTimeout: timeout,
	}

	errCh := make(chan error, 1)
	go func() {
		util.LogDebug("display page listening on http://%s/", ln.Addr())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)

	return nil
}

func securityHeaders(w http.ResponseWriter) {
	w.Header().Set("Referrer-Policy", "no-referrer")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Content-Security-Policy", "default-src 'self'; img-src 'self' data:")
	w.Header().Set("Cache-Control", "no-store")
}

// serveIndex shows the page. An offer or answer in the query is consumed in
// the background, then the browser is sent to the bare page so a refresh
// never replays the link.
func (s *Server) serveIndex(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	q := r.URL.Query()
	if q.Has("offer") || q.Has("answer") {
		link := "?" + r.URL.RawQuery
		go func() {
			if err := s.room.Consume(s.ctx, link); err != nil {
				util.LogWarning("could not use the opened link: %v", err)
			}
		}()

		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	securityHeaders(w)
	_, _ = w.Write(indexHTML)
}

func (s *Server) serveJS(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
	securityHeaders(w)
	_, _ = w.Write(appJS)
}

func (s *Server) serveQR(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	png, err := s.room.QRCode()
	if errors.Is(err, app.ErrNoInvitation) {
		http.Error(w, "no invitation yet", http.StatusNotFound)
		return
	}
	if err != nil {
		util.LogError("QR generation failed: %v", err)
		http.Error(w, "qr generation failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	securityHeaders(w)
	_, _ = w.Write(png)
}

func serveHealthCheck(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("Ok\n"))
}
