// Package admin serves operator endpoints (metrics and pprof) on a port
// separate from the public API.
package admin

import (
	"context"
	"fmt"
	"net/http"
	"net/http/pprof"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// profiles lists the pprof handlers served by default. Each can be toggled
// with PPROF_<NAME>=yes|no.
var profiles = map[string]bool{
	"allocs":       true,
	"block":        true,
	"cmdline":      true,
	"goroutine":    true,
	"heap":         true,
	"mutex":        true,
	"profile":      true,
	"threadcreate": false,
	"trace":        false,
}

// Server is the admin HTTP listener.
type Server struct {
	svc *http.Server
}

// NewServer configures block and mutex profiling and returns a server
// listening on port.
func NewServer(port int) *Server {
	if profileEnabled("block", profiles["block"]) {
		runtime.SetBlockProfileRate(1)
	}
	if profileEnabled("mutex", profiles["mutex"]) {
		runtime.SetMutexProfileFraction(1)
	}

	timeout := 45 * time.Second
	return &Server{
		svc: &http.Server{
			Addr:         fmt.Sprintf(":%d", port),
			Handler:      Handler(),
			ReadTimeout:  timeout,
			WriteTimeout: timeout,
			IdleTimeout:  timeout,
		},
	}
}

func (s *Server) BindAddress() string {
	return s.svc.Addr
}

// Listen blocks until the server stops.
func (s *Server) Listen() error {
	if err := s.svc.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.svc.Shutdown(ctx)
}

// Handler routes /metrics and the enabled /debug/pprof endpoints.
func Handler() http.Handler {
	r := mux.NewRouter()
	r.Methods(http.MethodGet).Path("/metrics").Handler(promhttp.Handler())
	r.Methods(http.MethodGet).Path("/live").HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.HandleFunc("/debug/pprof/", pprof.Index)
	r.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	for name, def := range profiles {
		if !profileEnabled(name, def) {
			continue
		}
		r.Handle("/debug/pprof/"+name, profileHandler(name))
	}
	return r
}

// profileHandler maps the endpoints that are not runtime/pprof profiles to
// their net/http/pprof functions.
func profileHandler(name string) http.Handler {
	switch name {
	case "cmdline":
		return http.HandlerFunc(pprof.Cmdline)
	case "profile":
		return http.HandlerFunc(pprof.Profile)
	case "trace":
		return http.HandlerFunc(pprof.Trace)
	}
	return pprof.Handler(name)
}

func profileEnabled(name string, def bool) bool {
	switch strings.ToLower(os.Getenv("PPROF_" + strings.ToUpper(name))) {
	case "yes":
		return true
	case "no":
		return false
	}
	return def
}
