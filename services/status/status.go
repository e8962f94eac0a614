// Package status serves the local HTTP surface: Prometheus metrics, health
// derived from the loop state, and the last retained snapshot and config.
package status

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"envmon-go/bus"
	"envmon-go/log"
	"envmon-go/metrics"
	"envmon-go/services/config"
	"envmon-go/types"
)

// Cfg is used to initialize a Server.
type Cfg struct {
	Addr   string
	Bus    *bus.Bus
	Metric *metrics.Metrics
	Log    *logrus.Entry
}

type Server struct {
	addr   string
	bus    *bus.Bus
	metric *metrics.Metrics
	log    *logrus.Entry
	srv    *http.Server
}

func New(c *Cfg) *Server {
	s := &Server{
		addr:   c.Addr,
		bus:    c.Bus,
		metric: c.Metric,
		log:    c.Log.WithField("component", "status"),
	}
	r := mux.NewRouter()
	s.initRouter(r)
	s.srv = makeServerFromMux(r)
	s.srv.Addr = c.Addr
	return s
}

// Handler exposes the router; used by tests.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

func (s *Server) initRouter(r *mux.Router) {
	r.Handle("/metrics", s.metric.Handler()).Methods(http.MethodGet)
	r.Handle("/healthz", adapt(s.healthHandler, s.recoveryAdapter)).Methods(http.MethodGet)
	r.Handle("/snapshot", adapt(s.snapshotHandler, s.recoveryAdapter)).Methods(http.MethodGet)
	r.Handle("/config/{section}", adapt(s.configHandler, s.recoveryAdapter)).Methods(http.MethodGet)
}

func makeServerFromMux(r *mux.Router) *http.Server {
	return &http.Server{
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		IdleTimeout:  120 * time.Second,
		Handler:      r,
	}
}

// Run serves until ctx ends, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() {
		s.log.WithFields(logrus.Fields{"func": "Run", "event": log.EventSVCStarted, "addr": s.addr}).Info("status server listening")
		errc <- s.srv.ListenAndServe()
	}()
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return s.srv.Shutdown(sctx)
	}
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	m, ok := s.bus.Retained(types.TopicState("loop"))
	if !ok {
		s.writeJSON(w, http.StatusServiceUnavailable, types.ServiceState{Level: "idle", Status: "starting"})
		return
	}
	st, _ := m.Payload.(types.ServiceState)
	code := http.StatusOK
	if st.Level != "up" {
		code = http.StatusServiceUnavailable
	}
	s.writeJSON(w, code, st)
}

func (s *Server) snapshotHandler(w http.ResponseWriter, r *http.Request) {
	m, ok := s.bus.Retained(types.TopicSnapshot())
	if !ok {
		http.Error(w, "no snapshot yet", http.StatusNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, m.Payload)
}

func (s *Server) configHandler(w http.ResponseWriter, r *http.Request) {
	section := mux.Vars(r)["section"]
	m, ok := s.bus.Retained(config.TopicSection(section))
	if !ok {
		http.Error(w, "unknown section "+section, http.StatusNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, m.Payload)
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.WithFields(logrus.Fields{"func": "writeJSON"}).Errorf("%s", err)
	}
}

type adapter func(http.HandlerFunc) http.HandlerFunc

func adapt(hf http.HandlerFunc, adapters ...adapter) http.Handler {
	for _, adapter := range adapters {
		hf = adapter(hf)
	}
	return hf
}

func (s *Server) recoveryAdapter(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.log.WithFields(logrus.Fields{
					"func":  "recoveryAdapter",
					"event": log.EventPanic,
				}).Errorf("%v", rec)
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			}
		}()
		h.ServeHTTP(w, r)
	}
}
