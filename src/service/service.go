package service

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/mosaicnetworks/reload/src/topology"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Node is the part of node.Node the service reads.
type Node interface {
	GetStats() map[string]string
	Snapshot() topology.Snapshot
}

// Service ...
type Service struct {
	sync.Mutex

	bindAddress string
	node        Node
	gatherer    prometheus.Gatherer
	mux         *http.ServeMux
	server      *http.Server
	logger      *logrus.Entry
}

// NewService ... A nil gatherer leaves /metrics unregistered.
func NewService(bindAddress string, n Node, gatherer prometheus.Gatherer, logger *logrus.Entry) *Service {
	service := Service{
		bindAddress: bindAddress,
		node:        n,
		gatherer:    gatherer,
		mux:         http.NewServeMux(),
		logger:      logger,
	}

	service.registerHandlers()

	service.server = &http.Server{
		Addr:    bindAddress,
		Handler: service.mux,
	}

	return &service
}

// registerHandlers registers the API handlers with the service's own mux, so
// that several nodes can run in the same process.
func (s *Service) registerHandlers() {
	s.logger.Debug("Registering API handlers")
	s.mux.HandleFunc("/stats", s.makeHandler(s.GetStats))
	s.mux.HandleFunc("/topology", s.makeHandler(s.GetTopology))
	if s.gatherer != nil {
		s.mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
}

func (s *Service) makeHandler(fn func(http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.Lock()
		defer s.Unlock()

		// enable CORS
		w.Header().Set("Access-Control-Allow-Origin", "*")

		fn(w, r)
	}
}

// Handler returns the handler serving the API.
func (s *Service) Handler() http.Handler {
	return s.mux
}

// Serve calls ListenAndServe. This is a blocking call that returns when the
// service is closed.
func (s *Service) Serve() {
	s.logger.WithField("bind_address", s.bindAddress).Debug("Serving API")

	err := s.server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		s.logger.Error(err)
	}
}

// Close stops the server started by Serve.
func (s *Service) Close() error {
	return s.server.Shutdown(context.Background())
}

// GetStats ...
func (s *Service) GetStats(w http.ResponseWriter, r *http.Request) {
	stats := s.node.GetStats()

	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(stats)
}

// GetTopology returns the routing tables of the node.
func (s *Service) GetTopology(w http.ResponseWriter, r *http.Request) {
	snap := s.node.Snapshot()

	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(snap)
}
