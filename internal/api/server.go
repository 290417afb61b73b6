/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"sms-wallet-go/internal/models"
	"sms-wallet-go/internal/store"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wallet_http_requests_total",
		Help: "HTTP requests by route, method and status.",
	}, []string{"route", "method", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "wallet_http_request_duration_seconds",
		Help:    "HTTP request latency by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
)

type Server struct {
	store  store.LedgerStore
	router *mux.Router
	http   *http.Server
}

func NewServer(ledger store.LedgerStore, cfg models.ServerConfig) *Server {
	s := &Server{store: ledger, router: mux.NewRouter()}
	s.routes()

	s.http = &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) routes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.Use(s.instrument)

	api.HandleFunc("/accounts", s.handleCreateAccount).Methods(http.MethodPost)
	api.HandleFunc("/accounts", s.handleListAccounts).Methods(http.MethodGet)
	api.HandleFunc("/accounts/{id}", s.handleGetAccount).Methods(http.MethodGet)
	api.HandleFunc("/accounts/{id}/operations", s.handleListOperations).Methods(http.MethodGet)
	api.HandleFunc("/accounts/{id}/credit", s.handleCredit).Methods(http.MethodPost)

	api.HandleFunc("/freeze", s.handleFreeze).Methods(http.MethodPost)
	api.HandleFunc("/commit", s.handleCommit).Methods(http.MethodPost)
	api.HandleFunc("/refund", s.handleRefund).Methods(http.MethodPost)

	api.HandleFunc("/purchases/{kind}/{id}", s.handleGetPurchase).Methods(http.MethodGet)

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	zap.L().Info("Starting HTTP server", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	zap.L().Info("Shutting down HTTP server")
	return s.http.Shutdown(ctx)
}

// statusRecorder captures the response code for the metrics middleware.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(recorder, r)

		route := r.URL.Path
		if current := mux.CurrentRoute(r); current != nil {
			if template, err := current.GetPathTemplate(); err == nil {
				route = template
			}
		}
		httpRequestsTotal.WithLabelValues(route, r.Method, fmt.Sprintf("%d", recorder.status)).Inc()
		httpRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}
