// Copyright (c) 2026 Heerawalla
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package httpapi

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewMux wires the handler's routes onto a fresh ServeMux.
func NewMux(h *Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/inbound", h.ServeInbound)
	mux.HandleFunc("/contact-submit", h.ServeSubmit)
	mux.HandleFunc("/subscribe", h.ServeSubscribe)
	mux.HandleFunc("/unsubscribe", h.ServeUnsubscribe)
	mux.HandleFunc("/calendar/availability", h.ServeAvailability)
	mux.HandleFunc("/calendar/book", h.ServeBook)
	mux.HandleFunc("/catalog/", h.ServeCatalog)
	mux.HandleFunc("/health", h.ServeHealth)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// CORS wraps a handler with an origin allowlist for the browser-facing
// form routes. An empty allowlist disables cross-origin access.
func CORS(allowed []string, next http.Handler) http.Handler {
	allowedSet := map[string]bool{}
	for _, o := range allowed {
		allowedSet[o] = true
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && allowedSet[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Serve starts the API server on the given port. It binds the port
// immediately and signals readiness via the returned channel before
// accepting connections; the mail provider's webhook registration probes
// the endpoint as soon as it's configured.
func Serve(ctx context.Context, port int, h *Handler) (<-chan struct{}, error) {
	server := &http.Server{
		Handler: CORS(h.Config.AllowedOrigins, NewMux(h)),
	}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, fmt.Errorf("bind api port %d: %w", port, err)
	}

	ready := make(chan struct{})

	go func() {
		<-ctx.Done()
		slog.Info("api server shutting down")
		server.Close()
	}()

	go func() {
		slog.Info("api server listening", "port", port)
		close(ready)
		if err := server.Serve(ln); err != http.ErrServerClosed {
			slog.Error("api server error", "error", err)
		}
	}()

	return ready, nil
}
