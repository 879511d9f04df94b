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

// Package metrics exposes the relay's Prometheus counters.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// InboundRoutes counts classified inbound emails by resolved route.
	InboundRoutes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "atelier",
		Subsystem: "relay",
		Name:      "inbound_emails_total",
		Help:      "Inbound emails by classification route.",
	}, []string{"route"})

	// OutboundSends counts outbound dispatch attempts by kind and outcome.
	OutboundSends = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "atelier",
		Subsystem: "relay",
		Name:      "outbound_sends_total",
		Help:      "Outbound sends by message kind and outcome.",
	}, []string{"kind", "outcome"})

	// Submissions counts accepted website submissions by kind.
	Submissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "atelier",
		Subsystem: "relay",
		Name:      "submissions_total",
		Help:      "Accepted website submissions by kind.",
	}, []string{"kind"})
)

// CountSend records one outbound attempt.
func CountSend(kind string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	OutboundSends.WithLabelValues(kind, outcome).Inc()
}
