// Copyright 2025 Blink Labs Software
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

package ledger

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type ledgerMetrics struct {
	height                  prometheus.Gauge
	blocksIngestedTotal     prometheus.Counter
	registrationsTotal      prometheus.Counter
	updatesTotal            prometheus.Counter
	validationFailuresTotal prometheus.Counter
	detachesTotal           prometheus.Counter
	mappingsDeletedTotal    prometheus.Counter
}

func (m *ledgerMetrics) init(promRegistry prometheus.Registerer) {
	promautoFactory := promauto.With(promRegistry)
	m.height = promautoFactory.NewGauge(prometheus.GaugeOpts{
		Name: "ledger_checkpoint_height",
		Help: "height of the last fully ingested block",
	})
	m.blocksIngestedTotal = promautoFactory.NewCounter(prometheus.CounterOpts{
		Name: "ledger_blocks_ingested_total",
		Help: "total number of blocks ingested",
	})
	m.registrationsTotal = promautoFactory.NewCounter(prometheus.CounterOpts{
		Name: "ledger_registrations_total",
		Help: "total number of fresh name registrations applied",
	})
	m.updatesTotal = promautoFactory.NewCounter(prometheus.CounterOpts{
		Name: "ledger_updates_total",
		Help: "total number of signed updates applied",
	})
	m.validationFailuresTotal = promautoFactory.NewCounter(
		prometheus.CounterOpts{
			Name: "ledger_validation_failures_total",
			Help: "total number of registrations rejected by validation",
		},
	)
	m.detachesTotal = promautoFactory.NewCounter(prometheus.CounterOpts{
		Name: "ledger_detaches_total",
		Help: "total number of detach operations",
	})
	m.mappingsDeletedTotal = promautoFactory.NewCounter(prometheus.CounterOpts{
		Name: "ledger_mappings_deleted_total",
		Help: "total number of mapping records removed by detaches",
	})
}
