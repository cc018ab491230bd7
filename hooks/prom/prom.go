// Package promhooks exports assetcache.Hooks events as Prometheus metrics.
package promhooks

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/unkn0wn-root/assetcache"
)

type Hooks struct {
	states       *prometheus.CounterVec
	selected     *prometheus.CounterVec
	propagation  *prometheus.CounterVec
	aborted      prometheus.Counter
	removeFailed *prometheus.CounterVec
	copyFailed   *prometheus.CounterVec
	inflight     prometheus.Gauge
}

var _ assetcache.Hooks = (*Hooks)(nil)

// New registers the collectors on reg under namespace.
func New(reg prometheus.Registerer, namespace string) (*Hooks, error) {
	h := &Hooks{
		states: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "request_states_total",
			Help: "Request state transitions.",
		}, []string{"state"}),
		selected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "reads_total",
			Help: "Reads by serving backend class; class=none for misses.",
		}, []string{"class"}),
		propagation: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "propagation_failures_total",
			Help: "Failed cache writes during propagation.",
		}, []string{"backend"}),
		aborted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "fetches_aborted_total",
			Help: "Fetches cancelled by their listener.",
		}),
		removeFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "remove_failures_total",
			Help: "Per-backend removal failures.",
		}, []string{"backend"}),
		copyFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "copy_failures_total",
			Help: "Ids CopyAssets could not transfer.",
		}, []string{"reason"}),
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "requests_inflight",
			Help: "Requests between Pending and a terminal state.",
		}),
	}
	for _, c := range []prometheus.Collector{
		h.states, h.selected, h.propagation, h.aborted, h.removeFailed, h.copyFailed, h.inflight,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return h, nil
}

func (h *Hooks) StateChanged(_ string, s assetcache.State) {
	h.states.WithLabelValues(s.String()).Inc()
	switch s {
	case assetcache.StatePending:
		h.inflight.Inc()
	case assetcache.StateCompleted, assetcache.StateAborted:
		h.inflight.Dec()
	}
}

func (h *Hooks) BackendSelected(_ string, class assetcache.Class, _ int, hit bool) {
	label := "none"
	if hit {
		label = class.String()
	}
	h.selected.WithLabelValues(label).Inc()
}

func (h *Hooks) PropagationFailed(_, backend string, _ error) {
	h.propagation.WithLabelValues(backend).Inc()
}

func (h *Hooks) FetchAborted(string) { h.aborted.Inc() }

func (h *Hooks) RemoveFailed(_, backend string, _ error) {
	h.removeFailed.WithLabelValues(backend).Inc()
}

func (h *Hooks) CopyFailed(_, reason string, _ error) {
	h.copyFailed.WithLabelValues(reason).Inc()
}
