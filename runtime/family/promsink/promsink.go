// Package promsink adapts the Sample Family Runtime's output families onto
// Prometheus client_golang collectors, so a running obsdsl process can
// expose its computed metrics directly on /metrics.
package promsink

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/viant/obsdsl/model"
)

// Sink publishes SampleFamily values as Prometheus gauges, lazily
// registering one GaugeVec per metric name on first observation. The label
// set of a GaugeVec is fixed at registration time, so every later sample
// for a name is expected to carry the same label keys — a reasonable
// assumption given a name is produced by exactly one compiled expression.
type Sink struct {
	registerer prometheus.Registerer
	mu         sync.Mutex
	gauges     map[string]*prometheus.GaugeVec
}

func New(registerer prometheus.Registerer) *Sink {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	return &Sink{registerer: registerer, gauges: map[string]*prometheus.GaugeVec{}}
}

// Observe publishes every sample in f under its family name, creating the
// backing GaugeVec on first use.
func (s *Sink) Observe(f model.SampleFamily) error {
	if f.IsEmpty() {
		return nil
	}
	labelKeys := f.Samples[0].Labels.Keys()
	gauge, err := s.gaugeFor(f.Name, labelKeys)
	if err != nil {
		return err
	}
	for _, sample := range f.Samples {
		values := make([]string, len(labelKeys))
		for i, k := range labelKeys {
			values[i], _ = sample.Labels.Get(k)
		}
		gauge.WithLabelValues(values...).Set(sample.Value)
	}
	return nil
}

func (s *Sink) gaugeFor(name string, labelKeys []string) (*prometheus.GaugeVec, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if g, ok := s.gauges[name]; ok {
		return g, nil
	}
	g := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: sanitizeMetricName(name),
		Help: "obsdsl compiled metric " + name,
	}, labelKeys)
	if err := s.registerer.Register(g); err != nil {
		return nil, err
	}
	s.gauges[name] = g
	return g, nil
}

// sanitizeMetricName rewrites an OAL/MAL metric name into a valid
// Prometheus identifier ([a-zA-Z_:][a-zA-Z0-9_:]*).
func sanitizeMetricName(name string) string {
	out := make([]byte, len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_', c == ':':
			out[i] = c
		default:
			out[i] = '_'
		}
	}
	return string(out)
}
