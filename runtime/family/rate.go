package family

import (
	"time"

	"github.com/viant/obsdsl/model"
)

// RateKind selects which of the three counter derivatives to compute.
type RateKind int

const (
	Rate RateKind = iota
	Increase
	IRate
)

// seriesKey identifies one counter series across calls. discriminator lets
// tests isolate a CounterWindow instance per case without a fresh window.
func seriesKey(metricName string, labels model.Labels, discriminator string) string {
	if discriminator == "" {
		return metricName + "|" + labels.SortKey()
	}
	return discriminator + "|" + metricName + "|" + labels.SortKey()
}

// Derive computes rate/increase/irate over a monotonically-increasing
// counter family. The first observation of any series yields no output
// sample (there is no baseline yet); this is the EMPTY case.
// A value lower than the previous observation is treated as a counter
// reset: the delta for that step is taken as zero, never as a negative
// number.
//
// Without a buffered time range, rate and irate reduce to the same
// last-two-observations delta; increase skips the time normalization.
func Derive(cw *CounterWindow, kind RateKind, f model.SampleFamily, discriminator string) model.SampleFamily {
	now := time.Now()
	out := make([]model.Sample, 0, len(f.Samples))
	for _, s := range f.Samples {
		key := seriesKey(f.Name, s.Labels, discriminator)
		prev, had, accepted := cw.observe(key, s.Value, s.Timestamp, now)
		if !had || !accepted {
			continue
		}
		delta := s.Value - prev.value
		if delta < 0 {
			delta = 0
		}
		elapsedSec := float64(s.Timestamp-prev.timestamp) / 1000.0
		var value float64
		switch kind {
		case Increase:
			value = delta
		default: // Rate, IRate
			if elapsedSec <= 0 {
				continue
			}
			value = delta / elapsedSec
		}
		out = append(out, model.Sample{Name: s.Name, Labels: s.Labels, Value: value, Timestamp: s.Timestamp})
	}
	return model.SampleFamily{Name: f.Name, Samples: out, Scope: f.Scope}
}
