package family

import (
	"testing"

	"github.com/viant/obsdsl/model"
)

func svcFamily(name string, pairs ...[2]string) model.SampleFamily {
	var samples []model.Sample
	for _, p := range pairs {
		samples = append(samples, model.Sample{
			Name:   name,
			Labels: model.NewLabels([2]string{"svc", p[0]}),
			Value:  atof(p[1]),
		})
	}
	return model.NewSampleFamily(name, samples)
}

func atof(s string) float64 {
	var v float64
	for _, c := range s {
		v = v*10 + float64(c-'0')
	}
	return v
}

func TestAggregateSum(t *testing.T) {
	f := svcFamily("calls", [2]string{"a", "1"}, [2]string{"a", "2"}, [2]string{"b", "3"})
	out := Aggregate(f, []string{"svc"}, Sum)
	if len(out.Samples) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(out.Samples))
	}
	total := map[string]float64{}
	for _, s := range out.Samples {
		svc, _ := s.Labels.Get("svc")
		total[svc] = s.Value
	}
	if total["a"] != 3 || total["b"] != 3 {
		t.Fatalf("unexpected sums: %+v", total)
	}
}

func TestBinaryOpScalarBroadcast(t *testing.T) {
	f := svcFamily("latency", [2]string{"a", "5"})
	result := BinaryOp("*", FamilyValue(f), Scalar(100))
	if len(result.Family.Samples) != 1 || result.Family.Samples[0].Value != 500 {
		t.Fatalf("expected broadcast result 500, got %+v", result.Family.Samples)
	}
}

func TestBinaryOpDivisionByZeroIsNaN(t *testing.T) {
	result := BinaryOp("/", Scalar(1), Scalar(0))
	if result.Scalar == result.Scalar {
		t.Fatalf("expected NaN, got %v", result.Scalar)
	}
}

func TestTagEqualFiltersMatchingSamples(t *testing.T) {
	f := svcFamily("calls", [2]string{"200", "1"}, [2]string{"500", "1"})
	out := TagEqual(f, "svc", "200")
	if len(out.Samples) != 1 {
		t.Fatalf("expected 1 sample, got %d", len(out.Samples))
	}
}

func TestDeriveRateTreatsCounterResetAsZeroDelta(t *testing.T) {
	cw := NewCounterWindow(0)
	labels := model.NewLabels([2]string{"svc", "a"})
	first := model.NewSampleFamily("hits", []model.Sample{{Name: "hits", Labels: labels, Value: 10, Timestamp: 0}})
	Derive(cw, Increase, first, "reset-test")

	second := model.NewSampleFamily("hits", []model.Sample{{Name: "hits", Labels: labels, Value: 5, Timestamp: 60000}})
	out := Derive(cw, Increase, second, "reset-test")
	if len(out.Samples) != 1 {
		t.Fatalf("expected 1 sample after reset, got %d", len(out.Samples))
	}
	if out.Samples[0].Value != 0 {
		t.Fatalf("expected reset delta to be zero, got %v", out.Samples[0].Value)
	}
}

func TestDeriveFirstObservationYieldsEmpty(t *testing.T) {
	cw := NewCounterWindow(0)
	labels := model.NewLabels([2]string{"svc", "a"})
	f := model.NewSampleFamily("hits", []model.Sample{{Name: "hits", Labels: labels, Value: 10, Timestamp: 0}})
	out := Derive(cw, Rate, f, "first-obs-test")
	if len(out.Samples) != 0 {
		t.Fatalf("expected no samples on first observation, got %d", len(out.Samples))
	}
}

func TestDeriveRateTreatsCounterResetAsZero(t *testing.T) {
	cw := NewCounterWindow(0)
	labels := model.NewLabels([2]string{"svc", "a"})
	first := model.NewSampleFamily("c", []model.Sample{{Name: "c", Labels: labels, Value: 10, Timestamp: 0}})
	Derive(cw, Rate, first, "rate-reset-test")

	second := model.NewSampleFamily("c", []model.Sample{{Name: "c", Labels: labels, Value: 5, Timestamp: 60000}})
	out := Derive(cw, Rate, second, "rate-reset-test")
	if len(out.Samples) != 1 {
		t.Fatalf("expected 1 sample, got %d", len(out.Samples))
	}
	if out.Samples[0].Value != 0.0 {
		t.Fatalf("expected rate('PT1M') across a counter reset to be 0.0, got %v", out.Samples[0].Value)
	}
}

func TestDeriveDiscardsOutOfOrderObservationAndCountsIt(t *testing.T) {
	cw := NewCounterWindow(0)
	labels := model.NewLabels([2]string{"svc", "a"})
	first := model.NewSampleFamily("c", []model.Sample{{Name: "c", Labels: labels, Value: 10, Timestamp: 60000}})
	Derive(cw, Rate, first, "ooo-test")

	before := cw.Discarded()
	stale := model.NewSampleFamily("c", []model.Sample{{Name: "c", Labels: labels, Value: 20, Timestamp: 30000}})
	out := Derive(cw, Rate, stale, "ooo-test")
	if len(out.Samples) != 0 {
		t.Fatalf("expected an out-of-order observation to produce no sample, got %d", len(out.Samples))
	}
	if got := cw.Discarded() - before; got != 1 {
		t.Fatalf("expected the discard counter to increment by 1, got %d", got)
	}

	// A subsequent in-order observation must still see the original entry,
	// proving the stale one was never applied.
	next := model.NewSampleFamily("c", []model.Sample{{Name: "c", Labels: labels, Value: 16, Timestamp: 66000}})
	out = Derive(cw, Rate, next, "ooo-test")
	if len(out.Samples) != 1 || out.Samples[0].Value != 1.0 {
		t.Fatalf("expected rate computed against the original entry (6 over 6s = 1.0), got %+v", out.Samples)
	}
}

func TestHistogramPercentileLinearInterpolation(t *testing.T) {
	samples := []model.Sample{
		{Name: "h", Labels: bucketLabels("50"), Value: 5},
		{Name: "h", Labels: bucketLabels("100"), Value: 10},
	}
	f := model.NewSampleFamily("h", samples)
	out := HistogramPercentile(f, []int{50})
	if len(out.Samples) != 1 {
		t.Fatalf("expected 1 output sample, got %d", len(out.Samples))
	}
	// target = 0.5 * total(10) = 5, which lands exactly at the first
	// bucket's cumulative count, so the interpolated value is its bound.
	if out.Samples[0].Value != 50 {
		t.Fatalf("expected interpolated value 50, got %v", out.Samples[0].Value)
	}
	if p, ok := out.Samples[0].Labels.Get("p"); !ok || p != "50" {
		t.Fatalf("expected the percentile label key to be \"p\", got %+v", out.Samples[0].Labels)
	}
}

func bucketLabels(bound string) model.Labels {
	return model.NewLabels([2]string{"le", bound})
}
