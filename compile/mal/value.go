package mal

import (
	"fmt"
	"strconv"

	"github.com/viant/obsdsl/model"
)

// record is the dynamic, mutable binding a closure parameter is given when
// it stands for a label set or an extracted log record (e.g. `tags` in
// `{tags -> tags.ok = 'true'}`, or `parsed` in `parsed.code`). Values are
// whatever the enclosing record produced: string, float64, bool, or a
// nested record.
type record map[string]interface{}

func recordFromLabels(l model.Labels) record {
	r := make(record, l.Len())
	for _, k := range l.Keys() {
		v, _ := l.Get(k)
		r[k] = v
	}
	return r
}

func labelsFromRecord(r record) model.Labels {
	out := model.Labels{}
	for k, v := range r {
		out.Set(k, fmt.Sprint(v))
	}
	return out
}

func labelsFromValue(v interface{}) model.Labels {
	switch t := v.(type) {
	case record:
		return labelsFromRecord(t)
	case model.Labels:
		return t
	default:
		return model.Labels{}
	}
}

func boolOf(v interface{}) bool {
	switch t := v.(type) {
	case bool:
		return t
	case nil:
		return false
	case float64:
		return t != 0
	case string:
		return t != ""
	default:
		return true
	}
}

func floatOf(v interface{}) (float64, bool) {
	if f, ok := v.(float64); ok {
		return f, true
	}
	// Label and record values always come back as strings; relational
	// comparisons against them (e.g. `status > 400`) are common enough in
	// OAL/LAL filters that a numeric-looking string is accepted here too.
	if s, ok := v.(string); ok {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

func stringOf(v interface{}) (string, bool) {
	s, ok := v.(string)
	return s, ok
}
