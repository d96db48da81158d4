package model

import (
	"bytes"
	"encoding/json"
	"sort"
)

// CanonicalJSON serializes v with object keys sorted lexicographically and
// 2-space indentation, so that byte-identical manifests are produced from
// identical inputs.
//
// encoding/json already sorts map[string]any keys; the one gap is that it
// does not re-order struct fields (Go struct field order is already
// deterministic at compile time, so that is not a problem) nor does it sort
// arbitrary map[string]interface{} nested inside a decoded-then-reencoded
// document. We cover that gap by round-tripping through a generic value
// and re-marshaling with sorted keys everywhere, which handles both cases
// uniformly.
func CanonicalJSON(v interface{}) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := encodeCanonical(&buf, generic, ""); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeCanonical(buf *bytes.Buffer, v interface{}, indent string) error {
	switch val := v.(type) {
	case map[string]interface{}:
		if len(val) == 0 {
			buf.WriteString("{}")
			return nil
		}
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		childIndent := indent + "  "
		buf.WriteString("{\n")
		for i, k := range keys {
			buf.WriteString(childIndent)
			kb, _ := json.Marshal(k)
			buf.Write(kb)
			buf.WriteString(": ")
			if err := encodeCanonical(buf, val[k], childIndent); err != nil {
				return err
			}
			if i < len(keys)-1 {
				buf.WriteString(",")
			}
			buf.WriteString("\n")
		}
		buf.WriteString(indent)
		buf.WriteString("}")
	case []interface{}:
		if len(val) == 0 {
			buf.WriteString("[]")
			return nil
		}
		childIndent := indent + "  "
		buf.WriteString("[\n")
		for i, item := range val {
			buf.WriteString(childIndent)
			if err := encodeCanonical(buf, item, childIndent); err != nil {
				return err
			}
			if i < len(val)-1 {
				buf.WriteString(",")
			}
			buf.WriteString("\n")
		}
		buf.WriteString(indent)
		buf.WriteString("]")
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return err
		}
		buf.Write(b)
	}
	return nil
}
