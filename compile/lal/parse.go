package lal

import (
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/viant/obsdsl/lang/lal"
)

// parseRecord applies a LAL ParseSpec to one raw log line, producing the
// dynamic record later extractor statements reference as `parsed.*`
//.
func parseRecord(spec *lal.ParseSpec, raw string) (map[string]interface{}, error) {
	if spec == nil {
		return map[string]interface{}{"raw": raw}, nil
	}
	switch spec.Kind {
	case "json":
		var out map[string]interface{}
		if err := json.Unmarshal([]byte(raw), &out); err != nil {
			return nil, fmt.Errorf("lal: json parse: %w", err)
		}
		return out, nil
	case "text":
		re, err := regexp.Compile(spec.Regexp)
		if err != nil {
			return nil, fmt.Errorf("lal: invalid regexp %q: %w", spec.Regexp, err)
		}
		match := re.FindStringSubmatch(raw)
		if match == nil {
			return nil, fmt.Errorf("lal: line did not match parse regexp")
		}
		out := map[string]interface{}{}
		for i, name := range re.SubexpNames() {
			if name == "" || i >= len(match) {
				continue
			}
			out[name] = match[i]
		}
		return out, nil
	default:
		return nil, fmt.Errorf("lal: unsupported parse kind %q", spec.Kind)
	}
}
