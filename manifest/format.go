package manifest

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
)

// lineList renders one string per line, sorted, with a trailing newline —
// the shape of oal-metrics-classes.txt, oal-dispatcher-classes.txt,
// oal-disabled-sources.txt, mal-expressions.txt, annotation-scan/<Kind>.txt.
func lineList(values []string) []byte {
	sorted := append([]string(nil), values...)
	sort.Strings(sorted)
	var buf bytes.Buffer
	for _, v := range sorted {
		buf.WriteString(v)
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// keyValueList renders `key=value` pairs, one per line, sorted by key —
// the shape of mal-meter-classes.txt, mal-groovy-expression-hashes.txt,
// lal-scripts.txt, lal-expressions.txt, annotation-scan/MeterFunction.txt.
func keyValueList(pairs map[string]string) []byte {
	keys := make([]string, 0, len(pairs))
	for k := range pairs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var buf bytes.Buffer
	for _, k := range keys {
		fmt.Fprintf(&buf, "%s=%s\n", k, pairs[k])
	}
	return buf.Bytes()
}

// properties renders a Java-Properties-style file. It is byte-identical in
// shape to keyValueList; the distinct name exists because
// mal-filter-expressions.properties is called out as its own format, and a dedicated
// formatter keeps "one output file, one formatter" auditable even though
// the rendering happens to coincide today.
func properties(pairs map[string]string) []byte {
	return keyValueList(pairs)
}

// escapePropertyKey is applied to filter literals before they are used as
// property keys, since a raw MAL closure literal contains '=' and ':'
// characters that would otherwise be ambiguous in Properties format.
func escapePropertyKey(s string) string {
	r := strings.NewReplacer("=", "\\=", ":", "\\:", "\n", "\\n", " ", "\\ ")
	return r.Replace(s)
}
