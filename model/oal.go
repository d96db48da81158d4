package model

// OALFilter is one `filter Field op literal` clause trailing an OAL
// statement.
type OALFilter struct {
	Field string
	Op    string // one of "==", "!=", ">", ">=", "<", "<="
	Value string
}

// OALStatement is one parsed `metric = from(Source.field).func(args)
// [filter ...]` line.
type OALStatement struct {
	MetricName string
	Source     string
	Field      string
	Function   string
	Args       []string
	Filters    []OALFilter
	SourceFile string
	Line       int
}

// OALFile is the parsed result of one OAL script file: its statements in
// definition order, plus the set of sources named in `disable` lines
//.
type OALFile struct {
	Path       string
	Statements []OALStatement
	Disabled   []string
}
