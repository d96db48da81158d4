package model

// ConfigDataDocument is the persisted shape of one config-data/<path>.json
// file: enough of one rule file's data to reconstruct its compiled
// artifacts at load time without re-reading the original DSL source from
// disk.
type ConfigDataDocument struct {
	OAL *OALFile      `json:"oal,omitempty"`
	MAL *MALRuleGroup `json:"mal,omitempty"`
	LAL *LALRuleFile  `json:"lal,omitempty"`
}

// MALRuleGroup is one MAL rule file's persisted data: the rule-level
// composition settings plus its metric expressions.
type MALRuleGroup struct {
	Rule MetricRule `json:"rule"`
}
