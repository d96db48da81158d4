package model

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// LALRuleFile is the top-level YAML shape of an LAL rule file.
type LALRuleFile struct {
	Rules []LALRule `yaml:"rules" json:"rules"`
}

// LALRule is one named LAL rule. The DSL body is
// canonicalized (trimmed) before hashing so that whitespace-only edits to
// a rule file never change its compiled identity.
type LALRule struct {
	RuleName   string `yaml:"name" json:"ruleName"`
	DSL        string `yaml:"dsl" json:"dsl"`
	SourceFile string `yaml:"-" json:"-"`
}

// Canonical returns the trimmed DSL body used as the hash input.
func (r LALRule) Canonical() string {
	return strings.TrimSpace(r.DSL)
}

// Hash returns the stable SHA-256 hex digest identifying this rule's DSL
// body.
func (r LALRule) Hash() string {
	sum := sha256.Sum256([]byte(r.Canonical()))
	return hex.EncodeToString(sum[:])
}
