package model

import "time"

// Severity grades a quality exception.
type Severity string

const (
	SeverityLow    Severity = "LOW"
	SeverityMedium Severity = "MEDIUM"
	SeverityHigh   Severity = "HIGH"
)

// Rule identifies which data-quality rule an exception broke.
type Rule string

const (
	RuleUnknownProduct      Rule = "UNKNOWN_PRODUCT"
	RuleAbnormalDemandSpike Rule = "ABNORMAL_DEMAND_SPIKE"
	RuleImpossibleStock     Rule = "IMPOSSIBLE_STOCK"
	RuleMissingFile         Rule = "MISSING_FILE"
	RuleInvalidFormat       Rule = "INVALID_FORMAT"
	RulePackageNoncompliant Rule = "PACKAGE_NONCOMPLIANT"
	RulePipelineCrash       Rule = "PIPELINE_CRASH"
)

// QualityException is one appended entry in the guard's exception log.
// Never mutated after append.
type QualityException struct {
	Timestamp time.Time `json:"timestamp"`
	BatchDate string    `json:"batch_date"`
	Rule      Rule      `json:"rule_broken"`
	EntityID  string    `json:"entity_id"`
	Details   string    `json:"details"`
	Severity  Severity  `json:"severity"`
}
