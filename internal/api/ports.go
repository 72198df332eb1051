package api

import "github.com/cpg-predict/cpgd/internal/audit"

// HelpPort provides the predictor's help/metadata document.
type HelpPort interface {
	Load() (map[string]interface{}, error)
}

// AuditPort records prediction request outcomes.
type AuditPort interface {
	LogPrediction(entry audit.Entry)
}
