// Package classify infers whether an uploaded dataset describes projects,
// a yearly financial projection, both, or neither.
package classify

import (
	"strings"

	"portfolio_ingest/pkg/models"
)

// Vocabulary is the set of header terms that signal one data shape.
type Vocabulary []string

// DefaultProjectVocabulary and DefaultFinancialVocabulary are the term lists
// used when no tables file overrides them.
var (
	DefaultProjectVocabulary   = Vocabulary{"name", "type", "country", "capacity", "investment", "equity", "revenue", "ebitda"}
	DefaultFinancialVocabulary = Vocabulary{"year", "revenue", "cost", "ebitda", "profit", "cashflow"}
)

// Classifier matches header names against the two vocabularies.
type Classifier struct {
	project   Vocabulary
	financial Vocabulary
}

// Result explains a classification.
type Result struct {
	Kind             models.DataStructureKind `json:"kind"`
	Headers          []string                 `json:"headers"`
	ProjectMatches   []string                 `json:"projectMatches"`
	FinancialMatches []string                 `json:"financialMatches"`
	SharedOnlyMatch  bool                     `json:"sharedOnlyMatch"` // only terms common to both vocabularies matched
}

// NewClassifier builds a classifier; empty vocabularies fall back to the defaults.
func NewClassifier(project, financial Vocabulary) *Classifier {
	if len(project) == 0 {
		project = DefaultProjectVocabulary
	}
	if len(financial) == 0 {
		financial = DefaultFinancialVocabulary
	}
	return &Classifier{project: project, financial: financial}
}

// Classify returns the structure kind for rows.
func (c *Classifier) Classify(rows []models.RawRow) models.DataStructureKind {
	return c.Explain(rows).Kind
}

// Explain classifies rows and reports the matching terms. Header names come
// from the first row and are matched case-insensitively by substring.
//
// A vocabulary is present when one of its own terms matches; terms listed in
// both vocabularies (revenue, ebitda) cannot make either one present, so a
// file with only those columns is Unknown.
func (c *Classifier) Explain(rows []models.RawRow) Result {
	if len(rows) == 0 {
		return Result{Kind: models.StructureUnknown}
	}

	headers := rows[0].Headers
	shared := intersect(c.project, c.financial)

	projectMatches := matchedTerms(c.project, headers)
	financialMatches := matchedTerms(c.financial, headers)

	hasProject := containsDistinct(projectMatches, shared)
	hasFinancial := containsDistinct(financialMatches, shared)

	res := Result{
		Headers:          headers,
		ProjectMatches:   projectMatches,
		FinancialMatches: financialMatches,
	}

	switch {
	case hasProject && hasFinancial:
		res.Kind = models.StructureMixed
	case hasProject:
		res.Kind = models.StructureProjects
	case hasFinancial:
		res.Kind = models.StructureFinancials
	default:
		res.Kind = models.StructureUnknown
		res.SharedOnlyMatch = len(projectMatches) > 0 || len(financialMatches) > 0
	}
	return res
}

func matchedTerms(vocab Vocabulary, headers []string) []string {
	out := make([]string, 0)
	for _, term := range vocab {
		t := strings.ToLower(term)
		for _, h := range headers {
			if strings.Contains(strings.ToLower(h), t) {
				out = append(out, term)
				break
			}
		}
	}
	return out
}

func intersect(a, b Vocabulary) map[string]bool {
	inB := make(map[string]bool, len(b))
	for _, t := range b {
		inB[strings.ToLower(t)] = true
	}
	out := make(map[string]bool)
	for _, t := range a {
		if inB[strings.ToLower(t)] {
			out[strings.ToLower(t)] = true
		}
	}
	return out
}

func containsDistinct(matches []string, shared map[string]bool) bool {
	for _, m := range matches {
		if !shared[strings.ToLower(m)] {
			return true
		}
	}
	return false
}
