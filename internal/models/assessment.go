package models

import "fmt"

// AssessmentType enumerates the evaluation instruments the engine governs.
type AssessmentType string

const (
	AssessmentSSA1         AssessmentType = "ssa1"
	AssessmentReview1      AssessmentType = "review1"
	AssessmentSSA2         AssessmentType = "ssa2"
	AssessmentReview2      AssessmentType = "review2"
	AssessmentCIA1         AssessmentType = "cia1"
	AssessmentCIA2         AssessmentType = "cia2"
	AssessmentFormative1   AssessmentType = "formative1"
	AssessmentFormative2   AssessmentType = "formative2"
	AssessmentModel        AssessmentType = "model"
	AssessmentCDAP         AssessmentType = "cdap"
	AssessmentArticulation AssessmentType = "articulation"
	AssessmentLCA          AssessmentType = "lca"
)

var assessmentTypes = map[AssessmentType]struct{}{
	AssessmentSSA1:         {},
	AssessmentReview1:      {},
	AssessmentSSA2:         {},
	AssessmentReview2:      {},
	AssessmentCIA1:         {},
	AssessmentCIA2:         {},
	AssessmentFormative1:   {},
	AssessmentFormative2:   {},
	AssessmentModel:        {},
	AssessmentCDAP:         {},
	AssessmentArticulation: {},
	AssessmentLCA:          {},
}

// ParseAssessmentType validates a raw path segment against the closed enumeration.
func ParseAssessmentType(raw string) (AssessmentType, error) {
	at := AssessmentType(raw)
	if _, ok := assessmentTypes[at]; !ok {
		return "", fmt.Errorf("unknown assessment type %q", raw)
	}
	return at, nil
}

// Valid reports whether the value belongs to the enumeration.
func (a AssessmentType) Valid() bool {
	_, ok := assessmentTypes[a]
	return ok
}
