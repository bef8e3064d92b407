package model

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrRetrievalUnavailable is returned when every similarity search of a query failed
var ErrRetrievalUnavailable = errors.New("retrieval unavailable")

// ErrChunkNotFound is returned by chunk stores for unknown ids
var ErrChunkNotFound = errors.New("chunk not found")

type WarningKind string

const (
	WarningClassificationAmbiguous WarningKind = "classification_ambiguous"
	WarningRegionUnknown           WarningKind = "region_unknown"
	WarningPartialRetrieval        WarningKind = "partial_retrieval_failure"
	WarningBudgetInfeasible        WarningKind = "budget_infeasible"
	WarningNeighborExpansionFailed WarningKind = "neighbor_expansion_failed"
)

// Warning is a non-fatal condition attached to a query result
type Warning struct {
	Kind    WarningKind `json:"kind"`
	Region  Region      `json:"region,omitempty"`
	Message string      `json:"message"`
}

func NewWarning(kind WarningKind, region Region, message string) Warning {
	return Warning{Kind: kind, Region: region, Message: message}
}

func (w Warning) String() string {
	if w.Region != "" {
		return string(w.Kind) + " [" + string(w.Region) + "]: " + w.Message
	}
	return string(w.Kind) + ": " + w.Message
}

// RetrievalResult is the budgeted selection of a query
type RetrievalResult struct {
	Chunks         []*ScoredChunk `json:"chunks"`
	RegionsCovered []Region       `json:"regions_covered"`
	TotalChars     int            `json:"total_chars"`
	CandidateCount int            `json:"candidate_count"`
	SelectedCount  int            `json:"selected_count"`
	Warnings       []Warning      `json:"warnings,omitempty"`
}

// HasWarning reports whether a warning of the given kind is attached
func (r *RetrievalResult) HasWarning(kind WarningKind) bool {
	for _, w := range r.Warnings {
		if w.Kind == kind {
			return true
		}
	}
	return false
}

// QueryRequest is the inbound query. A non-empty RegionHint bypasses
// classification and ForceBudget replaces the plan's character budget.
type QueryRequest struct {
	Query       string   `json:"query"`
	RegionHint  []Region `json:"region_hint,omitempty"`
	ForceBudget *int     `json:"force_budget,omitempty"`
}

// Diagnostics describes how a query was answered
type Diagnostics struct {
	QueryID           uuid.UUID      `json:"query_id"`
	Intent            QueryIntent    `json:"intent"`
	Plan              RetrievalPlan  `json:"plan"`
	PerRegionReturned map[Region]int `json:"per_region_returned"`
	Elapsed           time.Duration  `json:"elapsed"`
	Warnings          []Warning      `json:"warnings,omitempty"`
}

// QueryResponse is the outbound answer context of a query
type QueryResponse struct {
	Context     string           `json:"context"`
	Result      *RetrievalResult `json:"result"`
	Diagnostics Diagnostics      `json:"diagnostics"`
}
