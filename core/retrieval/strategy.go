package retrieval

import (
	"maps"

	"github.com/siherrmann/reportrag/helper"
	"github.com/siherrmann/reportrag/model"
)

// Selector maps query intents to retrieval plans
type Selector struct {
	table model.StrategyTable
}

// NewSelector validates the strategy table once. An incomplete or
// inconsistent table is a startup error, never a query error.
func NewSelector(table model.StrategyTable, typicalChunkChars int) (*Selector, error) {
	err := table.Validate(typicalChunkChars)
	if err != nil {
		return nil, helper.NewError("new selector", err)
	}

	return &Selector{table: maps.Clone(table)}, nil
}

// PlanFor returns the plan of the intent's kind
func (s *Selector) PlanFor(intent model.QueryIntent) model.RetrievalPlan {
	plan, ok := s.table[intent.Kind]
	if !ok {
		return s.table[model.IntentTopical]
	}
	return plan
}

// PlanWithBudget returns the plan of the intent with the character budget replaced
func (s *Selector) PlanWithBudget(intent model.QueryIntent, maxTotalChars int) model.RetrievalPlan {
	plan := s.PlanFor(intent)
	plan.MaxTotalChars = maxTotalChars
	return plan
}
