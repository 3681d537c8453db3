package services

import (
	"fmt"

	"kakeibo/internal/core"
)

// ComputeCandidates expands rules into one ledger entry candidate per rule
// for month. It is pure: the same inputs always give the same output, in rule
// order. All rules must belong to one owner.
func ComputeCandidates(rules []core.RecurringRule, month core.YearMonth) ([]core.LedgerEntryCandidate, error) {
	if err := month.Validate(); err != nil {
		return nil, err
	}

	for i, rule := range rules {
		if err := rule.Validate(); err != nil {
			return nil, fmt.Errorf("rule %d: %w", rule.ID, err)
		}
		if i > 0 && rule.OwnerID != rules[0].OwnerID {
			return nil, core.NewValidationError("owner_id",
				fmt.Errorf("%w: %q and %q", core.ErrMixedOwners, rules[0].OwnerID, rule.OwnerID))
		}
	}

	candidates := make([]core.LedgerEntryCandidate, 0, len(rules))
	for _, rule := range rules {
		ruleID := rule.ID
		candidates = append(candidates, core.LedgerEntryCandidate{
			OwnerID:      rule.OwnerID,
			Kind:         rule.Kind,
			Amount:       rule.Amount,
			Category:     rule.Category,
			Memo:         rule.Memo,
			Date:         month.Date(rule.DayOfMonth),
			SourceRuleID: &ruleID,
		})
	}
	return candidates, nil
}
