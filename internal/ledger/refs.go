package ledger

import (
	"context"

	"github.com/google/uuid"
)

// refResolver confirms referenced ids exist inside one budget, caching
// verdicts so a multi-line request hits the store once per distinct id.
// It has no side effects.
type refResolver struct {
	store    Store
	budgetID uuid.UUID

	accounts   map[uuid.UUID]*AccountRef
	categories map[uuid.UUID]bool
	payees     map[uuid.UUID]bool
}

func newRefResolver(store Store, budgetID uuid.UUID) *refResolver {
	return &refResolver{
		store:      store,
		budgetID:   budgetID,
		accounts:   make(map[uuid.UUID]*AccountRef),
		categories: make(map[uuid.UUID]bool),
		payees:     make(map[uuid.UUID]bool),
	}
}

// requireAccount resolves an account and checks budget ownership. An account
// from another budget is indistinguishable from a missing one.
func (r *refResolver) requireAccount(ctx context.Context, accountID uuid.UUID) (*AccountRef, error) {
	if ref, ok := r.accounts[accountID]; ok {
		if ref == nil {
			return nil, invalidReference("account not found")
		}
		return ref, nil
	}
	ref, err := r.store.AccountRef(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if ref != nil && ref.BudgetID != r.budgetID {
		ref = nil
	}
	r.accounts[accountID] = ref
	if ref == nil {
		return nil, invalidReference("account not found")
	}
	return ref, nil
}

func (r *refResolver) requireCategory(ctx context.Context, categoryID uuid.UUID) error {
	ok, cached := r.categories[categoryID]
	if !cached {
		var err error
		ok, err = r.store.CategoryInBudget(ctx, r.budgetID, categoryID)
		if err != nil {
			return err
		}
		r.categories[categoryID] = ok
	}
	if !ok {
		return invalidReference("category not found")
	}
	return nil
}

func (r *refResolver) requirePayee(ctx context.Context, payeeID uuid.UUID) error {
	ok, cached := r.payees[payeeID]
	if !cached {
		var err error
		ok, err = r.store.PayeeInBudget(ctx, r.budgetID, payeeID)
		if err != nil {
			return err
		}
		r.payees[payeeID] = ok
	}
	if !ok {
		return invalidReference("payee not found")
	}
	return nil
}

// requireTags dedupes the ids (keeping first-seen order) and verifies all of
// them resolve within the budget.
func (r *refResolver) requireTags(ctx context.Context, tagIDs []uuid.UUID) ([]uuid.UUID, error) {
	deduped := dedupeTagIDs(tagIDs)
	if len(deduped) == 0 {
		return nil, nil
	}
	existing, err := r.store.TagIDsInBudget(ctx, r.budgetID, deduped)
	if err != nil {
		return nil, err
	}
	for _, id := range deduped {
		if _, ok := existing[id]; !ok {
			return nil, invalidReference("tag not found")
		}
	}
	return deduped, nil
}

func dedupeTagIDs(tagIDs []uuid.UUID) []uuid.UUID {
	if len(tagIDs) == 0 {
		return nil
	}
	seen := make(map[uuid.UUID]struct{}, len(tagIDs))
	deduped := make([]uuid.UUID, 0, len(tagIDs))
	for _, id := range tagIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		deduped = append(deduped, id)
	}
	return deduped
}
