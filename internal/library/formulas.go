package library

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackzampolin/spellbook/internal/docstore"
	"github.com/jackzampolin/spellbook/internal/types"
)

// FormulaQuery narrows ListFormulas.
type FormulaQuery struct {
	// ModelID keeps formulas associated with the model.
	ModelID string
	// Search keeps formulas whose title, content or description contain it,
	// ignoring case.
	Search string
}

// formulaOrder is pinned first, then most recently updated.
var formulaOrder = []docstore.Sort{docstore.Desc("isTop"), docstore.Desc("updatedAt")}

// ListFormulas returns formulas matching q, pinned first and then most recently updated.
func (l *Library) ListFormulas(ctx context.Context, q FormulaQuery) ([]types.Formula, error) {
	filter := docstore.All()
	if q.ModelID != "" {
		filter = docstore.ElemEq("modelIds", q.ModelID)
	}

	docs, err := l.collection(types.CollectionFormulas).Find(ctx, filter, formulaOrder...)
	if err != nil {
		return nil, fmt.Errorf("failed to list formulas: %w", err)
	}
	formulas, err := docstore.DecodeAll[types.Formula](docs)
	if err != nil {
		return nil, err
	}

	search := strings.ToLower(strings.TrimSpace(q.Search))
	if search == "" {
		return formulas, nil
	}
	matched := formulas[:0]
	for _, f := range formulas {
		if strings.Contains(strings.ToLower(f.Title), search) ||
			strings.Contains(strings.ToLower(f.Content), search) ||
			strings.Contains(strings.ToLower(f.Description), search) {
			matched = append(matched, f)
		}
	}
	return matched, nil
}

// FormulaByID returns the formula with the business id, or docstore.ErrNotFound.
func (l *Library) FormulaByID(ctx context.Context, formulaID string) (*types.Formula, error) {
	doc, err := l.collection(types.CollectionFormulas).FindOne(ctx,
		docstore.Eq(types.FieldFormulaID, formulaID), formulaOrder...)
	if err != nil {
		return nil, fmt.Errorf("failed to get formula %s: %w", formulaID, err)
	}
	if doc == nil {
		return nil, fmt.Errorf("formula %s: %w", formulaID, docstore.ErrNotFound)
	}
	return decodeOne[types.Formula](doc)
}

// FormulaByTitleExcluding returns a formula titled title whose business id is not
// excludeID, or nil if there is none.
func (l *Library) FormulaByTitleExcluding(ctx context.Context, title, excludeID string) (*types.Formula, error) {
	doc, err := l.collection(types.CollectionFormulas).FindOne(ctx, docstore.And(
		docstore.Eq("title", title),
		docstore.Ne(types.FieldFormulaID, excludeID),
	), formulaOrder...)
	if err != nil {
		return nil, fmt.Errorf("failed to look up formula title: %w", err)
	}
	return decodeOne[types.Formula](doc)
}

// ReplaceFormula deletes every record carrying f's business id and inserts f.
// It returns the stored formula.
func (l *Library) ReplaceFormula(ctx context.Context, f types.Formula) (*types.Formula, error) {
	if f.FormulaID == "" {
		return nil, &ValidationError{Field: types.FieldFormulaID, Message: "is required"}
	}
	f.ID = ""
	if f.ModelIDs == nil {
		f.ModelIDs = []string{}
	}

	doc, err := docstore.Encode(f)
	if err != nil {
		return nil, err
	}
	id, err := docstore.Replace(ctx, l.collection(types.CollectionFormulas),
		docstore.Eq(types.FieldFormulaID, f.FormulaID), doc)
	if err != nil {
		return nil, fmt.Errorf("failed to save formula %s: %w", f.FormulaID, err)
	}
	f.ID = id

	l.logger.Info("formula saved", "formula_id", f.FormulaID, "title", f.Title)
	return &f, nil
}

// ActiveModels returns the active models ordered by sortOrder and name.
func (l *Library) ActiveModels(ctx context.Context) ([]types.Model, error) {
	docs, err := l.collection(types.CollectionModels).Find(ctx,
		docstore.Eq("isActive", true), docstore.Asc("sortOrder"), docstore.Asc("name"))
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}
	return docstore.DecodeAll[types.Model](docs)
}
