// Package legacy ingests the old system's export document and produces the
// equivalent ledger state. The whole import is validated up front and applied
// in one transaction; a re-run with the same file is a no-op.
package legacy

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/datafluxo/financas_backend/config"
	"github.com/datafluxo/financas_backend/models"
	"github.com/datafluxo/financas_backend/store"
	"github.com/datafluxo/financas_backend/utils"
	"github.com/sirupsen/logrus"
)

// Document is the legacy export shape: one UTF-8 dictionary, ISO dates,
// decimal-string money. Unknown fields are ignored.
type Document struct {
	Accounts   []AccountRecord  `json:"accounts"`
	Categories []CategoryRecord `json:"categories"`
	Clients    []PartyRecord    `json:"clients"`
	Suppliers  []PartyRecord    `json:"suppliers"`
	Postings   []PostingRecord  `json:"postings"`
}

type AccountRecord struct {
	Name           string  `json:"name"`
	Bank           string  `json:"bank"`
	Branch         string  `json:"branch"`
	Number         string  `json:"number"`
	InitialBalance *string `json:"initial_balance"`
}

type CategoryRecord struct {
	Name          string   `json:"name"`
	Kind          string   `json:"kind"`
	Subcategories []string `json:"subcategories"`
}

type PartyRecord struct {
	Name      string `json:"name"`
	TradeName string `json:"trade_name"`
	TaxId     string `json:"tax_id"`
	Address   string `json:"address"`
	City      string `json:"city"`
	State     string `json:"state"`
	ZipCode   string `json:"zip_code"`
	Contact   string `json:"contact"`
	Email     string `json:"email"`
}

type PostingRecord struct {
	Kind            string  `json:"kind"`
	Description     string  `json:"description"`
	Amount          *string `json:"amount"`
	DueDate         string  `json:"due_date"`
	SettleDate      string  `json:"settle_date"`
	State           string  `json:"state"`
	CategoryName    string  `json:"category_name"`
	SubcategoryName string  `json:"subcategory_name"`
	AccountName     string  `json:"account_name"`
	PartyName       string  `json:"party_name"`
	Document        string  `json:"document"`
	Notes           string  `json:"notes"`
	Interest        string  `json:"interest"`
}

type Summary struct {
	Accounts   int
	Categories int
	Parties    int
	Postings   int
	Skipped    bool
}

type Importer struct {
	store  store.Store
	logger *logrus.Logger
}

func NewImporter(st store.Store, logger *logrus.Logger) *Importer {
	return &Importer{store: st, logger: logger}
}

// Import parses, validates and applies the document. Every record is checked
// before the first write; the content hash makes the operation idempotent.
func (imp *Importer) Import(ctx context.Context, raw []byte) (*Summary, error) {
	sum := sha256.Sum256(raw)
	contentHash := hex.EncodeToString(sum[:])

	seen, err := imp.store.ImportMarks().Seen(ctx, contentHash)
	if err != nil {
		return nil, err
	}
	if seen {
		imp.logger.WithField("hash", contentHash).Info("legacy document already imported")
		return &Summary{Skipped: true}, nil
	}

	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("malformed legacy document: %w", err)
	}

	plan, err := imp.buildPlan(ctx, &doc)
	if err != nil {
		return nil, err
	}

	summary := &Summary{}
	err = imp.store.Atomically(ctx, func(tx store.Store) error {
		for _, account := range plan.accounts {
			if err := tx.Accounts().Insert(ctx, account); err != nil {
				return fmt.Errorf("import account %q: %w", account.Name, err)
			}
			summary.Accounts++
		}
		for _, category := range plan.categories {
			if err := tx.Categories().Insert(ctx, category); err != nil {
				return fmt.Errorf("import category %q: %w", category.Name, err)
			}
			summary.Categories++
		}
		for _, party := range plan.parties {
			if err := tx.Parties().Insert(ctx, party); err != nil {
				return fmt.Errorf("import party %q: %w", party.LegalName, err)
			}
			summary.Parties++
		}
		for _, posting := range plan.postings {
			if err := tx.Postings().Insert(ctx, posting); err != nil {
				return fmt.Errorf("import posting %q: %w", posting.Description, err)
			}
			summary.Postings++
		}
		return tx.ImportMarks().Record(ctx, contentHash)
	})
	if err != nil {
		config.LogError(imp.logger, "importer.go", "Import", "Atomically", contentHash, err)
		return nil, err
	}
	imp.logger.WithFields(logrus.Fields{
		"hash":       contentHash,
		"accounts":   summary.Accounts,
		"categories": summary.Categories,
		"parties":    summary.Parties,
		"postings":   summary.Postings,
	}).Info("legacy document imported")
	return summary, nil
}

type importPlan struct {
	accounts   []*models.Account
	categories []*models.Category
	parties    []*models.Party
	postings   []*models.Posting
}

// buildPlan translates and validates every record without touching the
// store. Any failure here means nothing was written.
func (imp *Importer) buildPlan(ctx context.Context, doc *Document) (*importPlan, error) {
	plan := &importPlan{}

	// deactivated accounts still hold settled history, so they stay valid
	// targets for imported settlements
	knownAccounts := map[string]bool{}
	existing, err := imp.store.Accounts().FetchAll(ctx)
	if err != nil {
		return nil, err
	}
	for _, a := range existing {
		knownAccounts[a.Name] = true
	}
	for i, rec := range doc.Accounts {
		if strings.TrimSpace(rec.Name) == "" {
			return nil, fmt.Errorf("accounts[%d]: name is required", i)
		}
		if rec.InitialBalance == nil {
			return nil, fmt.Errorf("accounts[%d] %q: initial_balance is required", i, rec.Name)
		}
		balance, err := models.MoneyFromString(*rec.InitialBalance)
		if err != nil {
			return nil, fmt.Errorf("accounts[%d] %q: initial_balance: %w", i, rec.Name, err)
		}
		if balance.IsNegative() {
			return nil, fmt.Errorf("accounts[%d] %q: initial_balance must be non-negative", i, rec.Name)
		}
		plan.accounts = append(plan.accounts, &models.Account{
			Name:           strings.TrimSpace(rec.Name),
			Bank:           rec.Bank,
			Branch:         rec.Branch,
			Number:         rec.Number,
			InitialBalance: balance,
			IsActive:       utils.NewTrue(),
		})
		knownAccounts[strings.TrimSpace(rec.Name)] = true
	}

	// category kinds: explicit records first, then inference from postings
	categoryKinds := map[string]models.CategoryKind{}
	declared := map[string]*models.Category{}
	storedCategories, err := imp.store.Categories().FetchAll(ctx)
	if err != nil {
		return nil, err
	}
	for _, c := range storedCategories {
		categoryKinds[models.FoldCategoryName(c.Name)] = c.Kind
	}
	for i, rec := range doc.Categories {
		if strings.TrimSpace(rec.Name) == "" {
			return nil, fmt.Errorf("categories[%d]: name is required", i)
		}
		kind, err := parseLegacyCategoryKind(rec.Kind)
		if err != nil {
			return nil, fmt.Errorf("categories[%d] %q: %w", i, rec.Name, err)
		}
		folded := models.FoldCategoryName(rec.Name)
		if prev, ok := categoryKinds[folded]; ok && prev != kind {
			return nil, models.ErrorCategoryKindConflict
		}
		categoryKinds[folded] = kind
		category := &models.Category{
			Name:          strings.TrimSpace(rec.Name),
			Kind:          kind,
			Subcategories: models.StringList(rec.Subcategories),
		}
		declared[folded] = category
		plan.categories = append(plan.categories, category)
	}

	knownParties := map[string]bool{}
	storedParties, err := imp.store.Parties().Fetch(ctx, nil)
	if err != nil {
		return nil, err
	}
	for _, p := range storedParties {
		knownParties[partyKey(p.Kind, p.LegalName)] = true
	}
	addParties := func(records []PartyRecord, kind models.PartyKind) error {
		for i, rec := range records {
			if strings.TrimSpace(rec.Name) == "" {
				return fmt.Errorf("%ss[%d]: name is required", kind, i)
			}
			name := strings.TrimSpace(rec.Name)
			if knownParties[partyKey(kind, name)] {
				continue
			}
			plan.parties = append(plan.parties, &models.Party{
				Kind:      kind,
				LegalName: name,
				TradeName: rec.TradeName,
				TaxId:     rec.TaxId,
				Address:   rec.Address,
				City:      rec.City,
				State:     rec.State,
				ZipCode:   rec.ZipCode,
				Contact:   rec.Contact,
				Email:     rec.Email,
				IsActive:  utils.NewTrue(),
			})
			knownParties[partyKey(kind, name)] = true
		}
		return nil
	}
	if err := addParties(doc.Clients, models.PartyKindClient); err != nil {
		return nil, err
	}
	if err := addParties(doc.Suppliers, models.PartyKindSupplier); err != nil {
		return nil, err
	}

	for i, rec := range doc.Postings {
		posting, err := imp.translatePosting(i, rec, knownAccounts, categoryKinds, declared, plan)
		if err != nil {
			return nil, err
		}
		// parties referenced only by name become inactive stubs; later
		// edits fill them in
		if posting.PartyName != "" {
			partyKind := models.PartyKindClient
			if posting.Kind == models.PostingKindExpense {
				partyKind = models.PartyKindSupplier
			}
			if !knownParties[partyKey(partyKind, posting.PartyName)] {
				plan.parties = append(plan.parties, &models.Party{
					Kind:               partyKind,
					LegalName:          posting.PartyName,
					IsActive:           utils.NewFalse(),
					InactivationReason: "created as a stub by legacy import",
				})
				knownParties[partyKey(partyKind, posting.PartyName)] = true
			}
		}
		plan.postings = append(plan.postings, posting)
	}
	return plan, nil
}

func (imp *Importer) translatePosting(i int, rec PostingRecord, knownAccounts map[string]bool, categoryKinds map[string]models.CategoryKind, declared map[string]*models.Category, plan *importPlan) (*models.Posting, error) {
	kind, err := parseLegacyPostingKind(rec.Kind)
	if err != nil {
		return nil, fmt.Errorf("postings[%d]: %w", i, err)
	}
	state, err := parseLegacyState(rec.State)
	if err != nil {
		return nil, fmt.Errorf("postings[%d]: %w", i, err)
	}
	if rec.Amount == nil {
		return nil, fmt.Errorf("postings[%d]: amount is required", i)
	}
	amount, err := models.MoneyFromString(*rec.Amount)
	if err != nil {
		return nil, fmt.Errorf("postings[%d]: amount: %w", i, err)
	}
	if !amount.IsPositive() {
		return nil, fmt.Errorf("postings[%d]: amount must be strictly positive", i)
	}
	dueDate, err := models.ParseDate(rec.DueDate)
	if err != nil {
		return nil, fmt.Errorf("postings[%d]: due_date: %w", i, err)
	}
	categoryName := strings.TrimSpace(rec.CategoryName)
	if categoryName == "" {
		return nil, fmt.Errorf("postings[%d]: category_name is required", i)
	}

	// kind inference: a posting referencing an unknown category creates it;
	// a later reference with the other kind is a conflict
	folded := models.FoldCategoryName(categoryName)
	if prev, ok := categoryKinds[folded]; ok {
		if !prev.Matches(kind) {
			return nil, models.ErrorCategoryKindConflict
		}
	} else {
		inferred := models.CategoryKind(kind)
		categoryKinds[folded] = inferred
		category := &models.Category{Name: categoryName, Kind: inferred}
		declared[folded] = category
		plan.categories = append(plan.categories, category)
	}
	if rec.SubcategoryName != "" {
		if category, ok := declared[folded]; ok && !category.Subcategories.Contains(rec.SubcategoryName) {
			category.Subcategories = append(category.Subcategories, rec.SubcategoryName)
		}
	}

	posting := &models.Posting{
		Kind:            kind,
		Description:     rec.Description,
		Amount:          amount,
		DueDate:         dueDate,
		State:           state,
		CategoryName:    categoryName,
		SubcategoryName: rec.SubcategoryName,
		PartyName:       strings.TrimSpace(rec.PartyName),
		Document:        rec.Document,
		Notes:           rec.Notes,
		Interest:        models.ZeroMoney(),
	}

	if state == models.PostingStateSettled {
		if rec.SettleDate == "" {
			return nil, fmt.Errorf("postings[%d]: settled posting needs a settle_date", i)
		}
		settleDate, err := models.ParseDate(rec.SettleDate)
		if err != nil {
			return nil, fmt.Errorf("postings[%d]: settle_date: %w", i, err)
		}
		accountName := strings.TrimSpace(rec.AccountName)
		if accountName == "" || !knownAccounts[accountName] {
			return nil, fmt.Errorf("postings[%d]: settled posting references unknown account %q", i, rec.AccountName)
		}
		if rec.Interest != "" {
			interest, err := models.MoneyFromString(rec.Interest)
			if err != nil {
				return nil, fmt.Errorf("postings[%d]: interest: %w", i, err)
			}
			if interest.IsNegative() {
				return nil, fmt.Errorf("postings[%d]: interest must be non-negative", i)
			}
			posting.Interest = interest
		}
		t := settleDate.Time()
		posting.SettleDate = &t
		posting.AccountName = &accountName
	}

	if err := posting.CheckInvariants(); err != nil {
		return nil, fmt.Errorf("postings[%d]: %w", i, err)
	}
	return posting, nil
}

// legacy documents carry Portuguese state and kind labels in mixed casing
func parseLegacyState(s string) (models.PostingState, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pago", "paga":
		return models.PostingStateSettled, nil
	case "pendente":
		return models.PostingStatePending, nil
	case "vencido", "vencida":
		return models.PostingStateOverdue, nil
	case "cancelado", "cancelada":
		return models.PostingStateCancelled, nil
	}
	return models.ParsePostingState(s)
}

func parseLegacyPostingKind(s string) (models.PostingKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "receita":
		return models.PostingKindIncome, nil
	case "despesa":
		return models.PostingKindExpense, nil
	}
	return models.ParsePostingKind(s)
}

func parseLegacyCategoryKind(s string) (models.CategoryKind, error) {
	kind, err := parseLegacyPostingKind(s)
	if err != nil {
		return "", errors.New("invalid category kind")
	}
	return models.CategoryKind(kind), nil
}

func partyKey(kind models.PartyKind, name string) string {
	return string(kind) + "/" + strings.ToLower(name)
}
