package models

import (
	"errors"
	"strings"
	"time"

	"github.com/datafluxo/financas_backend/utils"
)

// Posting is a single receivable or payable. It owns its numeric fields and
// holds name-based back-references to Account, Category and Party; renames
// propagate through the repository's cascade operations.
type Posting struct {
	ID              int          `gorm:"primary_key" json:"id"`
	Kind            PostingKind  `gorm:"size:10;not null;index" json:"kind"`
	Description     string       `gorm:"size:255;not null" json:"description"`
	Amount          Money        `gorm:"type:decimal(15,2);not null" json:"amount"`
	DueDate         Date         `gorm:"not null;index:idx_postings_state_due,priority:2" json:"due_date"`
	SettleDate      *time.Time   `gorm:"index:idx_postings_account_settle,priority:2" json:"settle_date"`
	State           PostingState `gorm:"size:10;not null;index:idx_postings_state_due,priority:1" json:"state"`
	CategoryName    string       `gorm:"size:100;index:idx_postings_category_settle,priority:1" json:"category_name"`
	SubcategoryName string       `gorm:"size:100" json:"subcategory_name"`
	AccountName     *string      `gorm:"size:100;index:idx_postings_account_settle,priority:1" json:"account_name"`
	PartyName       string       `gorm:"size:150;index" json:"party_name"`
	Document        string       `gorm:"size:50" json:"document"`
	Notes           string       `gorm:"type:text" json:"notes"`
	Interest        Money        `gorm:"type:decimal(15,2);not null;default:0" json:"interest"`
	CreatedAt       time.Time    `gorm:"autoCreateTime" json:"created_at"`
}

// SettledEffect is the unsigned balance effect of a settled posting.
func (p *Posting) SettledEffect() Money {
	return p.Amount.Add(p.Interest)
}

// SignedEffect applies the posting kind: positive for income, negative for expense.
func (p *Posting) SignedEffect() Money {
	if p.Kind == PostingKindIncome {
		return p.SettledEffect()
	}
	return p.SettledEffect().Neg()
}

func (p *Posting) SettleDateOnly() (Date, bool) {
	if p.SettleDate == nil {
		return Date{}, false
	}
	return DateOf(*p.SettleDate), true
}

func (p *Posting) IsOpen() bool {
	return p.State.IsOpen()
}

// CheckInvariants verifies I2..I5 on the in-memory value. A failure here is
// unreachable through the engine's operations and is fatal for the caller.
func (p *Posting) CheckInvariants() error {
	if !p.Amount.IsPositive() {
		return BrokenInvariant("I2", "gross amount must be strictly positive")
	}
	if p.Interest.IsNegative() {
		return BrokenInvariant("I2", "interest must be non-negative")
	}
	if p.SettleDate == nil && !p.Interest.IsZero() {
		return BrokenInvariant("I2", "interest set on an unsettled posting")
	}
	settled := p.State == PostingStateSettled
	if settled != (p.SettleDate != nil) || settled != (p.AccountName != nil) {
		return BrokenInvariant("I3", "settle date, account and settled state must agree")
	}
	if p.State == PostingStateOverdue && p.SettleDate != nil {
		return BrokenInvariant("I4", "overdue posting carries a settle date")
	}
	if p.State == PostingStateCancelled && (p.SettleDate != nil || p.AccountName != nil) {
		return BrokenInvariant("I5", "cancelled posting carries settlement fields")
	}
	return nil
}

type NewPosting struct {
	Kind            PostingKind `json:"kind" validate:"required"`
	Description     string      `json:"description" validate:"required"`
	Amount          Money       `json:"amount"`
	DueDate         Date        `json:"due_date"`
	CategoryName    string      `json:"category_name" validate:"required"`
	SubcategoryName string      `json:"subcategory_name"`
	PartyName       string      `json:"party_name"`
	Document        string      `json:"document"`
	Notes           string      `json:"notes"`
}

func (input *NewPosting) Validate() error {
	input.Description = strings.TrimSpace(input.Description)
	input.CategoryName = strings.TrimSpace(input.CategoryName)
	input.PartyName = strings.TrimSpace(input.PartyName)
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	if !input.Kind.Valid() {
		return errors.New("invalid posting kind")
	}
	if !input.Amount.IsPositive() {
		return errors.New("amount must be strictly positive")
	}
	if input.DueDate.IsZero() {
		return errors.New("due date is required")
	}
	return nil
}

func (input *NewPosting) Posting() *Posting {
	return &Posting{
		Kind:            input.Kind,
		Description:     input.Description,
		Amount:          input.Amount,
		DueDate:         input.DueDate,
		State:           PostingStatePending,
		CategoryName:    input.CategoryName,
		SubcategoryName: input.SubcategoryName,
		PartyName:       input.PartyName,
		Document:        input.Document,
		Notes:           input.Notes,
		Interest:        ZeroMoney(),
	}
}

// PostingPatch mutates non-settlement fields. Amount and kind edits are
// rejected by the engine while the posting is settled.
type PostingPatch struct {
	Description     *string      `json:"description"`
	Amount          *Money       `json:"amount"`
	Kind            *PostingKind `json:"kind"`
	DueDate         *Date        `json:"due_date"`
	CategoryName    *string      `json:"category_name"`
	SubcategoryName *string      `json:"subcategory_name"`
	PartyName       *string      `json:"party_name"`
	Document        *string      `json:"document"`
	Notes           *string      `json:"notes"`
}

func (patch *PostingPatch) Validate() error {
	if patch.Description != nil && strings.TrimSpace(*patch.Description) == "" {
		return errors.New("description must not be empty")
	}
	if patch.Amount != nil && !patch.Amount.IsPositive() {
		return errors.New("amount must be strictly positive")
	}
	if patch.Kind != nil && !patch.Kind.Valid() {
		return errors.New("invalid posting kind")
	}
	if patch.DueDate != nil && patch.DueDate.IsZero() {
		return errors.New("due date must not be empty")
	}
	if patch.CategoryName != nil && strings.TrimSpace(*patch.CategoryName) == "" {
		return errors.New("category name must not be empty")
	}
	return nil
}

// TouchesSettlementFields reports whether the patch edits fields frozen
// while the posting is settled.
func (patch *PostingPatch) TouchesSettlementFields() bool {
	return patch.Amount != nil || patch.Kind != nil
}

// Apply copies the patched fields onto p.
func (patch *PostingPatch) Apply(p *Posting) {
	if patch.Description != nil {
		p.Description = *patch.Description
	}
	if patch.Amount != nil {
		p.Amount = *patch.Amount
	}
	if patch.Kind != nil {
		p.Kind = *patch.Kind
	}
	if patch.DueDate != nil {
		p.DueDate = *patch.DueDate
	}
	if patch.CategoryName != nil {
		p.CategoryName = *patch.CategoryName
	}
	if patch.SubcategoryName != nil {
		p.SubcategoryName = *patch.SubcategoryName
	}
	if patch.PartyName != nil {
		p.PartyName = *patch.PartyName
	}
	if patch.Document != nil {
		p.Document = *patch.Document
	}
	if patch.Notes != nil {
		p.Notes = *patch.Notes
	}
}
