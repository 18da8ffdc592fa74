package models

import (
	"testing"
	"time"
)

func validPosting() *Posting {
	return &Posting{
		Kind:         PostingKindIncome,
		Description:  "consulting",
		Amount:       MustMoney("250.00"),
		DueDate:      NewDate(2026, time.January, 10),
		State:        PostingStatePending,
		CategoryName: "Vendas",
		Interest:     ZeroMoney(),
	}
}

func TestCheckInvariants(t *testing.T) {
	if err := validPosting().CheckInvariants(); err != nil {
		t.Fatalf("valid posting rejected: %v", err)
	}

	p := validPosting()
	p.Amount = ZeroMoney()
	if err := p.CheckInvariants(); err == nil {
		t.Fatal("zero amount accepted")
	}

	p = validPosting()
	p.Interest = MustMoney("5.00")
	if err := p.CheckInvariants(); err == nil {
		t.Fatal("interest on unsettled posting accepted")
	}

	p = validPosting()
	p.State = PostingStateSettled
	if err := p.CheckInvariants(); err == nil {
		t.Fatal("settled state without settle date accepted")
	}

	p = validPosting()
	settleDate := time.Date(2026, time.January, 10, 0, 0, 0, 0, time.UTC)
	account := "Caixa"
	p.State = PostingStateSettled
	p.SettleDate = &settleDate
	p.AccountName = &account
	p.Interest = MustMoney("5.00")
	if err := p.CheckInvariants(); err != nil {
		t.Fatalf("settled posting rejected: %v", err)
	}

	p.State = PostingStateCancelled
	if err := p.CheckInvariants(); err == nil {
		t.Fatal("cancelled posting with settlement fields accepted")
	}
}

func TestSignedEffect(t *testing.T) {
	p := validPosting()
	p.Interest = ZeroMoney()
	if got := p.SignedEffect().String(); got != "250.00" {
		t.Fatalf("income effect = %s", got)
	}
	p.Kind = PostingKindExpense
	if got := p.SignedEffect().String(); got != "-250.00" {
		t.Fatalf("expense effect = %s", got)
	}
	p.Interest = MustMoney("5.00")
	if got := p.SettledEffect().String(); got != "255.00" {
		t.Fatalf("settled effect = %s", got)
	}
}

func TestPostingPatch(t *testing.T) {
	p := validPosting()
	description := "updated"
	due := NewDate(2026, time.February, 1)
	patch := &PostingPatch{Description: &description, DueDate: &due}
	if patch.TouchesSettlementFields() {
		t.Fatal("description/due patch should not touch settlement fields")
	}
	if err := patch.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	patch.Apply(p)
	if p.Description != "updated" || !p.DueDate.Equal(due) {
		t.Fatalf("Apply did not copy fields: %+v", p)
	}

	amount := MustMoney("300.00")
	if !(&PostingPatch{Amount: &amount}).TouchesSettlementFields() {
		t.Fatal("amount patch must touch settlement fields")
	}

	bad := ZeroMoney()
	if err := (&PostingPatch{Amount: &bad}).Validate(); err == nil {
		t.Fatal("zero amount patch accepted")
	}
	empty := "  "
	if err := (&PostingPatch{Description: &empty}).Validate(); err == nil {
		t.Fatal("blank description patch accepted")
	}
}

func TestNewPostingValidate(t *testing.T) {
	input := &NewPosting{
		Kind:         PostingKindExpense,
		Description:  " rent ",
		Amount:       MustMoney("1200.00"),
		DueDate:      NewDate(2026, time.January, 5),
		CategoryName: "Moradia",
	}
	if err := input.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if input.Description != "rent" {
		t.Fatalf("description not trimmed: %q", input.Description)
	}
	p := input.Posting()
	if p.State != PostingStatePending {
		t.Fatalf("new posting state = %q", p.State)
	}
	if err := p.CheckInvariants(); err != nil {
		t.Fatalf("new posting breaks invariants: %v", err)
	}

	input.Amount = ZeroMoney()
	if err := input.Validate(); err == nil {
		t.Fatal("zero amount accepted")
	}
}
