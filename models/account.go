package models

import (
	"errors"
	"strings"
	"time"

	"github.com/datafluxo/financas_backend/utils"
)

// Account is a bank account. Its current balance is derived (I6), never
// stored: balance = initial balance + settled effects referencing the account.
type Account struct {
	ID             int       `gorm:"primary_key" json:"id"`
	Name           string    `gorm:"size:100;not null;index" json:"name"`
	Bank           string    `gorm:"size:100" json:"bank"`
	Branch         string    `gorm:"size:30" json:"branch"`
	Number         string    `gorm:"size:30" json:"number"`
	InitialBalance Money     `gorm:"type:decimal(15,2);not null" json:"initial_balance"`
	IsActive       *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (a *Account) Active() bool {
	return a.IsActive != nil && *a.IsActive
}

type NewAccount struct {
	Name           string `json:"name" validate:"required"`
	Bank           string `json:"bank"`
	Branch         string `json:"branch"`
	Number         string `json:"number"`
	InitialBalance Money  `json:"initial_balance"`
}

// validate input for both create & update
func (input *NewAccount) Validate() error {
	input.Name = strings.TrimSpace(input.Name)
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	if input.InitialBalance.IsNegative() {
		return errors.New("initial balance must be non-negative")
	}
	return nil
}

func (input *NewAccount) Account() *Account {
	return &Account{
		Name:           input.Name,
		Bank:           input.Bank,
		Branch:         input.Branch,
		Number:         input.Number,
		InitialBalance: input.InitialBalance,
		IsActive:       utils.NewTrue(),
	}
}
