package models

import (
	"errors"
	"strings"
	"time"

	"github.com/datafluxo/financas_backend/utils"
)

// Party is a client or supplier. Postings reference it by legal name, so a
// rename cascades through the posting set (see the repository contract).
type Party struct {
	ID                 int        `gorm:"primary_key" json:"id"`
	Kind               PartyKind  `gorm:"size:10;not null;index" json:"kind"`
	LegalName          string     `gorm:"size:150;not null;index" json:"legal_name"`
	TradeName          string     `gorm:"size:150" json:"trade_name"`
	TaxId              string     `gorm:"size:20;index" json:"tax_id"`
	Address            string     `gorm:"size:255" json:"address"`
	City               string     `gorm:"size:100" json:"city"`
	State              string     `gorm:"size:2" json:"state"`
	ZipCode            string     `gorm:"size:10" json:"zip_code"`
	Contact            string     `gorm:"size:100" json:"contact"`
	Email              string     `gorm:"size:100" json:"email"`
	IsActive           *bool      `gorm:"not null;default:true" json:"is_active"`
	InactivatedAt      *time.Time `json:"inactivated_at"`
	InactivationReason string     `gorm:"size:255" json:"inactivation_reason"`
	CreatedAt          time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

func (p *Party) Active() bool {
	return p.IsActive != nil && *p.IsActive
}

type NewParty struct {
	Kind      PartyKind `json:"kind" validate:"required"`
	LegalName string    `json:"legal_name" validate:"required"`
	TradeName string    `json:"trade_name"`
	TaxId     string    `json:"tax_id"`
	Address   string    `json:"address"`
	City      string    `json:"city"`
	State     string    `json:"state"`
	ZipCode   string    `json:"zip_code"`
	Contact   string    `json:"contact"`
	Email     string    `json:"email"`
}

func (input *NewParty) Validate() error {
	input.LegalName = strings.TrimSpace(input.LegalName)
	input.TaxId = strings.TrimSpace(input.TaxId)
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	if !input.Kind.Valid() {
		return errors.New("invalid party kind")
	}
	if input.Email != "" && !utils.IsValidEmail(input.Email) {
		return errors.New("invalid email address")
	}
	return nil
}

func (input *NewParty) Party() *Party {
	return &Party{
		Kind:      input.Kind,
		LegalName: input.LegalName,
		TradeName: input.TradeName,
		TaxId:     input.TaxId,
		Address:   input.Address,
		City:      input.City,
		State:     input.State,
		ZipCode:   input.ZipCode,
		Contact:   input.Contact,
		Email:     input.Email,
		IsActive:  utils.NewTrue(),
	}
}
