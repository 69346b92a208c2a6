// Package partners exposes the purchase and sales partner terms inventory relies on.
package partners

import (
	"errors"

	"github.com/odyssey-erp/odyssey-resale/internal/fee"
)

// TaxType distinguishes partners issuing tax invoices from tax-free ones.
type TaxType string

const (
	// TaxTypeTaxable partners include 10% VAT in their amounts.
	TaxTypeTaxable TaxType = "taxable"
	// TaxTypeTaxFree partners carry no VAT.
	TaxTypeTaxFree TaxType = "taxfree"
)

// Partner holds the terms of a purchase or sales partner.
type Partner struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	BizName    string     `json:"biz_name,omitempty"`
	TaxType    TaxType    `json:"tax_type"`
	ReturnDays int        `json:"return_days"`
	Fee        fee.Config `json:"fee"`
}

// TaxFree reports whether the partner's amounts carry no VAT.
func (p Partner) TaxFree() bool {
	return p.TaxType == TaxTypeTaxFree
}

// Label is the display name, with the business name when present.
func (p Partner) Label() string {
	if p.BizName != "" {
		return p.Name + "(" + p.BizName + ")"
	}
	if p.Name == "" {
		return "-"
	}
	return p.Name
}

// Directory indexes partners by id.
type Directory map[string]Partner

// NewDirectory builds a Directory from a list.
func NewDirectory(list []Partner) Directory {
	dir := make(Directory, len(list))
	for _, p := range list {
		dir[p.ID] = p
	}
	return dir
}

// ReturnDays reports the return window of a partner, 0 when unknown.
func (d Directory) ReturnDays(partnerID string) int {
	return d[partnerID].ReturnDays
}

// ErrPartnerNotFound indicates an unknown partner id.
var ErrPartnerNotFound = errors.New("partners: partner not found")
