package state

import (
	"errors"
	"fmt"
	"strings"

	quotex "github.com/tanpawarit/quote-assistant/agent/quote"
	"github.com/tanpawarit/quote-assistant/pkg/money"
)

var ErrInconsistentPayload = errors.New("quote payload totals are inconsistent")

type PayloadItem struct {
	Description    string      `json:"description"`
	Quantity       float64     `json:"quantity"`
	Unit           quotex.Unit `json:"unit"`
	UnitPrice      float64     `json:"unit_price"`
	Total          float64     `json:"total"`
	TreatmentCode  string      `json:"treatment_code,omitempty"`
	TierLabel      string      `json:"tier_label,omitempty"`
	MinimumApplied bool        `json:"minimum_applied,omitempty"`
}

// Payload is the flat shape handed to storage and the document renderer.
// Aggregate fields are derived when the payload is built and ignored when it
// is read back.
type Payload struct {
	CustomerName       string `json:"customer_name,omitempty"`
	CustomerEmail      string `json:"customer_email,omitempty"`
	CustomerPhone      string `json:"customer_phone,omitempty"`
	CustomerStreet     string `json:"customer_street,omitempty"`
	CustomerPostalCode string `json:"customer_postal_code,omitempty"`
	CustomerCity       string `json:"customer_city,omitempty"`

	Items []PayloadItem `json:"items"`

	Subtotal       float64             `json:"subtotal"`
	DiscountType   quotex.DiscountType `json:"discount_type,omitempty"`
	DiscountValue  float64             `json:"discount_value,omitempty"`
	DiscountAmount float64             `json:"discount_amount"`
	AfterDiscount  float64             `json:"after_discount"`
	TaxRate        float64             `json:"tax_rate"`
	AmountExclTax  float64             `json:"amount_excl_tax"`
	TaxAmount      float64             `json:"tax_amount"`
	Total          float64             `json:"total"`

	Notes         string   `json:"notes,omitempty"`
	DiagnosisTags []string `json:"diagnosis_tags,omitempty"`
	TreatmentTags []string `json:"treatment_tags,omitempty"`
	AreaM2        float64  `json:"area_m2,omitempty"`
	Duration      string   `json:"duration,omitempty"`
	WarrantyYears int      `json:"warranty_years,omitempty"`
	ValidityDays  int      `json:"validity_days,omitempty"`
	IntroText     string   `json:"intro_text,omitempty"`
	PaymentTerms  string   `json:"payment_terms,omitempty"`
}

func (q QuoteState) ToPayload(taxRate float64) Payload {
	totals := q.Totals(taxRate)
	p := Payload{
		CustomerName:       q.Customer.Name,
		CustomerEmail:      q.Customer.Email,
		CustomerPhone:      q.Customer.Phone,
		CustomerStreet:     q.Customer.Street,
		CustomerPostalCode: q.Customer.PostalCode,
		CustomerCity:       q.Customer.City,

		Items: make([]PayloadItem, 0, len(q.Lines)),

		Subtotal:       totals.SubtotalInclTax,
		DiscountType:   q.Discount.Type,
		DiscountValue:  q.Discount.Value,
		DiscountAmount: totals.DiscountAmount,
		AfterDiscount:  totals.AfterDiscount,
		TaxRate:        taxRate,
		AmountExclTax:  totals.ExclTax,
		TaxAmount:      totals.TaxAmount,
		Total:          totals.Total,

		Notes:         q.Notes,
		DiagnosisTags: append([]string(nil), q.Details.DiagnosisTags...),
		TreatmentTags: append([]string(nil), q.Details.TreatmentTags...),
		AreaM2:        q.Details.AreaM2,
		Duration:      q.Details.Duration,
		WarrantyYears: q.Details.WarrantyYears,
		ValidityDays:  q.Details.ValidityDays,
		IntroText:     q.Details.IntroText,
		PaymentTerms:  q.Details.PaymentTerms,
	}
	for _, l := range q.Lines {
		p.Items = append(p.Items, PayloadItem{
			Description:    l.Description,
			Quantity:       l.Quantity,
			Unit:           l.Unit,
			UnitPrice:      l.UnitPrice,
			Total:          l.LineTotal,
			TreatmentCode:  l.TreatmentCode,
			TierLabel:      l.TierLabel,
			MinimumApplied: l.MinimumApplied,
		})
	}
	return p
}

// FromPayload rebuilds an equivalent QuoteState. Line totals are taken as
// stored; the payload's aggregates are not trusted and are recomputed on read.
func FromPayload(p Payload, newID func() string) QuoteState {
	if newID == nil {
		newID = NewLineID
	}
	q := NewQuoteState()
	q.Customer = quotex.Customer{
		Name:       p.CustomerName,
		Email:      p.CustomerEmail,
		Phone:      p.CustomerPhone,
		Street:     p.CustomerStreet,
		PostalCode: p.CustomerPostalCode,
		City:       p.CustomerCity,
	}
	for _, it := range p.Items {
		q.Lines = append(q.Lines, quotex.LineItem{
			ID:             newID(),
			TreatmentCode:  it.TreatmentCode,
			Description:    it.Description,
			Unit:           it.Unit,
			UnitPrice:      it.UnitPrice,
			Quantity:       it.Quantity,
			LineTotal:      it.Total,
			TierLabel:      it.TierLabel,
			MinimumApplied: it.MinimumApplied,
		})
	}
	if p.DiscountType != "" {
		q.Discount = quotex.Discount{Type: p.DiscountType, Value: p.DiscountValue}
	}
	q.Notes = p.Notes
	q.Details = quotex.Details{
		DiagnosisTags: append([]string(nil), p.DiagnosisTags...),
		TreatmentTags: append([]string(nil), p.TreatmentTags...),
		AreaM2:        p.AreaM2,
		Duration:      p.Duration,
		WarrantyYears: p.WarrantyYears,
		ValidityDays:  p.ValidityDays,
		IntroText:     p.IntroText,
		PaymentTerms:  p.PaymentTerms,
	}
	return q
}

// CheckConsistency verifies the numeric relations a renderer relies on.
func (p Payload) CheckConsistency() error {
	totals := make([]float64, len(p.Items))
	for i, it := range p.Items {
		totals[i] = it.Total
	}
	if sum := money.Sum(totals...); sum != p.Subtotal {
		return fmt.Errorf("%w: items sum to %.2f, subtotal is %.2f", ErrInconsistentPayload, sum, p.Subtotal)
	}
	if after := money.Sub(p.Subtotal, p.DiscountAmount); after != p.AfterDiscount {
		return fmt.Errorf("%w: subtotal minus discount is %.2f, after_discount is %.2f", ErrInconsistentPayload, after, p.AfterDiscount)
	}
	if sum := money.Sum(p.AmountExclTax, p.TaxAmount); sum != p.AfterDiscount {
		return fmt.Errorf("%w: excl tax plus tax is %.2f, after_discount is %.2f", ErrInconsistentPayload, sum, p.AfterDiscount)
	}
	if p.Total != p.AfterDiscount {
		return fmt.Errorf("%w: total %.2f differs from after_discount %.2f", ErrInconsistentPayload, p.Total, p.AfterDiscount)
	}
	return nil
}

// Lead is the intake record a quote can be started from.
type Lead struct {
	Name       string `json:"name"`
	Email      string `json:"email,omitempty"`
	Phone      string `json:"phone,omitempty"`
	Street     string `json:"street,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	City       string `json:"city,omitempty"`
	Problem    string `json:"problem,omitempty"`
}

func FromLead(lead Lead) QuoteState {
	q := NewQuoteState()
	q.Customer = quotex.Customer{
		Name:       strings.TrimSpace(lead.Name),
		Email:      strings.TrimSpace(lead.Email),
		Phone:      strings.TrimSpace(lead.Phone),
		Street:     strings.TrimSpace(lead.Street),
		PostalCode: strings.TrimSpace(lead.PostalCode),
		City:       strings.TrimSpace(lead.City),
	}
	if problem := strings.TrimSpace(lead.Problem); problem != "" {
		q.Notes = "Aanvraag klant: " + problem
	}
	return q
}
