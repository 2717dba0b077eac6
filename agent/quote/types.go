package quote

import (
	"errors"
	"fmt"
	"strings"
)

type Unit string

const (
	UnitArea   Unit = "m2"
	UnitLinear Unit = "m1"
	UnitCount  Unit = "stuk"
)

var ErrInvalidUnit = errors.New("invalid unit")

// ParseUnit accepts the canonical unit and the aliases operators tend to type.
func ParseUnit(raw string) (Unit, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "m2", "m²", "m^2", "vierkante meter", "area":
		return UnitArea, nil
	case "m1", "m", "meter", "lopende meter", "linear":
		return UnitLinear, nil
	case "stuk", "stuks", "st", "pcs", "piece", "unit":
		return UnitCount, nil
	default:
		return "", fmt.Errorf("%w: %q (use m2, m1 or stuk)", ErrInvalidUnit, raw)
	}
}

func (u Unit) Valid() bool {
	return u == UnitArea || u == UnitLinear || u == UnitCount
}

// LineItem is immutable once priced; only the reducer replaces it.
type LineItem struct {
	ID             string  `json:"id,omitempty"`
	TreatmentCode  string  `json:"treatment_code,omitempty"`
	Description    string  `json:"description"`
	Unit           Unit    `json:"unit"`
	UnitPrice      float64 `json:"unit_price"`
	Quantity       float64 `json:"quantity"`
	LineTotal      float64 `json:"line_total"`
	TierLabel      string  `json:"tier_label,omitempty"`
	MinimumApplied bool    `json:"minimum_applied,omitempty"`
}

type Customer struct {
	Name       string `json:"name,omitempty"`
	Email      string `json:"email,omitempty"`
	Phone      string `json:"phone,omitempty"`
	Street     string `json:"street,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	City       string `json:"city,omitempty"`
}

// CustomerPatch carries only the fields a command actually set.
type CustomerPatch struct {
	Name       *string `json:"name,omitempty"`
	Email      *string `json:"email,omitempty"`
	Phone      *string `json:"phone,omitempty"`
	Street     *string `json:"street,omitempty"`
	PostalCode *string `json:"postal_code,omitempty"`
	City       *string `json:"city,omitempty"`
}

func (p CustomerPatch) Empty() bool {
	return p.Name == nil && p.Email == nil && p.Phone == nil &&
		p.Street == nil && p.PostalCode == nil && p.City == nil
}

func (c Customer) Merge(p CustomerPatch) Customer {
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.Email != nil {
		c.Email = *p.Email
	}
	if p.Phone != nil {
		c.Phone = *p.Phone
	}
	if p.Street != nil {
		c.Street = *p.Street
	}
	if p.PostalCode != nil {
		c.PostalCode = *p.PostalCode
	}
	if p.City != nil {
		c.City = *p.City
	}
	return c
}

type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

func (t DiscountType) Valid() bool {
	return t == DiscountPercentage || t == DiscountFixed
}

type Discount struct {
	Type  DiscountType `json:"type"`
	Value float64      `json:"value"`
}

func (d Discount) IsZero() bool {
	return d.Type == "" || d.Value == 0
}

type Details struct {
	DiagnosisTags []string `json:"diagnosis_tags,omitempty"`
	TreatmentTags []string `json:"treatment_tags,omitempty"`
	AreaM2        float64  `json:"area_m2,omitempty"`
	Duration      string   `json:"duration,omitempty"`
	WarrantyYears int      `json:"warranty_years,omitempty"`
	ValidityDays  int      `json:"validity_days,omitempty"`
	IntroText     string   `json:"intro_text,omitempty"`
	PaymentTerms  string   `json:"payment_terms,omitempty"`
}

type DetailsPatch struct {
	DiagnosisTags []string `json:"diagnosis_tags,omitempty"`
	TreatmentTags []string `json:"treatment_tags,omitempty"`
	AreaM2        *float64 `json:"area_m2,omitempty"`
	Duration      *string  `json:"duration,omitempty"`
	WarrantyYears *int     `json:"warranty_years,omitempty"`
	ValidityDays  *int     `json:"validity_days,omitempty"`
	IntroText     *string  `json:"intro_text,omitempty"`
	PaymentTerms  *string  `json:"payment_terms,omitempty"`
}

func (p DetailsPatch) Empty() bool {
	return p.DiagnosisTags == nil && p.TreatmentTags == nil && p.AreaM2 == nil &&
		p.Duration == nil && p.WarrantyYears == nil && p.ValidityDays == nil &&
		p.IntroText == nil && p.PaymentTerms == nil
}

func (d Details) Merge(p DetailsPatch) Details {
	if p.DiagnosisTags != nil {
		d.DiagnosisTags = append([]string(nil), p.DiagnosisTags...)
	}
	if p.TreatmentTags != nil {
		d.TreatmentTags = append([]string(nil), p.TreatmentTags...)
	}
	if p.AreaM2 != nil {
		d.AreaM2 = *p.AreaM2
	}
	if p.Duration != nil {
		d.Duration = *p.Duration
	}
	if p.WarrantyYears != nil {
		d.WarrantyYears = *p.WarrantyYears
	}
	if p.ValidityDays != nil {
		d.ValidityDays = *p.ValidityDays
	}
	if p.IntroText != nil {
		d.IntroText = *p.IntroText
	}
	if p.PaymentTerms != nil {
		d.PaymentTerms = *p.PaymentTerms
	}
	return d
}
