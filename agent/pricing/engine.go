package pricing

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	quotex "github.com/tanpawarit/quote-assistant/agent/quote"
	"github.com/tanpawarit/quote-assistant/pkg/money"
)

var (
	ErrUnknownCode      = errors.New("unknown treatment code")
	ErrInvalidQuantity  = errors.New("quantity must be a finite number >= 0")
	ErrInvalidUnitPrice = errors.New("unit price must be a finite number >= 0")
	ErrBundleIncomplete = errors.New("bundle is incomplete")
)

type entry struct {
	template *Template
	variant  *Variant
}

// Engine prices treatment codes. It holds no mutable state after NewEngine.
type Engine struct {
	taxRate   float64
	templates map[string]*Template
	entries   map[string]entry
	codes     []string
}

// NewEngine indexes cfg without resolving bundle parts; a missing part is
// reported when the bundle is priced.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.validateTemplates(); err != nil {
		return nil, err
	}

	e := &Engine{
		taxRate:   cfg.TaxRate,
		templates: make(map[string]*Template, len(cfg.Templates)),
		entries:   make(map[string]entry, len(cfg.Templates)),
	}
	for i := range cfg.Templates {
		t := cfg.Templates[i]
		e.templates[t.Code] = &t
	}
	for _, code := range sortedKeys(e.templates) {
		t := e.templates[code]
		if len(t.Variants) == 0 {
			e.entries[t.Code] = entry{template: t}
			continue
		}
		for j := range t.Variants {
			v := t.Variants[j]
			e.entries[v.Code] = entry{template: t, variant: &v}
		}
	}
	e.codes = sortedKeys(e.entries)
	return e, nil
}

func (e *Engine) TaxRate() float64 {
	return e.taxRate
}

func (e *Engine) Has(code string) bool {
	_, ok := e.entries[strings.TrimSpace(code)]
	return ok
}

// Codes lists every priceable code, sorted.
func (e *Engine) Codes() []string {
	return append([]string(nil), e.codes...)
}

// Price expands code into priced line items in template declaration order.
// Bundles are all-or-nothing: if any part is missing nothing is returned.
func (e *Engine) Price(code string, quantity float64) ([]quotex.LineItem, error) {
	if !money.IsFinite(quantity) || quantity < 0 {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidQuantity, quantity)
	}

	code = strings.TrimSpace(code)
	ent, ok := e.entries[code]
	if !ok {
		return nil, fmt.Errorf("%w: %q (valid codes: %s)", ErrUnknownCode, code, strings.Join(e.codes, ", "))
	}

	lines, err := e.expand(ent.template)
	if err != nil {
		return nil, err
	}

	items := make([]quotex.LineItem, 0, len(lines))
	for _, l := range lines {
		item := priceLine(l, ent.variant, quantity)
		item.TreatmentCode = code
		items = append(items, item)
	}
	return items, nil
}

func (e *Engine) expand(t *Template) ([]TemplateLine, error) {
	if len(t.Parts) == 0 {
		return t.Lines, nil
	}
	lines := append([]TemplateLine(nil), t.Lines...)
	for _, part := range t.Parts {
		pt, ok := e.templates[part]
		if !ok {
			return nil, fmt.Errorf("%w: %q is missing part %q", ErrBundleIncomplete, t.Code, part)
		}
		if len(pt.Parts) > 0 {
			return nil, fmt.Errorf("%w: %q nests bundle %q", ErrBundleIncomplete, t.Code, part)
		}
		lines = append(lines, pt.Lines...)
	}
	return lines, nil
}

// PriceCustom prices a caller-supplied line. No tiers or minimums apply.
func (e *Engine) PriceCustom(description string, unit quotex.Unit, unitPrice, quantity float64) (quotex.LineItem, error) {
	if !money.IsFinite(quantity) || quantity < 0 {
		return quotex.LineItem{}, fmt.Errorf("%w: got %v", ErrInvalidQuantity, quantity)
	}
	if !money.IsFinite(unitPrice) || unitPrice < 0 {
		return quotex.LineItem{}, fmt.Errorf("%w: got %v", ErrInvalidUnitPrice, unitPrice)
	}
	if !unit.Valid() {
		return quotex.LineItem{}, fmt.Errorf("%w: %q", quotex.ErrInvalidUnit, unit)
	}

	price := money.Round2(unitPrice)
	return quotex.LineItem{
		Description: strings.TrimSpace(description),
		Unit:        unit,
		UnitPrice:   price,
		Quantity:    quantity,
		LineTotal:   LineTotal(price, quantity),
	}, nil
}

// LineTotal is round2(unitPrice × quantity); unitPrice is expected rounded.
func LineTotal(unitPrice, quantity float64) float64 {
	return money.Mul(unitPrice, quantity)
}

func priceLine(l TemplateLine, variant *Variant, quantity float64) quotex.LineItem {
	base := l.UnitPrice
	description := l.Description
	if variant != nil {
		base = variant.UnitPrice
		if variant.Label != "" {
			description = fmt.Sprintf("%s (%s)", l.Description, variant.Label)
		}
	}

	unitPrice := money.Round2(base)
	var tierLabel string
	if tier, ok := selectTier(l.Tiers, quantity); ok {
		unitPrice = tier.price(base)
		if tier.MinQuantity > 0 {
			tierLabel = "staffel: ≥" + formatQuantity(tier.MinQuantity)
		}
	}

	item := quotex.LineItem{
		Description: description,
		Unit:        l.Unit,
		UnitPrice:   unitPrice,
		Quantity:    quantity,
		LineTotal:   LineTotal(unitPrice, quantity),
		TierLabel:   tierLabel,
	}

	if l.MinimumTotal > 0 && quantity > 0 && item.LineTotal < l.MinimumTotal {
		item.UnitPrice = money.Div(l.MinimumTotal, quantity)
		item.LineTotal = money.Round2(l.MinimumTotal)
		item.MinimumApplied = true
	}
	return item
}

// selectTier picks the tier with the largest MinQuantity <= quantity. Tiers
// are sorted ascending by Config.Validate.
func selectTier(tiers []Tier, quantity float64) (Tier, bool) {
	var (
		picked Tier
		found  bool
	)
	for _, t := range tiers {
		if t.MinQuantity > quantity {
			break
		}
		picked, found = t, true
	}
	return picked, found
}

func (t Tier) price(base float64) float64 {
	if t.UnitPrice > 0 {
		return money.Round2(t.UnitPrice)
	}
	return money.Mul(base, t.Factor)
}

func formatQuantity(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
