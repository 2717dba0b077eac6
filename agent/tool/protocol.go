package tool

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"

	"github.com/tanpawarit/quote-assistant/agent/catalog"
	contractx "github.com/tanpawarit/quote-assistant/agent/contract"
	"github.com/tanpawarit/quote-assistant/agent/pricing"
	quotex "github.com/tanpawarit/quote-assistant/agent/quote"
	"github.com/tanpawarit/quote-assistant/pkg/money"
)

type handler func(ctx context.Context, a args) (contractx.CommandResult, error)

// Protocol is the closed command vocabulary offered to the proposer. It prices
// and validates but never holds quote state.
type Protocol struct {
	catalog  *catalog.Catalog
	engine   *pricing.Engine
	infos    []*schema.ToolInfo
	handlers map[string]handler
}

var _ contractx.CommandExecutor = (*Protocol)(nil)

func New(cat *catalog.Catalog, engine *pricing.Engine) (*Protocol, error) {
	if cat == nil {
		return nil, errors.New("tool: catalog is required")
	}
	if engine == nil {
		return nil, errors.New("tool: pricing engine is required")
	}

	p := &Protocol{
		catalog: cat,
		engine:  engine,
		infos:   infos(cat.Codes()),
	}
	p.handlers = map[string]handler{
		CommandAddTreatment:      p.addTreatment,
		CommandAddCustomLine:     p.addCustomLine,
		CommandUpdateLine:        p.updateLine,
		CommandRemoveLine:        p.removeLine,
		CommandSetCustomer:       p.setCustomer,
		CommandSetDiscount:       p.setDiscount,
		CommandAddNote:           p.addNote,
		CommandSetQuoteDetails:   p.setQuoteDetails,
		CommandCalculateArea:     p.calculateArea,
		CommandSuggestTreatments: p.suggestTreatments,
	}
	return p, nil
}

// Infos returns the tool schemas to bind on the chat model.
func (p *Protocol) Infos() []*schema.ToolInfo {
	return append([]*schema.ToolInfo(nil), p.infos...)
}

func (p *Protocol) Names() []string {
	return append([]string(nil), commandOrder...)
}

func (p *Protocol) Has(command string) bool {
	_, ok := p.handlers[command]
	return ok
}

func (p *Protocol) TaxRate() float64 {
	return p.engine.TaxRate()
}

// Execute validates and runs one invocation. Failures are reported as an
// error result so the proposer can read them on the next round.
func (p *Protocol) Execute(ctx context.Context, inv contractx.CommandInvocation) contractx.CommandResult {
	h, ok := p.handlers[inv.Command]
	if !ok {
		log.Warn().Str("command", inv.Command).Str("invocation_id", inv.ID).Msg("unknown command")
		res := contractx.ErrorResult(inv.Command, fmt.Sprintf("%v %q; available: %s",
			contractx.ErrUnknownCommand, inv.Command, strings.Join(commandOrder, ", ")))
		res.InvocationID = inv.ID
		return res
	}

	res, err := h(ctx, args(inv.Args))
	if err != nil {
		log.Debug().Err(err).Str("command", inv.Command).Str("invocation_id", inv.ID).Msg("command rejected")
		res = contractx.ErrorResult(inv.Command, err.Error())
	}
	res.InvocationID = inv.ID
	res.Command = inv.Command

	log.Debug().
		Str("command", inv.Command).
		Str("invocation_id", inv.ID).
		Str("action", string(res.Action)).
		Int("lines", len(res.Lines)).
		Msg("command executed")
	return res
}

func (p *Protocol) addTreatment(_ context.Context, a args) (contractx.CommandResult, error) {
	code, err := a.requiredStr("treatment_code")
	if err != nil {
		return contractx.CommandResult{}, err
	}
	code = strings.ToLower(code)
	qty, err := a.requiredNonNegative("quantity")
	if err != nil {
		return contractx.CommandResult{}, err
	}

	if _, ok := p.catalog.Describe(code); !ok {
		return contractx.CommandResult{}, fmt.Errorf("unknown treatment code %q; valid codes: %s",
			code, strings.Join(p.catalog.Codes(), ", "))
	}
	lines, err := p.engine.Price(code, qty)
	if err != nil {
		return contractx.CommandResult{}, err
	}

	return contractx.CommandResult{
		Action: contractx.ActionAddLines,
		Lines:  lines,
		Total:  sumLines(lines),
	}, nil
}

func (p *Protocol) addCustomLine(_ context.Context, a args) (contractx.CommandResult, error) {
	desc, err := a.requiredStr("description")
	if err != nil {
		return contractx.CommandResult{}, err
	}
	qty, err := a.requiredNonNegative("quantity")
	if err != nil {
		return contractx.CommandResult{}, err
	}
	rawUnit, err := a.requiredStr("unit")
	if err != nil {
		return contractx.CommandResult{}, err
	}
	unit, err := quotex.ParseUnit(rawUnit)
	if err != nil {
		return contractx.CommandResult{}, err
	}
	price, err := a.requiredNonNegative("unit_price")
	if err != nil {
		return contractx.CommandResult{}, err
	}

	line, err := p.engine.PriceCustom(desc, unit, price, qty)
	if err != nil {
		return contractx.CommandResult{}, err
	}
	return contractx.CommandResult{
		Action: contractx.ActionAddLines,
		Lines:  []quotex.LineItem{line},
		Total:  line.LineTotal,
	}, nil
}

func (p *Protocol) updateLine(_ context.Context, a args) (contractx.CommandResult, error) {
	index, err := requiredLineIndex(a)
	if err != nil {
		return contractx.CommandResult{}, err
	}

	var upd contractx.LineUpdate
	if desc, ok, err := a.str("description"); err != nil {
		return contractx.CommandResult{}, err
	} else if ok {
		if desc == "" {
			return contractx.CommandResult{}, errors.New("description must not be empty")
		}
		upd.Description = &desc
	}
	if qty, ok, err := a.nonNegative("quantity"); err != nil {
		return contractx.CommandResult{}, err
	} else if ok {
		upd.Quantity = &qty
	}
	if price, ok, err := a.nonNegative("unit_price"); err != nil {
		return contractx.CommandResult{}, err
	} else if ok {
		price = money.Round2(price)
		upd.UnitPrice = &price
	}
	if raw, ok, err := a.str("unit"); err != nil {
		return contractx.CommandResult{}, err
	} else if ok {
		unit, err := quotex.ParseUnit(raw)
		if err != nil {
			return contractx.CommandResult{}, err
		}
		upd.Unit = &unit
	}

	if upd.Description == nil && upd.Quantity == nil && upd.UnitPrice == nil && upd.Unit == nil {
		return contractx.CommandResult{}, errors.New("update_line needs at least one of description, quantity, unit_price, unit")
	}
	return contractx.CommandResult{
		Action: contractx.ActionUpdateLine,
		Index:  index,
		Update: &upd,
	}, nil
}

func (p *Protocol) removeLine(_ context.Context, a args) (contractx.CommandResult, error) {
	index, err := requiredLineIndex(a)
	if err != nil {
		return contractx.CommandResult{}, err
	}
	return contractx.CommandResult{
		Action: contractx.ActionRemoveLine,
		Index:  index,
	}, nil
}

func (p *Protocol) setCustomer(_ context.Context, a args) (contractx.CommandResult, error) {
	var patch quotex.CustomerPatch
	fields := []struct {
		key string
		dst **string
	}{
		{"name", &patch.Name},
		{"email", &patch.Email},
		{"phone", &patch.Phone},
		{"street", &patch.Street},
		{"postal_code", &patch.PostalCode},
		{"city", &patch.City},
	}
	for _, f := range fields {
		v, ok, err := a.str(f.key)
		if err != nil {
			return contractx.CommandResult{}, err
		}
		if ok {
			*f.dst = &v
		}
	}
	if patch.Email != nil && *patch.Email != "" && !strings.Contains(*patch.Email, "@") {
		return contractx.CommandResult{}, fmt.Errorf("email %q is not an email address", *patch.Email)
	}
	if patch.Empty() {
		return contractx.CommandResult{}, errors.New("set_customer needs at least one customer field")
	}
	return contractx.CommandResult{
		Action:   contractx.ActionSetCustomer,
		Customer: &patch,
	}, nil
}

func (p *Protocol) setDiscount(_ context.Context, a args) (contractx.CommandResult, error) {
	kind, ok, err := a.enum("type", string(quotex.DiscountPercentage), string(quotex.DiscountFixed))
	if err != nil {
		return contractx.CommandResult{}, err
	}
	if !ok {
		return contractx.CommandResult{}, errors.New("type is required")
	}
	value, err := a.requiredNonNegative("value")
	if err != nil {
		return contractx.CommandResult{}, err
	}
	return contractx.CommandResult{
		Action:   contractx.ActionSetDiscount,
		Discount: &quotex.Discount{Type: quotex.DiscountType(kind), Value: value},
	}, nil
}

func (p *Protocol) addNote(_ context.Context, a args) (contractx.CommandResult, error) {
	text, err := a.requiredStr("text")
	if err != nil {
		return contractx.CommandResult{}, err
	}
	return contractx.CommandResult{
		Action: contractx.ActionAddNote,
		Note:   text,
	}, nil
}

func (p *Protocol) setQuoteDetails(_ context.Context, a args) (contractx.CommandResult, error) {
	var patch quotex.DetailsPatch
	var err error

	if patch.DiagnosisTags, _, err = a.strList("diagnosis_tags"); err != nil {
		return contractx.CommandResult{}, err
	}
	if patch.TreatmentTags, _, err = a.strList("treatment_tags"); err != nil {
		return contractx.CommandResult{}, err
	}
	if v, ok, err := a.nonNegative("area_m2"); err != nil {
		return contractx.CommandResult{}, err
	} else if ok {
		v = money.Round2(v)
		patch.AreaM2 = &v
	}
	if v, ok, err := a.integer("warranty_years", 0); err != nil {
		return contractx.CommandResult{}, err
	} else if ok {
		patch.WarrantyYears = &v
	}
	if v, ok, err := a.integer("validity_days", 1); err != nil {
		return contractx.CommandResult{}, err
	} else if ok {
		patch.ValidityDays = &v
	}
	texts := []struct {
		key string
		dst **string
	}{
		{"duration", &patch.Duration},
		{"intro_text", &patch.IntroText},
		{"payment_terms", &patch.PaymentTerms},
	}
	for _, f := range texts {
		v, ok, err := a.str(f.key)
		if err != nil {
			return contractx.CommandResult{}, err
		}
		if ok {
			*f.dst = &v
		}
	}

	if patch.Empty() {
		return contractx.CommandResult{}, errors.New("set_quote_details needs at least one field")
	}
	return contractx.CommandResult{
		Action:  contractx.ActionSetQuoteDetails,
		Details: &patch,
	}, nil
}

func (p *Protocol) calculateArea(_ context.Context, a args) (contractx.CommandResult, error) {
	length, err := a.requiredNonNegative("length")
	if err != nil {
		return contractx.CommandResult{}, err
	}
	width, err := a.requiredNonNegative("width")
	if err != nil {
		return contractx.CommandResult{}, err
	}
	height, hasHeight, err := a.nonNegative("height")
	if err != nil {
		return contractx.CommandResult{}, err
	}
	kind, ok, err := a.enum("type", "floor", "walls", "both")
	if err != nil {
		return contractx.CommandResult{}, err
	}
	if !ok {
		kind = "floor"
	}

	perimeter := 2 * (length + width)
	area := &contractx.AreaResult{
		Type:      kind,
		Length:    length,
		Width:     width,
		Perimeter: money.Round1(perimeter),
	}
	if kind == "floor" || kind == "both" {
		floor := money.Round1(length * width)
		area.FloorArea = &floor
	}
	if kind == "walls" || kind == "both" {
		if !hasHeight || height <= 0 {
			return contractx.CommandResult{}, fmt.Errorf("height is required to compute %s area", kind)
		}
		area.Height = height
		walls := money.Round1(perimeter * height)
		area.WallArea = &walls
	}
	return contractx.CommandResult{
		Action: contractx.ActionAreaCalculated,
		Area:   area,
	}, nil
}

func (p *Protocol) suggestTreatments(_ context.Context, a args) (contractx.CommandResult, error) {
	problem, err := a.requiredStr("problem")
	if err != nil {
		return contractx.CommandResult{}, err
	}

	codes := p.catalog.Suggest(problem)
	out := contractx.CommandResult{Action: contractx.ActionSuggestions}
	for _, code := range codes {
		d, ok := p.catalog.Describe(code)
		if !ok {
			continue
		}
		out.Suggestions = append(out.Suggestions, contractx.Suggestion{
			Code:  d.Code,
			Label: d.Label,
			Unit:  d.Unit,
			Note:  d.ApplicabilityNote,
		})
	}
	if len(out.Suggestions) == 0 {
		out.Message = "no catalog treatment matches this problem; ask the operator for more detail"
	}
	return out, nil
}

// requiredLineIndex converts the 1-based line_index to a zero-based index.
// Range is checked by the reducer against the state it applies to.
func requiredLineIndex(a args) (int, error) {
	idx, ok, err := a.integer("line_index", 1)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, errors.New("line_index is required")
	}
	return idx - 1, nil
}

func sumLines(lines []quotex.LineItem) float64 {
	totals := make([]float64, len(lines))
	for i, l := range lines {
		totals[i] = l.LineTotal
	}
	return money.Sum(totals...)
}
