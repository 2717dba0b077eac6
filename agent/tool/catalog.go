package tool

import (
	"github.com/cloudwego/eino/schema"
)

// Command names. The set is closed; anything else the model asks for is
// answered with an error result.
const (
	CommandAddTreatment      = "add_treatment"
	CommandAddCustomLine     = "add_custom_line"
	CommandUpdateLine        = "update_line"
	CommandRemoveLine        = "remove_line"
	CommandSetCustomer       = "set_customer"
	CommandSetDiscount       = "set_discount"
	CommandAddNote           = "add_note"
	CommandSetQuoteDetails   = "set_quote_details"
	CommandCalculateArea     = "calculate_area"
	CommandSuggestTreatments = "suggest_treatments"
)

var commandOrder = []string{
	CommandAddTreatment,
	CommandAddCustomLine,
	CommandUpdateLine,
	CommandRemoveLine,
	CommandSetCustomer,
	CommandSetDiscount,
	CommandAddNote,
	CommandSetQuoteDetails,
	CommandCalculateArea,
	CommandSuggestTreatments,
}

var unitEnum = []string{"m2", "m1", "stuk"}

func infos(treatmentCodes []string) []*schema.ToolInfo {
	quantity := func(desc string, required bool) *schema.ParameterInfo {
		return &schema.ParameterInfo{
			Type:     schema.Number,
			Desc:     desc + " Plain number, or arithmetic such as \"2*(4+5)\".",
			Required: required,
		}
	}
	lineIndex := &schema.ParameterInfo{
		Type:     schema.Integer,
		Desc:     "1-based position of the line as shown in the quote snapshot.",
		Required: true,
	}

	return []*schema.ToolInfo{
		{
			Name: CommandAddTreatment,
			Desc: "Add a catalog treatment to the quote. The system prices it; never pass a price.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"treatment_code": {Type: schema.String, Desc: "Treatment code from the catalog.", Enum: treatmentCodes, Required: true},
				"quantity":       quantity("Quantity in the treatment's unit.", true),
			}),
		},
		{
			Name: CommandAddCustomLine,
			Desc: "Add a free line that is not in the catalog, with an operator-supplied unit price.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"description": {Type: schema.String, Desc: "Line description.", Required: true},
				"quantity":    quantity("Quantity.", true),
				"unit":        {Type: schema.String, Desc: "Unit of measure.", Enum: unitEnum, Required: true},
				"unit_price":  {Type: schema.Number, Desc: "Unit price in euro including tax, as stated by the operator.", Required: true},
			}),
		},
		{
			Name: CommandUpdateLine,
			Desc: "Change fields of an existing line. The line total is recomputed by the system.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"line_index":  lineIndex,
				"description": {Type: schema.String, Desc: "New description."},
				"quantity":    quantity("New quantity.", false),
				"unit_price":  {Type: schema.Number, Desc: "New unit price in euro including tax."},
				"unit":        {Type: schema.String, Desc: "New unit.", Enum: unitEnum},
			}),
		},
		{
			Name: CommandRemoveLine,
			Desc: "Remove a line from the quote.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"line_index": lineIndex,
			}),
		},
		{
			Name: CommandSetCustomer,
			Desc: "Set customer fields. Only the fields you pass are changed.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"name":        {Type: schema.String, Desc: "Customer name."},
				"email":       {Type: schema.String, Desc: "Email address."},
				"phone":       {Type: schema.String, Desc: "Phone number."},
				"street":      {Type: schema.String, Desc: "Street and house number."},
				"postal_code": {Type: schema.String, Desc: "Postal code."},
				"city":        {Type: schema.String, Desc: "City."},
			}),
		},
		{
			Name: CommandSetDiscount,
			Desc: "Set the quote discount. Replaces any previous discount; value 0 clears it.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"type":  {Type: schema.String, Desc: "Discount type.", Enum: []string{"percentage", "fixed"}, Required: true},
				"value": {Type: schema.Number, Desc: "Percentage (0-100) or fixed euro amount.", Required: true},
			}),
		},
		{
			Name: CommandAddNote,
			Desc: "Append a note to the quote.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"text": {Type: schema.String, Desc: "Note text.", Required: true},
			}),
		},
		{
			Name: CommandSetQuoteDetails,
			Desc: "Set descriptive quote metadata. Only the fields you pass are changed.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"diagnosis_tags": {Type: schema.Array, Desc: "Diagnosed problems.", ElemInfo: &schema.ParameterInfo{Type: schema.String}},
				"treatment_tags": {Type: schema.Array, Desc: "Treatment keywords.", ElemInfo: &schema.ParameterInfo{Type: schema.String}},
				"area_m2":        {Type: schema.Number, Desc: "Treated area in m2."},
				"duration":       {Type: schema.String, Desc: "Expected duration of the work, e.g. \"3 werkdagen\"."},
				"warranty_years": {Type: schema.Integer, Desc: "Warranty in years."},
				"validity_days":  {Type: schema.Integer, Desc: "Days the quote stays valid."},
				"intro_text":     {Type: schema.String, Desc: "Opening paragraph for the customer."},
				"payment_terms":  {Type: schema.String, Desc: "Payment terms."},
			}),
		},
		{
			Name: CommandCalculateArea,
			Desc: "Compute floor and/or wall area from room dimensions in meters. Does not change the quote.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"length": quantity("Room length in meters.", true),
				"width":  quantity("Room width in meters.", true),
				"height": quantity("Wall height in meters; required for walls.", false),
				"type":   {Type: schema.String, Desc: "Which area to compute; default floor.", Enum: []string{"floor", "walls", "both"}},
			}),
		},
		{
			Name: CommandSuggestTreatments,
			Desc: "Look up catalog treatments that fit a described moisture problem. Does not change the quote.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"problem": {Type: schema.String, Desc: "Problem description in the operator's words.", Required: true},
			}),
		},
	}
}
