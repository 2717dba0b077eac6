package tool

import (
	"testing"

	"github.com/tanpawarit/quote-assistant/agent/catalog"
	"github.com/tanpawarit/quote-assistant/agent/pricing"
)

func newTestProtocol(t *testing.T) *Protocol {
	t.Helper()

	cat, err := catalog.LoadDefault()
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	cfg, err := pricing.LoadDefaultConfig()
	if err != nil {
		t.Fatalf("load pricing config: %v", err)
	}
	engine, err := pricing.NewEngine(cfg)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	p, err := New(cat, engine)
	if err != nil {
		t.Fatalf("new protocol: %v", err)
	}
	return p
}

func TestInfosCoverEveryCommand(t *testing.T) {
	t.Parallel()

	p := newTestProtocol(t)
	infos := p.Infos()
	if len(infos) != len(commandOrder) {
		t.Fatalf("expected %d tool infos, got %d", len(commandOrder), len(infos))
	}
	for i, info := range infos {
		if info.Name != commandOrder[i] {
			t.Fatalf("info %d: expected %s, got %s", i, commandOrder[i], info.Name)
		}
		if !p.Has(info.Name) {
			t.Fatalf("no handler for %s", info.Name)
		}
		if info.ParamsOneOf == nil {
			t.Fatalf("%s has no parameters", info.Name)
		}
		if info.Desc == "" {
			t.Fatalf("%s has no description", info.Name)
		}
	}
}

// Every code the catalog advertises must be priceable, and the descriptive
// flags must agree with what the engine actually does.
func TestCatalogAndPricingAgree(t *testing.T) {
	t.Parallel()

	cat, err := catalog.LoadDefault()
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	cfg, err := pricing.LoadDefaultConfig()
	if err != nil {
		t.Fatalf("load pricing config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default pricing config invalid: %v", err)
	}
	engine, err := pricing.NewEngine(cfg)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	for _, code := range cat.Codes() {
		d, _ := cat.Describe(code)
		if !engine.Has(code) {
			t.Fatalf("%s: catalog code has no pricing template", code)
		}

		lines, err := engine.Price(code, 1)
		if err != nil {
			t.Fatalf("%s: price: %v", code, err)
		}
		if d.IsBundle != (len(lines) > 1) {
			t.Fatalf("%s: bundle flag %v but engine returned %d lines", code, d.IsBundle, len(lines))
		}
		if lines[0].Unit != d.Unit {
			t.Fatalf("%s: catalog unit %s, priced unit %s", code, d.Unit, lines[0].Unit)
		}

		small, err := engine.Price(code, 0.01)
		if err != nil {
			t.Fatalf("%s: price small: %v", code, err)
		}
		raised := false
		for _, l := range small {
			raised = raised || l.MinimumApplied
		}
		if raised != d.HasMinimumPrice {
			t.Fatalf("%s: minimum flag %v, engine raised=%v", code, d.HasMinimumPrice, raised)
		}

		if d.HasTieredPricing {
			large, err := engine.Price(code, 1000)
			if err != nil {
				t.Fatalf("%s: price large: %v", code, err)
			}
			if large[0].TierLabel == "" {
				t.Fatalf("%s: flagged tiered but no tier applied at 1000", code)
			}
		}
	}
}

func TestNewRequiresDependencies(t *testing.T) {
	t.Parallel()

	if _, err := New(nil, nil); err == nil {
		t.Fatal("expected error for nil catalog")
	}
	cat, err := catalog.LoadDefault()
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	if _, err := New(cat, nil); err == nil {
		t.Fatal("expected error for nil engine")
	}
}
