package pricing

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/viper"

	quotex "github.com/tanpawarit/quote-assistant/agent/quote"
)

//go:embed data/templates.yaml
var defaultTemplates []byte

var ErrInvalidConfig = errors.New("invalid pricing config")

// Tier applies to the whole quantity once MinQuantity is reached. UnitPrice is
// absolute; when it is zero, Factor scales the base (or variant) price.
type Tier struct {
	MinQuantity float64 `mapstructure:"min_quantity"`
	UnitPrice   float64 `mapstructure:"unit_price"`
	Factor      float64 `mapstructure:"factor"`
}

type TemplateLine struct {
	Description  string      `mapstructure:"description"`
	Unit         quotex.Unit `mapstructure:"unit"`
	UnitPrice    float64     `mapstructure:"unit_price"`
	MinimumTotal float64     `mapstructure:"minimum_total"`
	Tiers        []Tier      `mapstructure:"tiers"`
}

// Variant is a priceable code reusing its template with another base price.
type Variant struct {
	Code      string  `mapstructure:"code"`
	Label     string  `mapstructure:"label"`
	UnitPrice float64 `mapstructure:"unit_price"`
}

// Template backs one or more codes. A bundle either declares its lines inline
// or lists Parts, the codes of other templates whose lines it expands into.
// A template with Variants is only priceable through its variant codes.
type Template struct {
	Code     string         `mapstructure:"code"`
	Bundle   bool           `mapstructure:"bundle"`
	Lines    []TemplateLine `mapstructure:"lines"`
	Parts    []string       `mapstructure:"parts"`
	Variants []Variant      `mapstructure:"variants"`
}

type Config struct {
	TaxRate   float64    `mapstructure:"tax_rate"`
	Templates []Template `mapstructure:"templates"`
}

func LoadDefaultConfig() (Config, error) {
	return LoadConfig(bytes.NewReader(defaultTemplates))
}

func LoadConfigFile(path string) (Config, error) {
	if strings.TrimSpace(path) == "" {
		return LoadDefaultConfig()
	}
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("open pricing file: %w", err)
	}
	defer f.Close()
	return LoadConfig(f)
}

func LoadConfig(r io.Reader) (Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(r); err != nil {
		return Config{}, fmt.Errorf("%w: read: %v", ErrInvalidConfig, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("%w: decode: %v", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the whole table, including that bundle parts resolve.
func (c Config) Validate() error {
	if err := c.validateTemplates(); err != nil {
		return err
	}
	known := make(map[string]struct{}, len(c.Templates))
	for _, t := range c.Templates {
		known[t.Code] = struct{}{}
	}
	for _, t := range c.Templates {
		for _, part := range t.Parts {
			if _, ok := known[part]; !ok {
				return fmt.Errorf("%w: bundle %q references unknown part %q", ErrInvalidConfig, t.Code, part)
			}
		}
	}
	return nil
}

func (c Config) validateTemplates() error {
	if c.TaxRate < 0 || c.TaxRate >= 1 {
		return fmt.Errorf("%w: tax_rate %v out of range [0,1)", ErrInvalidConfig, c.TaxRate)
	}

	seen := make(map[string]struct{}, len(c.Templates))
	claim := func(code string) error {
		code = strings.TrimSpace(code)
		if code == "" {
			return fmt.Errorf("%w: empty code", ErrInvalidConfig)
		}
		if _, dup := seen[code]; dup {
			return fmt.Errorf("%w: duplicate code %q", ErrInvalidConfig, code)
		}
		seen[code] = struct{}{}
		return nil
	}

	for _, t := range c.Templates {
		if err := claim(t.Code); err != nil {
			return err
		}
		if len(t.Lines) == 0 && len(t.Parts) == 0 {
			return fmt.Errorf("%w: template %q has no lines", ErrInvalidConfig, t.Code)
		}
		if len(t.Parts) > 0 && !t.Bundle {
			return fmt.Errorf("%w: template %q has parts but is not a bundle", ErrInvalidConfig, t.Code)
		}
		if t.Bundle && len(t.Variants) > 0 {
			return fmt.Errorf("%w: bundle %q cannot declare variants", ErrInvalidConfig, t.Code)
		}
		for i, l := range t.Lines {
			if err := l.validate(); err != nil {
				return fmt.Errorf("%w: template %q line %d: %v", ErrInvalidConfig, t.Code, i+1, err)
			}
		}
		for _, v := range t.Variants {
			if err := claim(v.Code); err != nil {
				return err
			}
			if v.UnitPrice <= 0 {
				return fmt.Errorf("%w: variant %q needs a positive unit_price", ErrInvalidConfig, v.Code)
			}
		}
	}
	return nil
}

func (l TemplateLine) validate() error {
	if strings.TrimSpace(l.Description) == "" {
		return errors.New("description is required")
	}
	if !l.Unit.Valid() {
		return fmt.Errorf("unit %q is invalid", l.Unit)
	}
	if l.UnitPrice <= 0 {
		return errors.New("unit_price must be positive")
	}
	if l.MinimumTotal < 0 {
		return errors.New("minimum_total must be >= 0")
	}
	prev := -1.0
	for _, tier := range l.Tiers {
		if tier.MinQuantity <= prev {
			return errors.New("tiers must have strictly ascending min_quantity")
		}
		if tier.UnitPrice <= 0 && tier.Factor <= 0 {
			return fmt.Errorf("tier >= %v needs unit_price or factor", tier.MinQuantity)
		}
		prev = tier.MinQuantity
	}
	return nil
}
