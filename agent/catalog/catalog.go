package catalog

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

//go:embed data/treatments.yaml
var defaultTreatments []byte

var (
	ErrInvalidCatalog = errors.New("invalid treatment catalog")
)

// Descriptor is descriptive knowledge about a treatment. It carries no prices.
type Descriptor struct {
	Code              string      `json:"code" mapstructure:"code"`
	Label             string      `json:"label" mapstructure:"label"`
	Unit              quotex.Unit `json:"unit" mapstructure:"unit"`
	IsBundle          bool        `json:"is_bundle" mapstructure:"bundle"`
	HasTieredPricing  bool        `json:"has_tiered_pricing" mapstructure:"tiered"`
	HasMinimumPrice   bool        `json:"has_minimum_price" mapstructure:"minimum"`
	Description       string      `json:"description,omitempty" mapstructure:"description"`
	ApplicabilityNote string      `json:"applicability_note,omitempty" mapstructure:"applicability"`
}

type ProblemGroup struct {
	Keywords []string `mapstructure:"keywords"`
	Codes    []string `mapstructure:"codes"`
}

type document struct {
	Treatments []Descriptor   `mapstructure:"treatments"`
	Problems   []ProblemGroup `mapstructure:"problems"`
}

// Catalog is immutable after Load and safe for concurrent reads.
type Catalog struct {
	order    []string
	byCode   map[string]Descriptor
	problems []ProblemGroup
}

func LoadDefault() (*Catalog, error) {
	return Load(bytes.NewReader(defaultTreatments))
}

// LoadFile reads a catalog from disk; an empty path falls back to the embedded table.
func LoadFile(path string) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return LoadDefault()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog file: %w", err)
	}
	defer f.Close()
	return Load(f)
}

func Load(r io.Reader) (*Catalog, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(r); err != nil {
		return nil, fmt.Errorf("%w: read: %v", ErrInvalidCatalog, err)
	}

	var doc document
	if err := v.Unmarshal(&doc); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrInvalidCatalog, err)
	}
	return New(doc.Treatments, doc.Problems)
}

func New(treatments []Descriptor, problems []ProblemGroup) (*Catalog, error) {
	c := &Catalog{
		order:  make([]string, 0, len(treatments)),
		byCode: make(map[string]Descriptor, len(treatments)),
	}

	for _, d := range treatments {
		d.Code = strings.TrimSpace(d.Code)
		if d.Code == "" {
			return nil, fmt.Errorf("%w: treatment without code", ErrInvalidCatalog)
		}
		if _, dup := c.byCode[d.Code]; dup {
			return nil, fmt.Errorf("%w: duplicate code %q", ErrInvalidCatalog, d.Code)
		}
		if !d.Unit.Valid() {
			return nil, fmt.Errorf("%w: code %q has unit %q", ErrInvalidCatalog, d.Code, d.Unit)
		}
		c.order = append(c.order, d.Code)
		c.byCode[d.Code] = d
	}

	for i, g := range problems {
		for _, code := range g.Codes {
			if _, ok := c.byCode[code]; !ok {
				return nil, fmt.Errorf("%w: problem group %d references unknown code %q", ErrInvalidCatalog, i, code)
			}
		}
		keywords := make([]string, 0, len(g.Keywords))
		for _, kw := range g.Keywords {
			if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
				keywords = append(keywords, kw)
			}
		}
		c.problems = append(c.problems, ProblemGroup{
			Keywords: keywords,
			Codes:    append([]string(nil), g.Codes...),
		})
	}

	return c, nil
}

// Describe returns the descriptor for code; unknown codes report false.
func (c *Catalog) Describe(code string) (Descriptor, bool) {
	if c == nil {
		return Descriptor{}, false
	}
	d, ok := c.byCode[strings.TrimSpace(code)]
	return d, ok
}

// Codes lists every code in declaration order.
func (c *Catalog) Codes() []string {
	if c == nil {
		return nil
	}
	return append([]string(nil), c.order...)
}

// Suggest matches problem keywords as case-insensitive substrings of text.
// Codes are deduplicated in first-match order across groups.
func (c *Catalog) Suggest(text string) []string {
	if c == nil {
		return nil
	}
	haystack := strings.ToLower(text)
	if strings.TrimSpace(haystack) == "" {
		return nil
	}

	seen := make(map[string]struct{}, 4)
	var out []string
	for _, g := range c.problems {
		if !matchesAny(haystack, g.Keywords) {
			continue
		}
		for _, code := range g.Codes {
			if _, ok := seen[code]; ok {
				continue
			}
			seen[code] = struct{}{}
			out = append(out, code)
		}
	}
	return out
}

func matchesAny(haystack string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(haystack, kw) {
			return true
		}
	}
	return false
}
