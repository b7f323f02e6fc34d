package vt

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Ad-impact risk tiers derived from the weighted score.
const (
	RiskSafe      = "safe"
	RiskReview    = "review"
	RiskModerate  = "moderate"
	RiskBlockRisk = "block-risk"
)

// Score thresholds for the risk tiers.
const (
	blockRiskThreshold = 16
	moderateThreshold  = 9
)

// defaultVendorWeights is the canonical vendor-importance table. Engine
// names are matched case-insensitively by substring, so "Fortinet" covers
// "Fortinet Inc" style variants.
var defaultVendorWeights = map[string]int{
	"Google Safebrowsing": 10,
	"Fortinet":            9,
	"PhishTank":           8,
	"OpenPhish":           8,
	"BitDefender":         7,
	"ESET":                7,
	"Kaspersky":           7,
	"Sophos":              7,
	"McAfee":              6,
	"TrendMicro":          6,
	"Symantec":            6,
	"Avast":               6,
	"AVG":                 6,
	"Comodo":              5,
	"Netcraft":            5,
	"Spamhaus":            5,
	"CRDF":                5,
	"CyRadar":             5,
}

// WeightTable scores flagging engines by ad-delivery impact.
type WeightTable struct {
	weights map[string]int
	// vendors is sorted longest-first so the most specific name wins when
	// several match (e.g. "AVG" would also substring-match "Avast!" hits
	// reported as "AVG Technologies").
	vendors []string
}

// NewWeightTable builds a table from the given weights, or the built-in
// defaults when weights is nil.
func NewWeightTable(weights map[string]int) *WeightTable {
	if weights == nil {
		weights = defaultVendorWeights
	}
	t := &WeightTable{weights: make(map[string]int, len(weights))}
	for v, w := range weights {
		t.weights[v] = w
		t.vendors = append(t.vendors, v)
	}
	sort.Slice(t.vendors, func(i, j int) bool {
		if len(t.vendors[i]) != len(t.vendors[j]) {
			return len(t.vendors[i]) > len(t.vendors[j])
		}
		return t.vendors[i] < t.vendors[j]
	})
	return t
}

// LoadWeightTable reads a vendor->weight YAML mapping from path. An empty
// path returns the default table.
func LoadWeightTable(path string) (*WeightTable, error) {
	if path == "" {
		return NewWeightTable(nil), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading vendor weights: %w", err)
	}
	weights := make(map[string]int)
	if err := yaml.Unmarshal(data, &weights); err != nil {
		return nil, fmt.Errorf("parsing vendor weights: %w", err)
	}
	if len(weights) == 0 {
		return nil, fmt.Errorf("vendor weights file %s is empty", path)
	}
	return NewWeightTable(weights), nil
}

// Match returns the weight for an engine name, matched case-insensitively
// by substring. ok is false when no vendor in the table matches.
func (t *WeightTable) Match(engine string) (weight int, ok bool) {
	e := strings.ToLower(engine)
	for _, v := range t.vendors {
		if strings.Contains(e, strings.ToLower(v)) {
			return t.weights[v], true
		}
	}
	return 0, false
}

// Tier maps a weighted score to its risk tier.
func Tier(score int) string {
	switch {
	case score >= blockRiskThreshold:
		return RiskBlockRisk
	case score >= moderateThreshold:
		return RiskModerate
	case score > 0:
		return RiskReview
	default:
		return RiskSafe
	}
}
