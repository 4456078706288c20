// Package classify scores a backlog and selects the pipeline policy for
// a run. Classification is pure and deterministic: the same backlog
// always yields the same result.
package classify

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// defaultKeywordWeights maps risk indicators to the score weight added
// when the word appears anywhere in the serialized backlog. Keywords are
// chosen so no entry is a substring of another; detection is by
// presence, not occurrence count.
var defaultKeywordWeights = map[string]float64{
	"migration":      5,
	"authentication": 6,
	"authorization":  5,
	"security":       6,
	"encryption":     6,
	"payment":        6,
	"realtime":       8,
	"websocket":      7,
	"distributed":    8,
	"concurrency":    7,
	"database":       4,
	"schema":         3,
	"infrastructure": 5,
	"performance":    4,
	"caching":        3,
}

// KeywordWeights returns a copy of the active indicator table.
func KeywordWeights() map[string]float64 {
	out := make(map[string]float64, len(defaultKeywordWeights))
	for k, v := range defaultKeywordWeights {
		out[k] = v
	}
	return out
}

// Keywords returns the indicator keywords in sorted order.
func Keywords(weights map[string]float64) []string {
	keys := make([]string, 0, len(weights))
	for k := range weights {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// LoadKeywordWeights reads a YAML file mapping keywords to weights and
// merges it over the defaults. A weight of zero removes the keyword.
// A missing file returns the defaults unchanged.
func LoadKeywordWeights(path string) (map[string]float64, error) {
	weights := KeywordWeights()
	if path == "" {
		return weights, nil
	}

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return weights, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read keyword weights: %w", err)
	}

	var overrides map[string]float64
	if err := yaml.Unmarshal(raw, &overrides); err != nil {
		return nil, fmt.Errorf("parse keyword weights: %w", err)
	}
	for k, v := range overrides {
		if v == 0 {
			delete(weights, k)
			continue
		}
		weights[k] = v
	}
	return weights, nil
}
