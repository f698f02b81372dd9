// Package scenario reads the bot population to deploy at startup.
//
// A scenario file is a YAML list:
//
//	- strategy: market_maker
//	  count: 2
//	  params:
//	    spread_ticks: 6
//	- strategy: noise
//	  count: 10
package scenario

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Entry deploys Count agents of one strategy with the same parameters.
type Entry struct {
	Strategy string                 `yaml:"strategy"`
	Count    int                    `yaml:"count"`
	Params   map[string]interface{} `yaml:"params"`
}

// Deployer is satisfied by the bot manager.
type Deployer interface {
	Deploy(ctx context.Context, strategy string, params map[string]interface{}) (uuid.UUID, error)
}

// Load parses a scenario file.
func Load(path string) ([]Entry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	return Parse(raw)
}

// Parse decodes and checks a scenario. Count defaults to 1.
func Parse(raw []byte) ([]Entry, error) {
	var entries []Entry
	if err := yaml.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	for i := range entries {
		e := &entries[i]
		if e.Strategy == "" {
			return nil, fmt.Errorf("scenario entry %d: strategy is required", i)
		}
		if e.Count == 0 {
			e.Count = 1
		}
		if e.Count < 0 {
			return nil, fmt.Errorf("scenario entry %d: count must be positive", i)
		}
	}
	return entries, nil
}

// Apply deploys every entry in order and stops at the first failure. It
// returns the ids deployed so far.
func Apply(ctx context.Context, d Deployer, entries []Entry) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for i, e := range entries {
		for n := 0; n < e.Count; n++ {
			id, err := d.Deploy(ctx, e.Strategy, e.Params)
			if err != nil {
				return ids, fmt.Errorf("scenario entry %d (%s #%d): %w", i, e.Strategy, n+1, err)
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}
