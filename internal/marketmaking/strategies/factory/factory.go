// Strategy factory: builds agents by strategy type
package factory

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/Aidin1998/pincex_sim/internal/marketmaking/strategies/advanced"
	"github.com/Aidin1998/pincex_sim/internal/marketmaking/strategies/arbitrage"
	"github.com/Aidin1998/pincex_sim/internal/marketmaking/strategies/basic"
	"github.com/Aidin1998/pincex_sim/internal/marketmaking/strategies/common"
	"github.com/agnivade/levenshtein"
)

var ErrUnknownStrategy = errors.New("unknown strategy")

// maxSuggestDistance bounds how far a typo may be from a registered name.
const maxSuggestDistance = 3

// StrategyFactory creates agents from registered strategy types
type StrategyFactory struct {
	mu                  sync.RWMutex
	availableStrategies map[string]StrategyCreator
	metadata            map[string]common.StrategyInfo
}

// StrategyCreator is a function that creates an agent instance
type StrategyCreator func(config common.StrategyConfig) (common.Agent, error)

// NewStrategyFactory creates a new strategy factory with all built-in strategies
func NewStrategyFactory() *StrategyFactory {
	f := &StrategyFactory{
		availableStrategies: make(map[string]StrategyCreator),
		metadata:            make(map[string]common.StrategyInfo),
	}
	f.registerBuiltinStrategies()
	return f
}

// CreateStrategy validates parameters against the registered definitions and
// builds an agent.
func (f *StrategyFactory) CreateStrategy(name string, config common.StrategyConfig) (common.Agent, error) {
	f.mu.RLock()
	creator, exists := f.availableStrategies[name]
	info := f.metadata[name]
	f.mu.RUnlock()

	if !exists {
		if s := f.Suggest(name); s != "" {
			return nil, fmt.Errorf("%w: '%s' (did you mean '%s'?)", ErrUnknownStrategy, name, s)
		}
		return nil, fmt.Errorf("%w: '%s'", ErrUnknownStrategy, name)
	}
	if err := validateParameters(info, config.Parameters); err != nil {
		return nil, fmt.Errorf("strategy '%s': %w", name, err)
	}
	config.Type = name
	return creator(config)
}

// Suggest returns the registered name closest to name, or "" if none is close.
func (f *StrategyFactory) Suggest(name string) string {
	best, bestDist := "", maxSuggestDistance+1
	for _, candidate := range f.GetAvailableStrategies() {
		if d := levenshtein.ComputeDistance(name, candidate); d < bestDist {
			best, bestDist = candidate, d
		}
	}
	return best
}

// GetAvailableStrategies returns all strategy names, sorted
func (f *StrategyFactory) GetAvailableStrategies() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	strategies := make([]string, 0, len(f.availableStrategies))
	for name := range f.availableStrategies {
		strategies = append(strategies, name)
	}
	sort.Strings(strategies)
	return strategies
}

// GetStrategyInfo returns metadata for a specific strategy
func (f *StrategyFactory) GetStrategyInfo(name string) (common.StrategyInfo, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	info, exists := f.metadata[name]
	if !exists {
		return common.StrategyInfo{}, fmt.Errorf("%w: '%s'", ErrUnknownStrategy, name)
	}
	return info, nil
}

// GetAllStrategyInfo returns metadata for all strategies, sorted by type
func (f *StrategyFactory) GetAllStrategyInfo() []common.StrategyInfo {
	names := f.GetAvailableStrategies()
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]common.StrategyInfo, 0, len(names))
	for _, name := range names {
		out = append(out, f.metadata[name])
	}
	return out
}

// RegisterStrategy registers a custom strategy with the factory
func (f *StrategyFactory) RegisterStrategy(name string, creator StrategyCreator, info common.StrategyInfo) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, exists := f.availableStrategies[name]; exists {
		return fmt.Errorf("strategy '%s' already exists", name)
	}
	info.Type = name
	f.availableStrategies[name] = creator
	f.metadata[name] = info
	return nil
}

func validateParameters(info common.StrategyInfo, params map[string]interface{}) error {
	for _, def := range info.Parameters {
		if _, ok := params[def.Name]; !ok {
			continue
		}
		v, err := common.Float(params, def.Name, def.Default)
		if err != nil {
			return err
		}
		if v < def.MinValue || v > def.MaxValue {
			return fmt.Errorf("parameter '%s'=%v out of range [%v, %v]", def.Name, v, def.MinValue, def.MaxValue)
		}
	}
	return nil
}

func (f *StrategyFactory) registerBuiltinStrategies() {
	f.register(basic.TypeMarketMaker, func(c common.StrategyConfig) (common.Agent, error) {
		return basic.NewMarketMaker(c)
	}, common.StrategyInfo{
		Name:        "Market Maker",
		Description: "Quotes a symmetric ladder around the reference price",
		RiskLevel:   common.RiskLow,
		Parameters: []common.ParameterDefinition{
			{Name: "spread_ticks", Type: "int", Default: 4, MinValue: 2, MaxValue: 1000, Description: "Distance between bid and ask quotes"},
			{Name: "levels", Type: "int", Default: 1, MinValue: 1, MaxValue: 50, Description: "Quotes per side"},
			{Name: "size", Type: "float", Default: 1, MinValue: 0.001, MaxValue: 1e6, Description: "Size per quote"},
			{Name: "requote_every", Type: "int", Default: 5, MinValue: 1, MaxValue: 10000, Description: "Steps between requotes"},
			{Name: "inventory_skew", Type: "float", Default: 0, MinValue: 0, MaxValue: 100, Description: "Ticks the quotes shift per unit of position"},
		},
	})

	f.register(basic.TypeNoise, func(c common.StrategyConfig) (common.Agent, error) {
		return basic.NewNoise(c)
	}, common.StrategyInfo{
		Name:        "Noise Trader",
		Description: "Random small orders around the mid",
		RiskLevel:   common.RiskLow,
		Parameters: []common.ParameterDefinition{
			{Name: "probability", Type: "float", Default: 0.3, MinValue: 0, MaxValue: 1, Description: "Chance of trading on a step"},
			{Name: "market_ratio", Type: "float", Default: 0.2, MinValue: 0, MaxValue: 1, Description: "Share of market orders"},
			{Name: "max_size", Type: "float", Default: 2, MinValue: 0.001, MaxValue: 1e6, Description: "Largest order size"},
			{Name: "price_range_ticks", Type: "int", Default: 10, MinValue: 1, MaxValue: 10000, Description: "Limit price spread around mid"},
			{Name: "max_open", Type: "int", Default: 5, MinValue: 0, MaxValue: 1000, Description: "Resting orders kept before canceling"},
		},
	})

	f.register(advanced.TypeMomentum, func(c common.StrategyConfig) (common.Agent, error) {
		return advanced.NewMomentum(c)
	}, common.StrategyInfo{
		Name:        "Momentum",
		Description: "Chases the direction of recent trade prices",
		RiskLevel:   common.RiskMedium,
		Parameters: []common.ParameterDefinition{
			{Name: "lookback", Type: "int", Default: 10, MinValue: 2, MaxValue: 10000, Description: "Steps of price history"},
			{Name: "threshold_ticks", Type: "int", Default: 3, MinValue: 1, MaxValue: 10000, Description: "Move that triggers a trade"},
			{Name: "size", Type: "float", Default: 1, MinValue: 0.001, MaxValue: 1e6, Description: "Order size"},
			{Name: "cooldown", Type: "int", Default: 5, MinValue: 0, MaxValue: 10000, Description: "Steps between trades"},
		},
	})

	f.register(advanced.TypeWhale, func(c common.StrategyConfig) (common.Agent, error) {
		return advanced.NewWhale(c)
	}, common.StrategyInfo{
		Name:        "Whale",
		Description: "Large orders priced through the touch",
		RiskLevel:   common.RiskHigh,
		Parameters: []common.ParameterDefinition{
			{Name: "size", Type: "float", Default: 50, MinValue: 0.001, MaxValue: 1e7, Description: "Order size"},
			{Name: "interval", Type: "int", Default: 40, MinValue: 1, MaxValue: 100000, Description: "Steps between orders"},
			{Name: "aggression_ticks", Type: "int", Default: 3, MinValue: 0, MaxValue: 10000, Description: "Ticks beyond the opposite touch"},
		},
	})

	f.register(advanced.TypePredatory, func(c common.StrategyConfig) (common.Agent, error) {
		return advanced.NewPredatory(c)
	}, common.StrategyInfo{
		Name:        "Predatory",
		Description: "Steps in front of large resting levels",
		RiskLevel:   common.RiskMedium,
		Parameters: []common.ParameterDefinition{
			{Name: "min_volume", Type: "float", Default: 20, MinValue: 0.001, MaxValue: 1e7, Description: "Level volume treated as a wall"},
			{Name: "size", Type: "float", Default: 1, MinValue: 0.001, MaxValue: 1e6, Description: "Order size"},
			{Name: "depth", Type: "int", Default: 10, MinValue: 1, MaxValue: 1000, Description: "Levels scanned per side"},
		},
	})

	f.register(arbitrage.TypeArbitrage, func(c common.StrategyConfig) (common.Agent, error) {
		return arbitrage.NewArbitrage(c)
	}, common.StrategyInfo{
		Name:        "Arbitrage",
		Description: "Trades the book back toward the reference feed",
		RiskLevel:   common.RiskMedium,
		Parameters: []common.ParameterDefinition{
			{Name: "threshold_ticks", Type: "int", Default: 3, MinValue: 1, MaxValue: 10000, Description: "Mispricing that triggers a trade"},
			{Name: "size", Type: "float", Default: 1, MinValue: 0.001, MaxValue: 1e6, Description: "Order size"},
			{Name: "max_position", Type: "float", Default: 10, MinValue: 0.001, MaxValue: 1e7, Description: "Absolute position limit"},
		},
	})

	f.register(advanced.TypeSniper, func(c common.StrategyConfig) (common.Agent, error) {
		return advanced.NewSniper(c)
	}, common.StrategyInfo{
		Name:        "Sniper",
		Description: "Idles, then fires market orders when price strays from reference",
		RiskLevel:   common.RiskHigh,
		Parameters: []common.ParameterDefinition{
			{Name: "wait", Type: "int", Default: 20, MinValue: 0, MaxValue: 100000, Description: "Warm-up steps"},
			{Name: "trigger_ticks", Type: "int", Default: 5, MinValue: 1, MaxValue: 10000, Description: "Deviation that triggers"},
			{Name: "size", Type: "float", Default: 5, MinValue: 0.001, MaxValue: 1e6, Description: "Order size"},
			{Name: "cooldown", Type: "int", Default: 30, MinValue: 0, MaxValue: 100000, Description: "Steps between shots"},
		},
	})
}

func (f *StrategyFactory) register(name string, creator StrategyCreator, info common.StrategyInfo) {
	if err := f.RegisterStrategy(name, creator, info); err != nil {
		panic(err)
	}
}
