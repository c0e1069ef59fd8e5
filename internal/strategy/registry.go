package strategy

import (
	"fmt"
)

// Params is the validated configuration surface for the registry:
// per-symbol overrides, asset-class defaults and per-variant tuning.
type Params struct {
	// Overrides maps symbol -> strategy name, checked first.
	Overrides map[string]string `yaml:"overrides"`
	// ClassDefaults maps asset class -> strategy name.
	ClassDefaults map[string]string `yaml:"class_defaults"`

	Momentum      MomentumParams      `yaml:"momentum"`
	MeanReversion MeanReversionParams `yaml:"mean_reversion"`
	Clamp         Clamp               `yaml:"clamp"`
}

// Registry resolves a symbol to its strategy. It is built once at
// startup from validated configuration and is immutable afterwards; an
// unknown strategy name fails construction, never a tick.
type Registry struct {
	overrides map[string]Strategy
	byClass   map[string]Strategy
	classes   map[string]string // symbol -> asset class
	fallback  Strategy
}

// NewRegistry validates params and builds the immutable resolution
// table. classes maps symbol -> asset class for the default tier.
func NewRegistry(params Params, classes map[string]string) (*Registry, error) {
	variants := map[Kind]Strategy{
		KindMomentum:      NewMomentum(params.Momentum, params.Clamp),
		KindMeanReversion: NewMeanReversion(params.MeanReversion, params.Clamp),
		KindHold:          NewHold(params.Clamp),
	}

	reg := &Registry{
		overrides: make(map[string]Strategy, len(params.Overrides)),
		byClass:   make(map[string]Strategy, len(params.ClassDefaults)),
		classes:   classes,
		fallback:  variants[KindHold],
	}

	for symbol, name := range params.Overrides {
		kind, err := ParseKind(name)
		if err != nil {
			return nil, fmt.Errorf("override for %s: %w: %q", symbol, ErrUnknown, name)
		}
		reg.overrides[symbol] = variants[kind]
	}

	for class, name := range params.ClassDefaults {
		kind, err := ParseKind(name)
		if err != nil {
			return nil, fmt.Errorf("class default for %s: %w: %q", class, ErrUnknown, name)
		}
		reg.byClass[class] = variants[kind]
	}

	return reg, nil
}

// Resolve returns the strategy for symbol: explicit override, then
// asset-class default, then the Hold fallback.
func (r *Registry) Resolve(symbol string) Strategy {
	if s, ok := r.overrides[symbol]; ok {
		return s
	}
	if class, ok := r.classes[symbol]; ok {
		if s, ok := r.byClass[class]; ok {
			return s
		}
	}
	return r.fallback
}
