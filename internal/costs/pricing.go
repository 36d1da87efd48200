// Copyright 2025 James Ross

// Package costs implements token/cost accounting: the per-model pricing
// table, the persistent monthly ledger, budget admission and reporting.
package costs

import (
	"sync"

	"go.uber.org/zap"

	"github.com/flyingrobots/aider-dispatch/internal/config"
	"github.com/flyingrobots/aider-dispatch/internal/obs"
)

// Fallback pricing applied to models missing from the table, USD per 1M
// tokens. Deliberately expensive so unknown models trip the budget gate
// early rather than silently undercounting.
const (
	fallbackInputPrice  = 30.0
	fallbackOutputPrice = 60.0
)

// Pricing resolves a model identifier to its USD-per-million-token rates.
type Pricing struct {
	mu      sync.Mutex
	table   map[string]config.Price
	warned  map[string]bool
	log     *zap.Logger
}

func NewPricing(table map[string]config.Price, log *zap.Logger) *Pricing {
	cp := make(map[string]config.Price, len(table))
	for k, v := range table {
		cp[k] = v
	}
	return &Pricing{table: cp, warned: map[string]bool{}, log: log}
}

// Lookup returns the price for model, falling back to the default rates for
// unknown models. The fallback is logged once per process per model.
func (p *Pricing) Lookup(model string) config.Price {
	p.mu.Lock()
	defer p.mu.Unlock()
	if price, ok := p.table[model]; ok {
		return price
	}
	if !p.warned[model] {
		p.warned[model] = true
		if p.log != nil {
			p.log.Warn("unknown model, using fallback pricing",
				obs.String("model", model),
				obs.F64("input_per_1m", fallbackInputPrice),
				obs.F64("output_per_1m", fallbackOutputPrice))
		}
	}
	return config.Price{Input: fallbackInputPrice, Output: fallbackOutputPrice}
}

// Cost converts token counts to USD for model. Returns input cost, output
// cost and their sum.
func (p *Pricing) Cost(inputTokens, outputTokens int, model string) (float64, float64, float64) {
	price := p.Lookup(model)
	in := float64(inputTokens) * price.Input / 1e6
	out := float64(outputTokens) * price.Output / 1e6
	return in, out, in + out
}
