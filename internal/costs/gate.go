// Copyright 2025 James Ross
package costs

import (
	"fmt"
	"strings"
	"time"

	"github.com/flyingrobots/aider-dispatch/internal/config"
	"github.com/flyingrobots/aider-dispatch/internal/obs"
	"github.com/flyingrobots/aider-dispatch/internal/tokens"
)

// Estimate is a pre-execution cost projection. Never persisted.
type Estimate struct {
	InputTokens           int     `json:"input_tokens"`
	EstimatedOutputTokens int     `json:"estimated_output_tokens"`
	TotalTokens           int     `json:"total_tokens"`
	InputCost             float64 `json:"input_cost"`
	EstimatedOutputCost   float64 `json:"estimated_output_cost"`
	TotalCost             float64 `json:"total_cost"`
	Model                 string  `json:"model"`
}

// Gate performs pre-flight estimation and budget admission, and records
// actual cost after execution.
type Gate struct {
	pricing *Pricing
	ledger  *Ledger
	limits  config.Cost
}

func NewGate(pricing *Pricing, ledger *Ledger, limits config.Cost) *Gate {
	return &Gate{pricing: pricing, ledger: ledger, limits: limits}
}

// Estimate projects the cost of sending prompt plus the given file contents
// to model for a task of the given kind.
func (g *Gate) Estimate(prompt string, filesContent []string, model, kind string) Estimate {
	full := prompt + "\n" + strings.Join(filesContent, "\n")
	in := tokens.Count(full, model)
	out := tokens.EstimateOutput(in, kind)
	inCost, outCost, total := g.pricing.Cost(in, out, model)
	return Estimate{
		InputTokens:           in,
		EstimatedOutputTokens: out,
		TotalTokens:           in + out,
		InputCost:             inCost,
		EstimatedOutputCost:   outCost,
		TotalCost:             total,
		Model:                 model,
	}
}

// Admit decides whether a task with the given estimate may run. A false
// return carries the rejection reason; a true return with a non-empty
// message is a warning.
func (g *Gate) Admit(est Estimate) (bool, string) {
	if est.TotalCost > g.limits.MaxCostPerTask {
		return false, fmt.Sprintf("Task cost $%.4f exceeds limit $%.2f", est.TotalCost, g.limits.MaxCostPerTask)
	}
	if est.TotalCost >= g.limits.WarningThreshold {
		return true, fmt.Sprintf("High cost warning: $%.4f (threshold: $%.2f)", est.TotalCost, g.limits.WarningThreshold)
	}
	return true, ""
}

// Record computes actual cost from measured tokens and appends it to the
// ledger. Returns the stored record.
func (g *Gate) Record(taskID, taskName, model string, inputTokens, outputTokens int, duration time.Duration, at time.Time) Record {
	inCost, outCost, total := g.pricing.Cost(inputTokens, outputTokens, model)
	r := Record{
		TaskID:          taskID,
		TaskName:        taskName,
		Model:           model,
		Timestamp:       at,
		DurationSeconds: duration.Seconds(),
		InputTokens:     inputTokens,
		OutputTokens:    outputTokens,
		InputCost:       inCost,
		OutputCost:      outCost,
		TotalCost:       total,
	}
	g.ledger.Append(r)
	obs.CostUSD.WithLabelValues(model).Add(total)
	obs.TokensUsed.WithLabelValues(model, "input").Add(float64(inputTokens))
	obs.TokensUsed.WithLabelValues(model, "output").Add(float64(outputTokens))
	return r
}

// BudgetStatus reports configured limits against recent usage.
type BudgetStatus struct {
	Limits struct {
		MaxCostPerTask   float64 `json:"max_cost_per_task"`
		MaxDailyCost     float64 `json:"max_daily_cost"`
		MaxMonthlyCost   float64 `json:"max_monthly_cost"`
		WarningThreshold float64 `json:"warning_threshold"`
	} `json:"budget_limits"`
	Usage struct {
		Today          float64 `json:"today"`
		ThisMonth      float64 `json:"this_month"`
		TasksToday     int     `json:"tasks_today"`
		TasksThisMonth int     `json:"tasks_this_month"`
	} `json:"current_usage"`
	Remaining struct {
		Daily   float64 `json:"daily"`
		Monthly float64 `json:"monthly"`
	} `json:"remaining_budget"`
	DailyUsagePercent   float64 `json:"daily_usage_percent"`
	MonthlyUsagePercent float64 `json:"monthly_usage_percent"`
}

// Budget summarizes the last day and the last 30 days against the limits.
func (g *Gate) Budget() BudgetStatus {
	daily := g.ledger.Summarize(1)
	monthly := g.ledger.Summarize(30)

	var st BudgetStatus
	st.Limits.MaxCostPerTask = g.limits.MaxCostPerTask
	st.Limits.MaxDailyCost = g.limits.MaxDailyCost
	st.Limits.MaxMonthlyCost = g.limits.MaxMonthlyCost
	st.Limits.WarningThreshold = g.limits.WarningThreshold
	st.Usage.Today = daily.TotalCost
	st.Usage.ThisMonth = monthly.TotalCost
	st.Usage.TasksToday = daily.TaskCount
	st.Usage.TasksThisMonth = monthly.TaskCount
	st.Remaining.Daily = max0(g.limits.MaxDailyCost - daily.TotalCost)
	st.Remaining.Monthly = max0(g.limits.MaxMonthlyCost - monthly.TotalCost)
	if g.limits.MaxDailyCost > 0 {
		st.DailyUsagePercent = daily.TotalCost / g.limits.MaxDailyCost * 100
	}
	if g.limits.MaxMonthlyCost > 0 {
		st.MonthlyUsagePercent = monthly.TotalCost / g.limits.MaxMonthlyCost * 100
	}
	return st
}

func max0(f float64) float64 {
	if f < 0 {
		return 0
	}
	return f
}
