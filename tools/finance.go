package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/fintalk/fintalk/memory"
)

// ProfileFields are the profile attributes update_profile accepts. The
// onboarding agent walks them in this order.
var ProfileFields = []string{"name", "monthly_income", "monthly_expenses", "savings", "risk_tolerance"}

func float64Ptr(v float64) *float64 { return &v }

// NewUpdateProfileTool returns the update_profile tool. Each update is
// persisted as a profile memory so later turns recall it.
func NewUpdateProfileTool(store memory.Store) Tool {
	schema := Schema{
		Type: "object",
		Properties: map[string]PropertyDef{
			"user_id": {Type: "string", Description: "The user whose profile to update"},
			"field":   {Type: "string", Description: "Profile field to set", Enum: ProfileFields},
			"value":   {Type: "string", Description: "New value for the field"},
		},
		Required: []string{"user_id", "field", "value"},
	}

	return NewFuncTool("update_profile", "Record one field of the user's financial profile.", schema,
		func(ctx context.Context, input json.RawMessage) (string, error) {
			var params struct {
				UserID string `json:"user_id"`
				Field  string `json:"field"`
				Value  string `json:"value"`
			}
			if err := json.Unmarshal(input, &params); err != nil {
				return "", fmt.Errorf("parse update_profile input: %w", err)
			}
			if !validProfileField(params.Field) {
				return "", fmt.Errorf("unknown profile field %q", params.Field)
			}

			content := fmt.Sprintf("Profile %s: %s", params.Field, params.Value)
			if _, err := store.Add(ctx, params.UserID, "profile", content); err != nil {
				return "", fmt.Errorf("store profile update: %w", err)
			}
			return fmt.Sprintf("Recorded %s = %s.", params.Field, params.Value), nil
		})
}

// NewCreateGoalTool returns the create_goal tool. Goals are persisted as
// goal memories so later turns recall them.
func NewCreateGoalTool(store memory.Store) Tool {
	schema := Schema{
		Type: "object",
		Properties: map[string]PropertyDef{
			"user_id":       {Type: "string", Description: "The user creating the goal"},
			"name":          {Type: "string", Description: "Short goal name, e.g. 'house down payment'"},
			"target_amount": {Type: "number", Description: "Target amount in the user's currency", Minimum: float64Ptr(0)},
			"target_date":   {Type: "string", Description: "Target date, YYYY-MM format"},
		},
		Required: []string{"user_id", "name", "target_amount", "target_date"},
	}

	return NewFuncTool("create_goal", "Create a financial goal with a target amount and date.", schema,
		func(ctx context.Context, input json.RawMessage) (string, error) {
			var params struct {
				UserID       string  `json:"user_id"`
				Name         string  `json:"name"`
				TargetAmount float64 `json:"target_amount"`
				TargetDate   string  `json:"target_date"`
			}
			if err := json.Unmarshal(input, &params); err != nil {
				return "", fmt.Errorf("parse create_goal input: %w", err)
			}
			if params.TargetAmount <= 0 {
				return "", fmt.Errorf("target_amount must be positive, got %v", params.TargetAmount)
			}

			content := fmt.Sprintf("Goal %q: %.2f by %s", params.Name, params.TargetAmount, params.TargetDate)
			if _, err := store.Add(ctx, params.UserID, "goal", content); err != nil {
				return "", fmt.Errorf("store goal: %w", err)
			}
			return fmt.Sprintf("Goal %q created: %.2f by %s.", params.Name, params.TargetAmount, params.TargetDate), nil
		})
}

// NewProjectSavingsTool returns the project_savings tool, a pure computation
// with no storage dependency.
func NewProjectSavingsTool() Tool {
	schema := Schema{
		Type: "object",
		Properties: map[string]PropertyDef{
			"starting_amount": {Type: "number", Description: "Current savings", Minimum: float64Ptr(0)},
			"monthly_amount":  {Type: "number", Description: "Amount saved each month", Minimum: float64Ptr(0)},
			"months":          {Type: "number", Description: "Number of months to project", Minimum: float64Ptr(1)},
			"annual_rate_pct": {Type: "number", Description: "Optional annual return rate in percent, e.g. 5 for 5%"},
		},
		Required: []string{"starting_amount", "monthly_amount", "months"},
	}

	return NewFuncTool("project_savings", "Project savings growth with monthly contributions and optional compounding.", schema,
		func(_ context.Context, input json.RawMessage) (string, error) {
			var params struct {
				StartingAmount float64 `json:"starting_amount"`
				MonthlyAmount  float64 `json:"monthly_amount"`
				Months         int     `json:"months"`
				AnnualRatePct  float64 `json:"annual_rate_pct"`
			}
			if err := json.Unmarshal(input, &params); err != nil {
				return "", fmt.Errorf("parse project_savings input: %w", err)
			}
			if params.Months < 1 {
				return "", fmt.Errorf("months must be at least 1, got %d", params.Months)
			}

			total := ProjectSavings(params.StartingAmount, params.MonthlyAmount, params.Months, params.AnnualRatePct)
			return fmt.Sprintf("After %d months: %.2f (contributions %.2f, growth %.2f).",
				params.Months, total,
				params.StartingAmount+params.MonthlyAmount*float64(params.Months),
				total-params.StartingAmount-params.MonthlyAmount*float64(params.Months)), nil
		})
}

// ProjectSavings compounds a starting balance with monthly contributions at
// the given annual rate. Contributions land at month end, after that month's
// growth.
func ProjectSavings(starting, monthly float64, months int, annualRatePct float64) float64 {
	monthlyRate := annualRatePct / 100 / 12
	total := starting
	for i := 0; i < months; i++ {
		total = total*(1+monthlyRate) + monthly
	}
	// Avoid -0.00 in rendered output.
	return math.Round(total*100) / 100
}

func validProfileField(field string) bool {
	for _, f := range ProfileFields {
		if f == field {
			return true
		}
	}
	return false
}
