package tools

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/fintalk/fintalk/memory"
)

func TestProjectSavings(t *testing.T) {
	tests := []struct {
		name     string
		starting float64
		monthly  float64
		months   int
		ratePct  float64
		want     float64
	}{
		{name: "no growth", starting: 100, monthly: 50, months: 4, ratePct: 0, want: 300},
		{name: "zero months of saving", starting: 1000, monthly: 0, months: 12, ratePct: 0, want: 1000},
		{name: "one month with growth", starting: 1200, monthly: 100, months: 1, ratePct: 12, want: 1312},
		{name: "empty projection", starting: 0, monthly: 0, months: 1, ratePct: 0, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ProjectSavings(tt.starting, tt.monthly, tt.months, tt.ratePct)
			if got != tt.want {
				t.Errorf("ProjectSavings() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestUpdateProfileTool(t *testing.T) {
	store := memory.NewMemStore()
	tool := NewUpdateProfileTool(store)

	if tool.Name() != "update_profile" {
		t.Errorf("Name() = %q, want update_profile", tool.Name())
	}

	result, err := tool.Execute(context.Background(), json.RawMessage(`{"user_id":"u1","field":"monthly_income","value":"4200"}`))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.Contains(result, "monthly_income") {
		t.Errorf("result %q should name the field", result)
	}

	memories, err := store.ListByUser(context.Background(), "u1")
	if err != nil {
		t.Fatalf("ListByUser() error = %v", err)
	}
	if len(memories) != 1 {
		t.Fatalf("got %d memories, want 1", len(memories))
	}
	if memories[0].Category != "profile" {
		t.Errorf("Category = %q, want profile", memories[0].Category)
	}
	if !strings.Contains(memories[0].Content, "4200") {
		t.Errorf("memory content %q should carry the value", memories[0].Content)
	}
}

func TestUpdateProfileTool_RejectsUnknownField(t *testing.T) {
	tool := NewUpdateProfileTool(memory.NewMemStore())

	_, err := tool.Execute(context.Background(), json.RawMessage(`{"user_id":"u1","field":"shoe_size","value":"44"}`))
	if err == nil {
		t.Fatal("expected error for unknown profile field")
	}
}

func TestCreateGoalTool(t *testing.T) {
	store := memory.NewMemStore()
	tool := NewCreateGoalTool(store)

	result, err := tool.Execute(context.Background(), json.RawMessage(`{"user_id":"u1","name":"house down payment","target_amount":30000,"target_date":"2028-06"}`))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.Contains(result, "house down payment") {
		t.Errorf("result %q should name the goal", result)
	}

	memories, _ := store.ListByUser(context.Background(), "u1")
	if len(memories) != 1 || memories[0].Category != "goal" {
		t.Fatalf("goal memory not stored: %+v", memories)
	}
}

func TestCreateGoalTool_RejectsNonPositiveAmount(t *testing.T) {
	tool := NewCreateGoalTool(memory.NewMemStore())

	_, err := tool.Execute(context.Background(), json.RawMessage(`{"user_id":"u1","name":"nothing","target_amount":0,"target_date":"2028-06"}`))
	if err == nil {
		t.Fatal("expected error for non-positive target amount")
	}
}

func TestProjectSavingsTool(t *testing.T) {
	tool := NewProjectSavingsTool()

	result, err := tool.Execute(context.Background(), json.RawMessage(`{"starting_amount":100,"monthly_amount":50,"months":4}`))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.Contains(result, "300.00") {
		t.Errorf("result %q should contain the projected total", result)
	}
}
