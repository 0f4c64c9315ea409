package fintalk

import (
	"context"
	"strings"

	"github.com/fintalk/fintalk/prompts"
	"github.com/fintalk/fintalk/store"
	"github.com/fintalk/fintalk/types"
)

// Agent names known to the supervisor.
const (
	AgentGuest        = "guest"
	AgentOnboarding   = "onboarding"
	AgentGoalPlanning = "goal_planning"
	AgentWealth       = "wealth"
	AgentFinance      = "finance"
)

// route decides which agent handles the turn. A sticky active agent keeps the
// conversation until it hands back; otherwise the supervisor model picks, with
// a keyword router as fallback when the model call fails or is unparseable.
func (c *Client) route(ctx context.Context, session *store.Session, text string) (string, error) {
	if session.ActiveAgent != "" {
		if _, ok := GetRegisteredAgent(session.ActiveAgent); ok {
			return session.ActiveAgent, nil
		}
	}

	memories, err := c.memories.ListByUser(ctx, session.UserID)
	if err != nil {
		c.logger.Warn().Err(err).Str("session_id", session.ID).Msg("profile lookup failed during routing")
	}
	hasProfile := len(profileFields(memories)) > 0

	if agent := c.routeWithModel(ctx, text); agent != "" {
		if !hasProfile && agent != AgentOnboarding {
			return AgentGuest, nil
		}
		return agent, nil
	}
	return routeByKeywords(text, hasProfile), nil
}

// routeWithModel asks the supervisor model to pick an agent. Returns "" when
// the call fails or the reply names no registered agent.
func (c *Client) routeWithModel(ctx context.Context, text string) string {
	history := []types.Message{{
		Role:    types.RoleUser,
		Content: types.PlainText("Route this message. Reply with exactly one specialist name.\n\nMessage: " + text),
	}}
	reply, err := c.chat.Complete(ctx, prompts.Supervisor, history, nil, nil)
	if err != nil {
		c.logger.Warn().Err(err).Msg("supervisor model call failed, using keyword routing")
		return ""
	}

	answer := strings.ToLower(reply.Content.Text())
	for _, name := range []string{AgentOnboarding, AgentGoalPlanning, AgentWealth, AgentFinance, AgentGuest} {
		if strings.Contains(answer, name) {
			if _, ok := GetRegisteredAgent(name); ok {
				return name
			}
		}
	}
	c.logger.Warn().Str("answer", reply.Content.Text()).Msg("supervisor reply named no known agent")
	return ""
}

// routeByKeywords is the deterministic fallback router.
func routeByKeywords(text string, hasProfile bool) string {
	lower := strings.ToLower(text)

	contains := func(words ...string) bool {
		for _, w := range words {
			if strings.Contains(lower, w) {
				return true
			}
		}
		return false
	}

	switch {
	case contains("onboard", "set up my profile", "risk tolerance", "my income is"):
		return AgentOnboarding
	case !hasProfile:
		return AgentGuest
	case contains("invest", "portfolio", "stock", "etf", "index fund", "allocation"):
		return AgentWealth
	case contains("goal", "save for", "saving for", "target"):
		return AgentGoalPlanning
	default:
		return AgentFinance
	}
}

// RegisterDefaultAgents registers the built-in specialist agents. Call once
// at wiring time, after the tools they reference are registered.
func RegisterDefaultAgents() {
	MustRegister(&AgentDefinition{
		Name:         AgentGuest,
		Description:  "General financial questions for users without a profile",
		SystemPrompt: prompts.Guest,
	})
	MustRegister(&AgentDefinition{
		Name:         AgentOnboarding,
		Description:  "Collects the user's financial profile",
		SystemPrompt: prompts.Onboarding,
		Tools:        []string{"update_profile"},
	})
	MustRegister(&AgentDefinition{
		Name:         AgentGoalPlanning,
		Description:  "Creates and reviews financial goals",
		SystemPrompt: prompts.GoalPlanning,
		Tools:        []string{"create_goal", "project_savings"},
	})
	MustRegister(&AgentDefinition{
		Name:         AgentWealth,
		Description:  "Investing, portfolios and asset allocation",
		SystemPrompt: prompts.Wealth,
		Tools:        []string{"project_savings"},
	})
	MustRegister(&AgentDefinition{
		Name:         AgentFinance,
		Description:  "Budgeting, spending, debt and everyday money questions",
		SystemPrompt: prompts.Finance,
		Tools:        []string{"update_profile", "project_savings"},
	})
}
