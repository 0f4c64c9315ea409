// Package fintalk is a multi-agent personal finance assistant backend.
//
// A supervisor routes each conversation turn to one of several specialist
// agents (onboarding, goal planning, wealth, general finance, or a guest
// agent for users without a profile). Conversations persist in Postgres,
// durable user facts are recalled per turn from the memory store, and long
// histories are compacted after each turn by the summarizer package so
// sessions never outgrow the model's context window.
//
// Typical usage:
//
//	client, err := fintalk.NewClient(fintalk.Config{
//	    Store:    pgStore,
//	    Memories: memStore,
//	    Chat:     chatClient,
//	}, fintalk.WithTailTokenBudget(20000))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	session, _ := client.NewSession(ctx, userID)
//	reply, _ := client.RunTurn(ctx, session.ID, "Can I afford a house by 2028?", nil)
package fintalk
