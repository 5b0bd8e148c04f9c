// Package matchdex is the embedded Go client for the matching engine: it
// wires the engine in-process against a Valkey/Redis store, no HTTP hop.
//
//	client, err := matchdex.New(ctx,
//		matchdex.WithValkey("localhost:6379"),
//		matchdex.WithOpenAI(apiKey, "", "text-embedding-3-small", 384),
//	)
//	if err != nil { ... }
//	defer client.Close()
//
//	_, err = client.UpsertProfile(ctx, matchdex.Profile{
//		ID: "cand-1", Kind: matchdex.KindCandidate,
//		Text: "senior backend engineer", Skills: []string{"go", "redis"},
//	})
//	results, err := client.MatchCandidates(ctx, matchdex.MatchQuery{JobID: "job-1", TopK: 5})
package matchdex
