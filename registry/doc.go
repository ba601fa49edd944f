// Package registry provides an in-memory agent directory with
// liveness-based membership.
//
// # Overview
//
// The Store holds one AgentCard per agent URL together with a last-seen
// timestamp. Agents register once and then heartbeat; the Sweeper evicts
// members whose timestamp ages past the configured timeout. Nothing is
// persisted: the directory is rebuilt from scratch on every restart as
// agents re-register.
//
// # Basic Usage
//
// Register an agent and refresh it:
//
//	store := registry.NewMemoryStore()
//	err := store.Register(registry.AgentCard{
//	    Name:        "Poet",
//	    Description: "Writes poetry on demand",
//	    URL:         "http://localhost:5001",
//	    Version:     "1.0.0",
//	})
//	err = store.Touch("http://localhost:5001") // heartbeat
//
// Run the sweeper:
//
//	sweeper := registry.NewSweeper(store, registry.SweeperConfig{
//	    Timeout:  30 * time.Second,
//	    Interval: 10 * time.Second,
//	})
//	sweeper.Start(ctx)
//	defer sweeper.Stop()
//
// Watch for changes:
//
//	events, _ := store.Watch()
//	for event := range events {
//	    if event.Type == registry.EventEvicted {
//	        fmt.Printf("agent gone: %s\n", event.Card.URL)
//	    }
//	}
//
// # Identity and Overwrites
//
// URL is the primary key. Registering a URL that already exists replaces
// the stored card (last write wins) and resets its staleness clock; there
// is no duplicate-detection error.
//
// # Opaque Payloads
//
// Capabilities and Skills are stored and returned verbatim. The registry
// never interprets them; only consumers (e.g. the query router) do.
package registry
