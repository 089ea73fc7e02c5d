// Package domain defines the core domain types and interfaces.
//
// Concept-oriented files (contestant.go, vote.go, gateway.go, store.go, card.go) hold the shared
// types and the contracts implemented by adapters. No I/O lives here.
package domain
