// Package app provides the voting controllers.
//
// VoteStore persists vote records, Voter enforces the single vote for one contestant, VoterRegistry
// keeps voters per profile and Feed polls the gateway. Everything depends on domain interfaces and a
// clockwork.Clock, so every timer can be driven from tests.
package app
