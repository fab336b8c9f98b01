// Package models defines the core domain models for tabsplit.
//
// # Entities
//
//   - Session: one dining event, joined by a short code. Holds tip and tax.
//   - Participant: a person in a session. Exactly one participant is the owner.
//   - Item: a receipt line (quantity × unit price), ordered by OrderIndex.
//   - Assignment: the join between an Item and a Participant carrying the
//     participant's share fraction of that item.
//
// For any item with at least one assignment, the share fractions of its
// assignments sum to 1.
//
// # State and changes
//
// SessionState is the explicit aggregate handed to the engine and the
// settlement calculator. Every mutation is expressed as an ordered list of
// Change values, which is both the sequence of store operations and the
// payload of realtime events.
//
// # Design Principles
//
// 1. Use ID strings instead of pointers for relationships
// 2. Currency amounts are decimal.Decimal; share fractions are float64
// 3. Models carry JSON tags because they travel over the RPC codec unchanged
package models
