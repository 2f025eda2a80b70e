// Package broadcast orchestrates one mass-messaging run: it resolves the
// named platform to a sender and recipients, optionally personalizes the
// content per recipient from the contact directory, and dispatches sends
// with per-recipient failure isolation.
//
// A run has two phases. The construction phase (registry resolution, sender
// login, recipient normalization, directory access, template resolution) is
// an atomic precondition check: any failure there aborts before a single
// recipient is contacted. The dispatch phase is best-effort: each send has
// an independent outcome and a transport failure for one recipient never
// aborts the rest of the batch.
package broadcast
