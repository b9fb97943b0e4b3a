// Package querycache is a keyed, TTL-aware cache of server responses,
// the client's single source of truth for remote data.
//
// Each entry moves through an explicit Fresh -> Stale -> Fetching state
// machine. Reads within the stale time are served without a network
// call; concurrent fetches for one key are coalesced so at most one
// request is in flight per key. A failed fetch never corrupts an entry:
// the previous value is kept and the error is surfaced alongside it.
//
// Mutate applies a tentative value synchronously, snapshots the previous
// value, and rolls back exactly on commit failure. Only one optimistic
// patch may be outstanding per key; a second Mutate on the same key is
// rejected with ErrMutationPending rather than interleaved, so rapid
// repeat mutations cannot silently lose updates.
package querycache
