// Package session owns the client's authenticated session: the current
// user identity and access token, persisted across restarts.
//
// Login is atomic (token and user set together), Logout is idempotent,
// and subscribers can observe changes through OnChange. The store only
// reflects last-known client state; the backend decides whether the
// credential is still valid.
package session
