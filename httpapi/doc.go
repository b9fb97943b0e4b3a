// Package httpapi is the HTTP adapter for the reloom backend API.
//
// It wraps net/http with base-URL resolution, JSON encoding, bearer
// credential injection from a session token source, and centralized
// 401 handling: a rejected credential tears down the session through
// the configured hook and the typed error is still returned to the
// caller so in-flight flows can roll back.
//
// Response errors are classified once at this boundary into *Error
// values carrying a Detail tagged union (plain message, field errors,
// or a coded domain failure). The adapter never retries; retries are
// the explicit responsibility of individual flows.
package httpapi
