// Package auth implements login, signup, and logout against the ReLoom
// backend, keeping the session store and query cache consistent with
// the authentication state.
package auth
