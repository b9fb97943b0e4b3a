// Package localstore provides durable client-side key-value storage
// backed by SQLite, used to persist the session across restarts.
package localstore
