// Package notifications drives the notification tray: a paginated,
// newest-first list, a cached unread counter, and optimistic
// read-marking. Marking a notification read patches the loaded list
// and decrements the counter before the request settles; failures
// restore the exact previous state.
package notifications
