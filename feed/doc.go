// Package feed implements cursor-style incremental loading for
// infinite-scroll lists: the main design feed, a designer's portfolio,
// and the notification tray.
//
// A Loader owns one query signature. Pages are fetched in strictly
// increasing index order with at most one fetch in flight; changing the
// signature discards everything and restarts from page zero.
package feed
