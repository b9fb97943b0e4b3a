// Package profiles reads and edits user profiles. Lookups are cached
// with a long freshness window because author profiles back every card
// in the design feed; edits to the viewer's own profile write through
// to the session store and the cache.
package profiles
