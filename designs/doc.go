// Package designs is the design domain: paginated feeds, design CRUD
// with image uploads, likes and comments with optimistic updates, and
// deduplicated view tracking.
//
// Likes and comments follow the same discipline: the cached value is
// patched synchronously so readers see the change immediately, the
// request is committed, and on failure the previous cached state is
// restored exactly. Only one optimistic patch may be unresolved per
// cache key; a second attempt is rejected, not queued.
package designs
