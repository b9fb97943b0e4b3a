// Package viewtrack counts significant design views: one event per
// design per browsing session, sent only after an engagement delay, and
// never allowed to disrupt the primary UI when delivery fails.
package viewtrack
