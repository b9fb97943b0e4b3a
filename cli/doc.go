// Package cli implements the reloom command tree.
//
// Commands share one wired application: configuration is loaded, the
// session restored from the local store, and the API client and domain
// services built once in the root command's PersistentPreRunE.
package cli
