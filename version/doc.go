// Package version embeds build information for the reloom CLI.
//
// Version, git commit, and build time are set at compile time via
// -ldflags:
//
//	go build -ldflags "-X github.com/reloom/reloom-go/version.Version=1.0.0"
//
// When the ldflags are absent, VCS metadata from
// runtime/debug.ReadBuildInfo fills the gaps.
package version
