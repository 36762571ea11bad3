// Package main hosts the framewright CLI entrypoint and command graph.
//
// The Cobra command tree starts and resumes scene runs, inspects saved plans
// and the run ledger, runs preflight checks, and scaffolds configuration.
// Configuration resolution and logger setup live in commandContext so
// subcommands only wire the pieces they need.
package main
