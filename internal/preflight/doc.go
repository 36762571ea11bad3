// Package preflight provides readiness checks for the services, binaries and
// filesystem paths a scene run depends on.
//
// The CLI "framewright check" command prints every result, and "framewright
// run" calls RunAll before starting so a run does not fail hours in on a
// missing key or a full disk.
package preflight
