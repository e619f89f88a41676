// Package errext contains extensions for normal Go errors: exit codes the
// CLI should terminate with and human-readable hints.
package errext
