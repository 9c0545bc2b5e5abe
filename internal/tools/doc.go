// Package tools provides host process helpers shared by the launcher and the
// external content hasher.
//
// Ownership boundary:
// - command execution helpers
//
// - detached process start for host application launches
package tools
