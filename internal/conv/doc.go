// Package conv provides checked integer arithmetic.
//
// Allocation sizes arrive as plain ints from callers. Before they are turned
// into arena offsets they pass through these helpers so an oversized request
// fails cleanly instead of wrapping around.
package conv
