// Package ir provides the compiled program representation for weft.
//
// This package contains data types only: runtime values, paths, expression
// trees, action steps, and the program document. All other internal
// packages import ir; ir imports nothing internal. This keeps the IR the
// foundational layer with no circular dependencies.
//
// Key design constraints:
//   - Value is a sealed variant set; containers always travel as pointers
//     so identity comparison is pointer comparison (structural sharing)
//   - Expression and step trees are immutable once decoded
//   - The tagged-variant wire field names (expr, do, op, target, path) are
//     the external contract with the compiler and must not change
//   - Logical clocks (seq) only, never wall-clock timestamps, in anything
//     content-addressed
package ir
