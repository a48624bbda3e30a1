// Package textutil provides text processing utilities for display formatting
// and filename sanitization.
//
// The primary use cases are:
//   - Truncating formulas and paths for fixed-width console output
//   - Normalizing cell addresses for display (stripping absolute markers)
//   - Sanitizing workbook names for safe filesystem use
package textutil
