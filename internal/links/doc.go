// Package links discovers external workbook references and drives link
// update runs. A scan walks every open workbook twice: once over the
// declared link sources and once over formula text, deduplicating per
// workbook. Scan results are rebuilt from scratch each pass; nothing here
// persists between runs.
package links
