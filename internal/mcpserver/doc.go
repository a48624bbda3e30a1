// Package mcpserver exposes binder operations as MCP tools over stdio so
// editor agents can list workbooks, scan external links, snapshot sessions,
// and check Excel process health without shelling out to the CLI.
package mcpserver
