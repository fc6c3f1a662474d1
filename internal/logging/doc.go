// Package logging configures structured JSON logging for msgindex.
//
// Logs go to a size-rotated file under ~/.msgindex/logs/. Interactive
// commands may mirror them to stderr; the MCP server never writes to
// stderr or stdout because stdout carries the protocol stream.
// The msgindex-logs command reads the same file back through Viewer.
package logging
