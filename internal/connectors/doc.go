// Package connectors provides the sources loom reads manuscripts from.
// Each connector turns an on-disk layout into domain entities and feeds
// them to the IndexService.
package connectors
