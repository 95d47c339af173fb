// Package services holds loom's use cases behind the driving ports.
//
// A writing flow never fails because an optional collaborator is down.
// Embedding and store problems degrade the result and surface in
// domain.ContextResult warnings or a failed domain.IndexReport.
package services
