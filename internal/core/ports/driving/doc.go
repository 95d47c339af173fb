// Package driving declares what the CLI and the MCP server may ask of loom:
// build context, index entities, generate prose and edit settings.
//
// internal/core/services implements every interface here.
package driving
