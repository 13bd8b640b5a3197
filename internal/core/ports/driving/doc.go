// Package driving defines the interfaces external actors use to drive
// the core (primary ports). The CLI and MCP adapters depend on these,
// and core services implement them.
package driving
