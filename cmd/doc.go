// Package cmd implements the command-line interface of dQL. It
// provides a hierarchical command structure for running the query
// server and inspecting it as a client.
//
// The package is organized into several subpackages:
//
//   - serve: Commands for starting and configuring the dQL server
//   - info: Client command printing a server's storage statistics
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See dql -help for a list of all commands.
package cmd
