// Package version holds the runtime's own version string.
package version

// Version is this runtime's version, reported by the CLI's "version"
// subcommand. Compiled-module headers carry wasm.CompiledModuleVersion
// instead.
const Version = "0.1.0"
