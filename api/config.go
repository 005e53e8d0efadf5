package api

import (
	"io"
	"strings"

	"github.com/second-state/ssvm-go/internal/logging"
	"github.com/second-state/ssvm-go/internal/wasm"
)

// RuntimeConfig controls behavior shared across every module a Runtime
// instantiates: the effective memory ceiling and where the runtime's own
// diagnostic log lines go.
type RuntimeConfig struct {
	memoryMaxPages uint32
	logger         logging.Logger
}

// NewRuntimeConfig returns the default configuration: the MVP's full
// 65536-page memory ceiling and a discarding logger.
func NewRuntimeConfig() *RuntimeConfig {
	return &RuntimeConfig{memoryMaxPages: wasm.MaxMemoryPages, logger: logging.Discard()}
}

// clone ensures every field is copied even when its zero value is nil.
func (c *RuntimeConfig) clone() *RuntimeConfig {
	ret := *c
	return &ret
}

// WithMemoryMaxPages lowers the hard ceiling a module's memory can grow to,
// from the MVP default of 65536 pages (4GiB). A module whose declared
// memory.max exceeds this is rejected at instantiation rather than silently
// clamped.
func (c *RuntimeConfig) WithMemoryMaxPages(pages uint32) *RuntimeConfig {
	ret := c.clone()
	ret.memoryMaxPages = pages
	return ret
}

// WithLogger directs the runtime's own trap/failure diagnostics through l
// instead of discarding them.
func (c *RuntimeConfig) WithLogger(l logging.Logger) *RuntimeConfig {
	ret := c.clone()
	ret.logger = l
	return ret
}

// NewRuntimeWithConfig creates a Runtime whose engine honors cfg's logger.
// The memory ceiling in cfg is enforced by the store's memory allocation
// path when a module is instantiated against this runtime.
func NewRuntimeWithConfig(cfg *RuntimeConfig) *Runtime {
	r := NewRuntime()
	if cfg.logger != nil {
		r = r.WithLogger(cfg.logger)
	}
	r.store.MemoryMaxPages = cfg.memoryMaxPages
	return r
}

// ModuleConfig configures the host-facing surface of a single module
// instantiation: its registered name and, for host modules that expose a
// text stream, where that stream is read from or written to. It exists as
// a fluent builder separate from RuntimeConfig because it is expected to be
// built fresh per module rather than shared across a Runtime's lifetime.
type ModuleConfig struct {
	name   string
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

// NewModuleConfig returns a ModuleConfig with no name, an empty stdin and
// both output streams discarded.
func NewModuleConfig() *ModuleConfig {
	return &ModuleConfig{stdin: strings.NewReader(""), stdout: io.Discard, stderr: io.Discard}
}

// WithName sets the name a module is registered under.
func (c *ModuleConfig) WithName(name string) *ModuleConfig {
	c.name = name
	return c
}

// WithStdout directs a host module's standard-output-style writes to w
// instead of discarding them.
func (c *ModuleConfig) WithStdout(w io.Writer) *ModuleConfig {
	c.stdout = w
	return c
}

// WithStderr directs a host module's standard-error-style writes to w
// instead of discarding them.
func (c *ModuleConfig) WithStderr(w io.Writer) *ModuleConfig {
	c.stderr = w
	return c
}

// WithStdin directs a host module's standard-input-style reads to r instead
// of an empty reader.
func (c *ModuleConfig) WithStdin(r io.Reader) *ModuleConfig {
	c.stdin = r
	return c
}
