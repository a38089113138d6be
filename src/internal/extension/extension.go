// FILE: yetitel/src/internal/extension/extension.go

// Package extension defines the host/extension contract. The host owns the
// bounded event queue and drives each extension through an explicit
// lifecycle: Initialize while the pipeline is still cold, OnReady once the
// queue exists and ingestion is about to start.
package extension

import (
	"fmt"
	"sync"

	"yetitel/src/internal/config"
	"yetitel/src/internal/core"

	"github.com/lixenwraith/log"
)

// Extension is one pluggable pipeline component.
type Extension interface {
	// Name identifies the extension in logs and status output.
	Name() string

	// Initialize prepares cold state (stores, directories). No events
	// flow yet.
	Initialize(ctx *Context) error

	// OnReady wires the extension into the running pipeline.
	OnReady(ctx *Context) error
}

// Closer is implemented by extensions holding resources the host must
// release on shutdown.
type Closer interface {
	Close() error
}

// Context is the host state handed to extensions during lifecycle calls.
type Context struct {
	RootDir string
	Config  *config.Config
	Logger  *log.Logger

	mu      sync.Mutex
	queue   <-chan core.Event
	claimed bool
}

// NewContext binds the host's event queue into a lifecycle context.
func NewContext(rootDir string, cfg *config.Config, queue <-chan core.Event, logger *log.Logger) *Context {
	return &Context{
		RootDir: rootDir,
		Config:  cfg,
		Logger:  logger,
		queue:   queue,
	}
}

// Events hands the receive side of the event queue to exactly one caller.
// The pipeline is single-consumer; a second claim is a wiring bug.
func (c *Context) Events() (<-chan core.Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.claimed {
		return nil, fmt.Errorf("event queue already claimed by another subscriber")
	}
	c.claimed = true
	return c.queue, nil
}

// Registry holds registered extensions in registration order.
type Registry struct {
	mu         sync.Mutex
	extensions []Extension
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds an extension. Duplicate names are rejected.
func (r *Registry) Register(ext Extension) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.extensions {
		if existing.Name() == ext.Name() {
			return fmt.Errorf("extension %q already registered", ext.Name())
		}
	}
	r.extensions = append(r.extensions, ext)
	return nil
}

// InitializeAll runs Initialize on every extension in registration order,
// stopping at the first failure.
func (r *Registry) InitializeAll(ctx *Context) error {
	for _, ext := range r.list() {
		if err := ext.Initialize(ctx); err != nil {
			return fmt.Errorf("extension %q initialize: %w", ext.Name(), err)
		}
		ctx.Logger.Info("msg", "Extension initialized",
			"component", "extension",
			"name", ext.Name())
	}
	return nil
}

// NotifyReady runs OnReady on every extension in registration order.
func (r *Registry) NotifyReady(ctx *Context) error {
	for _, ext := range r.list() {
		if err := ext.OnReady(ctx); err != nil {
			return fmt.Errorf("extension %q on-ready: %w", ext.Name(), err)
		}
		ctx.Logger.Info("msg", "Extension ready",
			"component", "extension",
			"name", ext.Name())
	}
	return nil
}

// CloseAll releases extension resources in reverse registration order.
// Failures are logged, not propagated; shutdown keeps going.
func (r *Registry) CloseAll(logger *log.Logger) {
	exts := r.list()
	for i := len(exts) - 1; i >= 0; i-- {
		closer, ok := exts[i].(Closer)
		if !ok {
			continue
		}
		if err := closer.Close(); err != nil {
			logger.Error("msg", "Extension close failed",
				"component", "extension",
				"name", exts[i].Name(),
				"error", err)
		}
	}
}

func (r *Registry) list() []Extension {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Extension, len(r.extensions))
	copy(out, r.extensions)
	return out
}
