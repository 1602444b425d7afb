// control/config.go
// Author: momentics <momentics@gmail.com>
//
// Simulated kernel configuration with snapshot reads and reload listeners.

package control

import (
	"fmt"
	"sync"

	"github.com/hashicorp/go-hclog"
)

// KernelConfig tunes the host-simulated kernel.
type KernelConfig struct {
	// QueueDepth bounds the pending upcall mailbox; further upcalls are dropped.
	QueueDepth int
	// TraceDepth bounds the trap frame trace; 0 disables tracing.
	TraceDepth int
	// AlarmFrequency is the alarm driver tick rate in Hz.
	AlarmFrequency uint32
	// LogLevel is an hclog level name.
	LogLevel string
}

// DefaultKernelConfig mirrors a small Cortex-M board.
func DefaultKernelConfig() KernelConfig {
	return KernelConfig{
		QueueDepth:     64,
		TraceDepth:     256,
		AlarmFrequency: 32768,
		LogLevel:       "info",
	}
}

// Validate rejects values the kernel cannot run with.
func (c KernelConfig) Validate() error {
	if c.QueueDepth <= 0 {
		return fmt.Errorf("control: queue depth %d must be positive", c.QueueDepth)
	}
	if c.TraceDepth < 0 {
		return fmt.Errorf("control: trace depth %d is negative", c.TraceDepth)
	}
	if c.AlarmFrequency == 0 {
		return fmt.Errorf("control: alarm frequency must be non-zero")
	}
	if hclog.LevelFromString(c.LogLevel) == hclog.NoLevel {
		return fmt.Errorf("control: unknown log level %q", c.LogLevel)
	}
	return nil
}

// ConfigStore holds the live KernelConfig and notifies listeners on change.
type ConfigStore struct {
	mu        sync.RWMutex
	config    KernelConfig
	listeners []func(KernelConfig)
}

// NewConfigStore initializes a store with cfg.
func NewConfigStore(cfg KernelConfig) *ConfigStore {
	return &ConfigStore{config: cfg}
}

// Get returns a copy of the current config.
func (cs *ConfigStore) Get() KernelConfig {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.config
}

// Update applies fn to a copy, validates it and publishes it. Listeners run
// synchronously on the caller's goroutine after the store is unlocked.
func (cs *ConfigStore) Update(fn func(*KernelConfig)) error {
	cs.mu.Lock()
	next := cs.config
	fn(&next)
	if err := next.Validate(); err != nil {
		cs.mu.Unlock()
		return err
	}
	cs.config = next
	listeners := append(([]func(KernelConfig))(nil), cs.listeners...)
	cs.mu.Unlock()

	for _, l := range listeners {
		l(next)
	}
	return nil
}

// OnReload registers a listener hook called on config changes.
func (cs *ConfigStore) OnReload(fn func(KernelConfig)) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.listeners = append(cs.listeners, fn)
}
