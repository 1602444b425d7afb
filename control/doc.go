// Package control
// Author: momentics <momentics@gmail.com>
//
// Configuration, counters and debug introspection for the host-simulated
// kernel:
//   - KernelConfig with validated updates and reload listeners
//   - trap and upcall counters
//   - named probes over kernel state
package control
