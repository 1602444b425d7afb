// Author: momentics <momentics@gmail.com>
// SPDX-License-Identifier: MIT

// Package fake provides a host-simulated kernel for the trap layer: it
// decodes command, subscribe and yield from the process register file,
// keeps subscriptions and a mailbox of pending upcalls, and performs the
// exception-return rewrite that runs an upcall inside yield. Alarm and GPIO
// drivers give it interrupt sources.
package fake
