// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor provides the interrupt line a simulated kernel sleeps on
// while its process is blocked in yield: an eventfd on Linux and a latched
// channel on other platforms.
package reactor
