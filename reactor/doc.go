// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor provides the readiness selector used by the server event loop
// (level-triggered epoll with an eventfd wakeup on Linux) and the raw
// non-blocking socket calls the loop performs on registered descriptors.
package reactor
