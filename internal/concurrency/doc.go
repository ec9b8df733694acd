// File: internal/concurrency/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Concurrency primitives shared by the reactor: an unbounded lock-free
// queue used for buffer recycling, actor mailboxes and deferred selector
// tasks, and a fixed-size executor that runs actor drain loops.
package concurrency
