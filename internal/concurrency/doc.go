// File: internal/concurrency/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Concurrency primitives bridging producer goroutines into a single-threaded
// epoll loop: a bounded lock-free MPMC ring, the writer source's message
// queue built on it, and an eventfd wake-up.
package concurrency
