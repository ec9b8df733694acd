// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Error definitions for concurrency module.

package concurrency

import "errors"

// ErrExecutorClosed indicates the executor has been shut down
var ErrExecutorClosed = errors.New("executor is closed")
