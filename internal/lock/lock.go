// Package lock provides mutexes with deadlock detection enabled.
// detection adds a small overhead which is acceptable for the sync
// loop's once-per-tick locking.
package lock

import (
	"github.com/sasha-s/go-deadlock"
)

type Mutex = deadlock.Mutex

type RWMutex = deadlock.RWMutex
