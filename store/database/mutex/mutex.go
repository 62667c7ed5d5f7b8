// Package mutex provides a global mutex.
package mutex

import "sync"

var m sync.RWMutex

// Lock locks the global mutex for writes.
func Lock() { m.Lock() }

// Unlock unlocks the global mutex.
func Unlock() { m.Unlock() }

// RLock locks the global mutex for reads.
func RLock() { m.RLock() }

// RUnlock unlocks the global mutex for reads.
func RUnlock() { m.RUnlock() }
