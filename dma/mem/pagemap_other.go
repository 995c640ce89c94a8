//go:build !linux

package mem

import "fmt"

// MlockLocker is unavailable on this platform; every Lock fails and callers
// fall back to identity addressing.
type MlockLocker struct{}

// NewMlockLocker returns a locker that always reports ErrLockUnavailable.
func NewMlockLocker() *MlockLocker {
	return &MlockLocker{}
}

// Lock always fails.
func (l *MlockLocker) Lock(r Region, _ LockFlags) (Lock, error) {
	return Lock{}, fmt.Errorf("region %#x+%d: %w", r.Addr, r.Size, ErrLockUnavailable)
}

// Unlock always fails; no handle is ever issued.
func (l *MlockLocker) Unlock(handle uint32) error {
	return fmt.Errorf("unlock %d: %w", handle, ErrUnknownHandle)
}
