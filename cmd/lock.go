package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/caracaldl/caracal/internal/config"
)

// InstanceLock wraps the file lock that arbitrates which process is the
// single scheduler-owning instance.
type InstanceLock struct {
	flock *flock.Flock
}

var instanceLock *InstanceLock

// AcquireLock attempts to become the master instance. It returns true if
// this process now owns the scheduler; false means another instance already
// does and this process should talk to it over the control API instead.
func AcquireLock() (bool, error) {
	if err := config.EnsureDirs(); err != nil {
		return false, fmt.Errorf("failed to ensure config dirs: %w", err)
	}

	lockPath := filepath.Join(config.CaracalDir(), "caracal.lock")
	fileLock := flock.New(lockPath)

	locked, err := fileLock.TryLock()
	if err != nil {
		return false, fmt.Errorf("failed to try lock: %w", err)
	}
	if !locked {
		return false, nil
	}

	instanceLock = &InstanceLock{flock: fileLock}
	return true, nil
}

// ReleaseLock releases the lock if this process holds it.
func ReleaseLock() error {
	if instanceLock != nil && instanceLock.flock != nil {
		return instanceLock.flock.Unlock()
	}
	return nil
}
