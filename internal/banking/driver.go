package banking

import (
	"errors"
	"sync"
)

// ErrNoDriver is returned when no protocol driver has been registered.
// Test runs replay cached records and never hit this.
var ErrNoDriver = errors.New("no banking protocol driver registered")

var (
	driverMu sync.Mutex
	driver   Dialer
)

// RegisterDriver installs the protocol driver used for live retrieval.
// The wire implementation lives outside this module; the embedding
// build registers it before the pipeline runs.
func RegisterDriver(d Dialer) {
	driverMu.Lock()
	defer driverMu.Unlock()
	driver = d
}

// Driver returns the registered protocol driver.
func Driver() (Dialer, error) {
	driverMu.Lock()
	defer driverMu.Unlock()
	if driver == nil {
		return nil, ErrNoDriver
	}
	return driver, nil
}
