// Package id generates the run ids that correlate the log lines of one import or
// repair run.
package id

import (
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	mutex   sync.Mutex
	entropy = ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
)

// NewRunIDAt returns a run id whose timestamp part is t. Ids generated within the
// same millisecond are strictly increasing.
func NewRunIDAt(t time.Time) (string, error) {
	mutex.Lock()
	defer mutex.Unlock()

	id, err := ulid.New(ulid.Timestamp(t), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// NewRunID returns a run id stamped with the current time.
func NewRunID() (string, error) {
	return NewRunIDAt(time.Now())
}

// StartedAt returns the time encoded in a run id.
func StartedAt(runID string) (time.Time, error) {
	id, err := ulid.ParseStrict(runID)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(id.Time()), nil
}

// IsValid reports whether s is a well formed run id.
func IsValid(s string) bool {
	_, err := ulid.ParseStrict(s)
	return err == nil
}
