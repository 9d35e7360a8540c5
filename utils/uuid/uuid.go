package uuid

import (
	google_uuid "github.com/google/uuid"
)

// MustUUID returns a random (version 4) UUID string.
// It panics if the system's random source fails.
func MustUUID() string {
	return google_uuid.New().String()
}

// UUID is like MustUUID except it returns an
// error instead of panicking
func UUID() (string, error) {
	u, err := google_uuid.NewRandom()

	if err != nil {
		return "", err
	}

	return u.String(), nil
}
