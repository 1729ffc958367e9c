package templates

import (
	"errors"
	"fmt"

	"golang.org/x/mod/semver"
)

// StoreVersion is the format version recorded with every saved run.
const StoreVersion = "v1.0.0"

var ErrIncompatibleStore = errors.New("incompatible store version")

// IsCompatibleVersion reports whether a store written at version can be read by a
// reader at current. Major versions must match; minor and patch may differ.
func IsCompatibleVersion(version, current string) (bool, error) {
	if !semver.IsValid(version) {
		return false, fmt.Errorf("invalid store version: %q", version)
	}
	if !semver.IsValid(current) {
		return false, fmt.Errorf("invalid reader version: %q", current)
	}
	return semver.Major(version) == semver.Major(current), nil
}

func checkStoreVersion(version string) error {
	compatible, err := IsCompatibleVersion(version, StoreVersion)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrIncompatibleStore, err)
	}
	if !compatible {
		return fmt.Errorf("%w: store version %s, reader requires %s.x.x",
			ErrIncompatibleStore, version, semver.Major(StoreVersion))
	}
	return nil
}
