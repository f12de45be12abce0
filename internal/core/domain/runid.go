package domain

import "github.com/google/uuid"

// NewRunID returns a fresh identifier for one engine run. Resources
// created by the run are labeled with it so later runs can tell their own
// resources from leftovers.
func NewRunID() string {
	return uuid.New().String()
}
