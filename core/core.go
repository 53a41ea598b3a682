package core

import "github.com/google/uuid"

// NewID returns a random unique identifier. Used for turn ids, task ids and
// wire envelope correlation. Task ids are generated on the host side so a
// retried submission carries the same id and remote agents can deduplicate.
func NewID() string {
	return uuid.New().String()
}
