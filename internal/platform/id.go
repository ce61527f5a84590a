package platform

import (
	"fmt"

	"github.com/google/uuid"
)

func NewID() string {
	return uuid.New().String()
}

// WorkflowID builds a human-readable Temporal workflow ID from a prefix and
// the resource's unique ID.
func WorkflowID(prefix, id string) string {
	return fmt.Sprintf("%s-%s", prefix, id)
}
