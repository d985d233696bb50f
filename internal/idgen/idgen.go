package idgen

import (
	"github.com/google/uuid"
)

// New generates a request-scoped UUID
func New() string {
	return uuid.New().String()
}
