package storage

import "herowatch/internal/hero"

// Storage is the persistence contract for the service. The one rotating Hero
// credential is the only durable state; everything else lives in memory and
// is rebuilt each refresh cycle.
type Storage interface {
	hero.CredentialStore
	Close() error
}
