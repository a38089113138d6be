// FILE: yetitel/src/internal/storage/storage.go
package storage

// Store is the narrow contract the pipeline has with the durable backend.
// The dispatch loop only ever writes; Get exists for inspection and tests.
type Store interface {
	// Put persists a value under a key. The pipeline uses the record's
	// time-ordered identifier as the key so range scans follow arrival order.
	Put(key, value []byte) error

	// Get returns the value stored under key.
	Get(key []byte) ([]byte, error)

	// Close flushes and releases the backend.
	Close() error
}
