package domain

import "context"

// Storage persists a record to durable storage. Implementations may block
// on I/O and should honour ctx cancellation.
type Storage interface {
	Store(ctx context.Context, rec Record) error
}

// Alerter delivers an error record to the alerting channel.
type Alerter interface {
	Notify(ctx context.Context, rec ErrorRecord) error
}

// LogRepository is the keyed read-back store. Writes are last-write-wins
// per id and safe for concurrent use.
type LogRepository interface {
	Save(ctx context.Context, rec Record) error
	FindByID(ctx context.Context, id string) (Record, error)
	FindAll(ctx context.Context) ([]Record, error)
	FindBySource(ctx context.Context, source string) ([]Record, error)
	DeleteByID(ctx context.Context, id string) error
}

// BufferedRecord is a record read back from the stream buffer together
// with the message id needed to acknowledge it.
type BufferedRecord struct {
	StreamMessageID string
	Record          Record
}

// BufferRepository is the consumer side of the durable stream buffer.
type BufferRepository interface {
	// ReadBatch reads up to count unacknowledged records for a consumer.
	ReadBatch(ctx context.Context, group, consumer string, count int) ([]BufferedRecord, error)

	// Acknowledge marks stream messages as processed.
	Acknowledge(ctx context.Context, group string, messageIDs ...string) error

	// MoveToDLQ parks records that could not be sunk.
	MoveToDLQ(ctx context.Context, records []BufferedRecord) error
}

// SinkRepository writes batches of records to long-term storage.
type SinkRepository interface {
	WriteBatch(ctx context.Context, records []Record) error
}

// APIKeyRepository defines the interface for validating API keys.
type APIKeyRepository interface {
	// IsValid checks if the provided API key is valid and active.
	// Implementations should handle caching to reduce database load.
	IsValid(ctx context.Context, key string) (bool, error)
}

// WALRepository defines the interface for the Write-Ahead Log failover mechanism.
type WALRepository interface {
	// Write appends a record to the local WAL file.
	Write(ctx context.Context, rec Record) error

	// Replay reads records from the WAL and sends them to a handler function.
	// The handler is responsible for re-buffering the record (e.g., to Redis).
	Replay(ctx context.Context, handler func(rec Record) error) error

	// Truncate removes WAL segments that have been successfully replayed.
	Truncate(ctx context.Context) error
}
