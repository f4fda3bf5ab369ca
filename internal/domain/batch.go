package domain

import (
	"fmt"
	"slices"
	"time"
)

// BatchStatus is the overall outcome of a batch.
type BatchStatus string

const (
	// BatchAccepted means every record in the batch was accepted.
	BatchAccepted BatchStatus = "accepted"
	// BatchPartial means at least one record was rejected.
	BatchPartial BatchStatus = "partial"
)

// BatchResult summarises the processing of one batch. Errors is in input
// order and each entry names the index of the rejected record.
type BatchResult struct {
	BatchID       string      `json:"batchId"`
	TraceID       string      `json:"traceId"`
	TotalReceived int         `json:"totalReceived"`
	TotalAccepted int         `json:"totalAccepted"`
	TotalRejected int         `json:"totalRejected"`
	Errors        []string    `json:"errors"`
	Status        BatchStatus `json:"status"`
	CompletedAt   time.Time   `json:"completedAt"`
}

// BatchResultBuilder accumulates per-record outcomes. It is owned by a
// single goroutine and produces the result exactly once.
type BatchResultBuilder struct {
	batchID  string
	traceID  string
	received int
	accepted int
	errors   []string
}

// NewBatchResultBuilder starts a result for a batch of size received.
func NewBatchResultBuilder(batchID, traceID string, received int) *BatchResultBuilder {
	return &BatchResultBuilder{
		batchID:  batchID,
		traceID:  traceID,
		received: received,
		errors:   make([]string, 0),
	}
}

// Accept records a successfully processed entry.
func (b *BatchResultBuilder) Accept() {
	b.accepted++
}

// Reject records a failed entry at the given input index.
func (b *BatchResultBuilder) Reject(index int, err error) {
	b.errors = append(b.errors, fmt.Sprintf("entry %d: %s", index, err.Error()))
}

// Build returns the final result stamped with completedAt.
func (b *BatchResultBuilder) Build(completedAt time.Time) BatchResult {
	status := BatchAccepted
	if len(b.errors) > 0 {
		status = BatchPartial
	}
	return BatchResult{
		BatchID:       b.batchID,
		TraceID:       b.traceID,
		TotalReceived: b.received,
		TotalAccepted: b.accepted,
		TotalRejected: len(b.errors),
		Errors:        slices.Clone(b.errors),
		Status:        status,
		CompletedAt:   completedAt.UTC(),
	}
}
