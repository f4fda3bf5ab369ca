package mocks

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/V4T54L/ghostlog/internal/domain"
	"github.com/V4T54L/ghostlog/internal/pkg/tracectx"
)

// unit instruments a collaborator call: optional delay that honours
// cancellation, an injected error, and counters for calls that completed
// naturally versus calls that observed cancellation.
type unit struct {
	mu          sync.Mutex
	calls       int
	completed   int
	cancelled   int
	traces      []domain.TraceContext
	cancelledCh chan struct{}
	closeOnce   sync.Once
}

func (u *unit) run(ctx context.Context, delay time.Duration, err error) error {
	u.mu.Lock()
	u.calls++
	if tc, ok := tracectx.From(ctx); ok {
		u.traces = append(u.traces, tc)
	}
	u.mu.Unlock()

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			u.mu.Lock()
			u.cancelled++
			u.mu.Unlock()
			u.closeOnce.Do(func() { close(u.signal()) })
			return ctx.Err()
		}
	}

	u.mu.Lock()
	u.completed++
	u.mu.Unlock()
	return err
}

func (u *unit) signal() chan struct{} {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.cancelledCh == nil {
		u.cancelledCh = make(chan struct{})
	}
	return u.cancelledCh
}

// CancelledSignal is closed the first time a call observes cancellation.
func (u *unit) CancelledSignal() <-chan struct{} { return u.signal() }

// Calls returns the number of calls started.
func (u *unit) Calls() int { u.mu.Lock(); defer u.mu.Unlock(); return u.calls }

// Completed returns the number of calls that ran to natural completion.
func (u *unit) Completed() int { u.mu.Lock(); defer u.mu.Unlock(); return u.completed }

// Cancelled returns the number of calls that observed cancellation.
func (u *unit) Cancelled() int { u.mu.Lock(); defer u.mu.Unlock(); return u.cancelled }

// Traces returns the trace contexts seen on the call contexts.
func (u *unit) Traces() []domain.TraceContext {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]domain.TraceContext(nil), u.traces...)
}

// MockStorage is a mock implementation of domain.Storage for testing.
type MockStorage struct {
	unit
	StoreErr   error
	StoreDelay time.Duration

	mu     sync.Mutex
	Stored []domain.Record
}

func (m *MockStorage) Store(ctx context.Context, rec domain.Record) error {
	if err := m.run(ctx, m.StoreDelay, m.StoreErr); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Stored = append(m.Stored, rec)
	return nil
}

// StoredRecords returns a copy of the records stored so far.
func (m *MockStorage) StoredRecords() []domain.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Record(nil), m.Stored...)
}

// MockAlerter is a mock implementation of domain.Alerter for testing.
type MockAlerter struct {
	unit
	NotifyErr   error
	NotifyDelay time.Duration

	mu       sync.Mutex
	Notified []domain.ErrorRecord
}

func (m *MockAlerter) Notify(ctx context.Context, rec domain.ErrorRecord) error {
	if err := m.run(ctx, m.NotifyDelay, m.NotifyErr); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Notified = append(m.Notified, rec)
	return nil
}

// NotifiedRecords returns a copy of the records notified so far.
func (m *MockAlerter) NotifiedRecords() []domain.ErrorRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.ErrorRecord(nil), m.Notified...)
}

// MockBufferRepository is a mock implementation of domain.BufferRepository.
type MockBufferRepository struct {
	mu              sync.Mutex
	ReadBatchResult []domain.BufferedRecord
	AckedMessageIDs []string
	DLQRecords      []domain.BufferedRecord
	ReadErr         error
	AckErr          error
	DLQErr          error
}

func (m *MockBufferRepository) ReadBatch(ctx context.Context, group, consumer string, count int) ([]domain.BufferedRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ReadErr != nil {
		return nil, m.ReadErr
	}
	return m.ReadBatchResult, nil
}

func (m *MockBufferRepository) Acknowledge(ctx context.Context, group string, messageIDs ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AckErr != nil {
		return m.AckErr
	}
	m.AckedMessageIDs = append(m.AckedMessageIDs, messageIDs...)
	return nil
}

func (m *MockBufferRepository) MoveToDLQ(ctx context.Context, records []domain.BufferedRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.DLQErr != nil {
		return m.DLQErr
	}
	m.DLQRecords = append(m.DLQRecords, records...)
	return nil
}

// MockSinkRepository is a mock implementation of domain.SinkRepository.
type MockSinkRepository struct {
	mu             sync.Mutex
	WrittenRecords []domain.Record
	WriteAttempts  int
	WriteErr       error
}

func (m *MockSinkRepository) WriteBatch(ctx context.Context, records []domain.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.WriteAttempts++
	if m.WriteErr != nil {
		return m.WriteErr
	}
	m.WrittenRecords = append(m.WrittenRecords, records...)
	return nil
}

// MockAPIKeyRepository is a mock implementation of domain.APIKeyRepository.
type MockAPIKeyRepository struct {
	ValidKeys map[string]bool
	Err       error
}

func (m *MockAPIKeyRepository) IsValid(ctx context.Context, key string) (bool, error) {
	if m.Err != nil {
		return false, m.Err
	}
	return m.ValidKeys[key], nil
}

// MockStreamAdminRepository is a mock implementation of domain.StreamAdminRepository.
// It records the last stream/group it was asked about.
type MockStreamAdminRepository struct {
	mu         sync.Mutex
	LastStream string
	LastGroup  string
	LastCount  int64
	LastStart  string
	Claimed    []domain.BufferedRecord
	Requeued   int64
	Err        error
	// Streams, when set, makes calls for any other stream fail with
	// domain.ErrInvalidArgument.
	Streams []string
}

func (m *MockStreamAdminRepository) record(stream, group string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Streams) > 0 && !slices.Contains(m.Streams, stream) {
		return fmt.Errorf("%w: unknown stream %q", domain.ErrInvalidArgument, stream)
	}
	m.LastStream, m.LastGroup = stream, group
	return m.Err
}

func (m *MockStreamAdminRepository) GetGroupInfo(ctx context.Context, stream string) ([]domain.ConsumerGroupInfo, error) {
	if err := m.record(stream, ""); err != nil {
		return nil, err
	}
	return []domain.ConsumerGroupInfo{{Name: "log-processors", Consumers: 1}}, nil
}

func (m *MockStreamAdminRepository) GetConsumerInfo(ctx context.Context, stream, group string) ([]domain.ConsumerInfo, error) {
	if err := m.record(stream, group); err != nil {
		return nil, err
	}
	return []domain.ConsumerInfo{{Name: "consumer-1"}}, nil
}

func (m *MockStreamAdminRepository) GetPendingSummary(ctx context.Context, stream, group string) (*domain.PendingMessageSummary, error) {
	if err := m.record(stream, group); err != nil {
		return nil, err
	}
	return &domain.PendingMessageSummary{}, nil
}

func (m *MockStreamAdminRepository) GetPendingMessages(ctx context.Context, stream, group, consumer, startID string, count int64) ([]domain.PendingMessageDetail, error) {
	if err := m.record(stream, group); err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.LastStart, m.LastCount = startID, count
	m.mu.Unlock()
	return []domain.PendingMessageDetail{}, nil
}

func (m *MockStreamAdminRepository) ClaimMessages(ctx context.Context, stream, group, consumer string, minIdleTime time.Duration, messageIDs []string) ([]domain.BufferedRecord, error) {
	if err := m.record(stream, group); err != nil {
		return nil, err
	}
	return m.Claimed, nil
}

func (m *MockStreamAdminRepository) AcknowledgeMessages(ctx context.Context, stream, group string, messageIDs ...string) (int64, error) {
	if err := m.record(stream, group); err != nil {
		return 0, err
	}
	return int64(len(messageIDs)), nil
}

func (m *MockStreamAdminRepository) TrimStream(ctx context.Context, stream string, maxLen int64) (int64, error) {
	if err := m.record(stream, ""); err != nil {
		return 0, err
	}
	return 0, nil
}

func (m *MockStreamAdminRepository) RequeueDeadLetters(ctx context.Context, count int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastCount = count
	if m.Err != nil {
		return 0, m.Err
	}
	return m.Requeued, nil
}
