package redis

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/V4T54L/ghostlog/internal/domain"
)

// AdminRepository implements domain.StreamAdminRepository over the record
// stream and its dead-letter stream. Every other key is refused.
type AdminRepository struct {
	client    *redis.Client
	logger    *slog.Logger
	dlqStream string
	streams   []string
}

// NewAdminRepository creates an admin repository for RecordStream and dlqStream.
func NewAdminRepository(client *redis.Client, logger *slog.Logger, dlqStream string) *AdminRepository {
	return &AdminRepository{
		client:    client,
		logger:    logger.With("component", "redis_admin"),
		dlqStream: dlqStream,
		streams:   []string{RecordStream, dlqStream},
	}
}

func (r *AdminRepository) checkStream(stream string) error {
	if !slices.Contains(r.streams, stream) {
		return fmt.Errorf("%w: unknown stream %q", domain.ErrInvalidArgument, stream)
	}
	return nil
}

// streamError maps missing streams and groups to domain.ErrNotFound.
func streamError(op, stream, group string, err error) error {
	msg := err.Error()
	if strings.HasPrefix(msg, "NOGROUP") || strings.Contains(msg, "no such key") {
		if group == "" {
			return fmt.Errorf("%w: %s: stream %s does not exist", domain.ErrNotFound, op, stream)
		}
		return fmt.Errorf("%w: %s: no group %s on stream %s", domain.ErrNotFound, op, group, stream)
	}
	return fmt.Errorf("%s on %s: %w", op, stream, err)
}

// GetGroupInfo lists the consumer groups of stream.
func (r *AdminRepository) GetGroupInfo(ctx context.Context, stream string) ([]domain.ConsumerGroupInfo, error) {
	if err := r.checkStream(stream); err != nil {
		return nil, err
	}
	groups, err := r.client.XInfoGroups(ctx, stream).Result()
	if err != nil {
		return nil, streamError("xinfo groups", stream, "", err)
	}

	result := make([]domain.ConsumerGroupInfo, len(groups))
	for i, g := range groups {
		result[i] = domain.ConsumerGroupInfo{
			Name:            g.Name,
			Consumers:       g.Consumers,
			Pending:         g.Pending,
			LastDeliveredID: g.LastDeliveredID,
		}
	}
	return result, nil
}

// GetConsumerInfo lists the consumers of group.
func (r *AdminRepository) GetConsumerInfo(ctx context.Context, stream, group string) ([]domain.ConsumerInfo, error) {
	if err := r.checkStream(stream); err != nil {
		return nil, err
	}
	consumers, err := r.client.XInfoConsumers(ctx, stream, group).Result()
	if err != nil {
		return nil, streamError("xinfo consumers", stream, group, err)
	}

	result := make([]domain.ConsumerInfo, len(consumers))
	for i, c := range consumers {
		result[i] = domain.ConsumerInfo{Name: c.Name, Pending: c.Pending, Idle: c.Idle}
	}
	return result, nil
}

// GetPendingSummary counts delivered but unacknowledged records of group.
func (r *AdminRepository) GetPendingSummary(ctx context.Context, stream, group string) (*domain.PendingMessageSummary, error) {
	if err := r.checkStream(stream); err != nil {
		return nil, err
	}
	pending, err := r.client.XPending(ctx, stream, group).Result()
	if err != nil {
		return nil, streamError("xpending", stream, group, err)
	}

	return &domain.PendingMessageSummary{
		Total:          pending.Count,
		FirstMessageID: pending.Lower,
		LastMessageID:  pending.Higher,
		ConsumerTotals: pending.Consumers,
	}, nil
}

// GetPendingMessages lists up to count unacknowledged records from startID,
// optionally for one consumer only.
func (r *AdminRepository) GetPendingMessages(ctx context.Context, stream, group, consumer, startID string, count int64) ([]domain.PendingMessageDetail, error) {
	if err := r.checkStream(stream); err != nil {
		return nil, err
	}
	messages, err := r.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream:   stream,
		Group:    group,
		Start:    startID,
		End:      "+",
		Count:    count,
		Consumer: consumer,
	}).Result()
	if err != nil {
		return nil, streamError("xpending", stream, group, err)
	}

	result := make([]domain.PendingMessageDetail, len(messages))
	for i, m := range messages {
		result[i] = domain.PendingMessageDetail{
			ID:         m.ID,
			Consumer:   m.Consumer,
			IdleTime:   m.Idle,
			RetryCount: m.RetryCount,
		}
	}
	return result, nil
}

// ClaimMessages hands records over to consumer. Messages that do not decode
// to a record are claimed but left out of the result.
func (r *AdminRepository) ClaimMessages(ctx context.Context, stream, group, consumer string, minIdleTime time.Duration, messageIDs []string) ([]domain.BufferedRecord, error) {
	if err := r.checkStream(stream); err != nil {
		return nil, err
	}
	claimed, err := r.client.XClaim(ctx, &redis.XClaimArgs{
		Stream:   stream,
		Group:    group,
		Consumer: consumer,
		MinIdle:  minIdleTime,
		Messages: messageIDs,
	}).Result()
	if err != nil {
		return nil, streamError("xclaim", stream, group, err)
	}

	records := decodeMessages(r.logger, claimed)
	r.logger.Info("claimed buffered records",
		"stream", stream, "group", group, "consumer", consumer, "requested", len(messageIDs), "claimed", len(claimed), "decoded", len(records))
	return records, nil
}

// AcknowledgeMessages acknowledges records for group.
func (r *AdminRepository) AcknowledgeMessages(ctx context.Context, stream, group string, messageIDs ...string) (int64, error) {
	if err := r.checkStream(stream); err != nil {
		return 0, err
	}
	if len(messageIDs) == 0 {
		return 0, fmt.Errorf("%w: at least one message id is required", domain.ErrInvalidArgument)
	}
	n, err := r.client.XAck(ctx, stream, group, messageIDs...).Result()
	if err != nil {
		return 0, streamError("xack", stream, group, err)
	}
	r.logger.Info("acknowledged buffered records", "stream", stream, "group", group, "count", n)
	return n, nil
}

// TrimStream caps stream at maxLen entries, dropping the oldest.
func (r *AdminRepository) TrimStream(ctx context.Context, stream string, maxLen int64) (int64, error) {
	if err := r.checkStream(stream); err != nil {
		return 0, err
	}
	n, err := r.client.XTrimMaxLen(ctx, stream, maxLen).Result()
	if err != nil {
		return 0, streamError("xtrim", stream, "", err)
	}
	r.logger.Warn("trimmed stream", "stream", stream, "maxlen", maxLen, "trimmed", n)
	return n, nil
}

// RequeueDeadLetters moves up to count of the oldest dead-lettered records
// back onto the record stream. Each move is an atomic XADD plus XDEL.
// Entries that do not decode to a record stay in the dead-letter stream.
func (r *AdminRepository) RequeueDeadLetters(ctx context.Context, count int64) (int64, error) {
	messages, err := r.client.XRangeN(ctx, r.dlqStream, "-", "+", count).Result()
	if err != nil {
		return 0, streamError("xrange", r.dlqStream, "", err)
	}

	var moved int64
	for _, b := range decodeMessages(r.logger, messages) {
		payload, err := domain.MarshalRecord(b.Record)
		if err != nil {
			r.logger.Warn("cannot re-encode dead-lettered record", "message_id", b.StreamMessageID, "error", err)
			continue
		}
		_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.XAdd(ctx, &redis.XAddArgs{
				Stream: RecordStream,
				Values: map[string]interface{}{"payload": payload, "kind": string(b.Record.Kind())},
			})
			pipe.XDel(ctx, r.dlqStream, b.StreamMessageID)
			return nil
		})
		if err != nil {
			return moved, fmt.Errorf("requeue %s: %w", b.StreamMessageID, err)
		}
		moved++
	}

	r.logger.Info("requeued dead-lettered records", "requested", count, "scanned", len(messages), "requeued", moved)
	return moved, nil
}
