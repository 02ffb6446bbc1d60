package redis

import (
	// Go Internal Packages
	"context"
	"encoding/json"
	"fmt"
	"time"

	// Local Packages
	models "sslpay/models"

	// External Packages
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Rejected notifications are kept for a week; the gateway re-sends its
// POST on its own schedule, so stale entries only matter for forensics.
const rejectedTTL = 7 * 24 * time.Hour

// DeadLetterQueue keeps IPN payloads that failed parsing, hash
// verification, or transaction lookup, so operators can inspect forged or
// misrouted callbacks. Storage failures are logged, never propagated: the
// DLQ is best-effort and must not change the rejection outcome.
type DeadLetterQueue struct {
	client *redis.Client
	logger *zap.Logger
}

func NewDeadLetterQueue(client *redis.Client, logger *zap.Logger) *DeadLetterQueue {
	return &DeadLetterQueue{client: client, logger: logger}
}

// Send stores a rejected notification under "ipn:rejected:{tran_id}:{ts}".
func (r *DeadLetterQueue) Send(ctx context.Context, rejected models.RejectedNotification) {
	jsonData, err := json.Marshal(rejected)
	if err != nil {
		r.logger.Error("failed to marshal rejected notification", zap.Error(err))
		return
	}

	tranID := rejected.TranID
	if tranID == "" {
		tranID = "unknown"
	}
	key := fmt.Sprintf("ipn:rejected:%s:%d", tranID, time.Now().UnixNano())

	if err = r.client.Set(ctx, key, jsonData, rejectedTTL).Err(); err != nil {
		r.logger.Error("failed to store rejected notification", zap.String("key", key), zap.Error(err))
		return
	}

	r.logger.Info("rejected notification stored",
		zap.String("tran_id", tranID),
		zap.String("reason", rejected.Reason))
}
