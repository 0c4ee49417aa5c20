package ingestion

import (
	"context"
	"encoding/json"
	"strings"
)

const (
	statusDelivered = "delivered"
	statusRead      = "read"
)

// applyStatuses marks stored messages read or unread from delivery receipts.
// Statuses other than delivered and read are ignored. Returns how many
// statuses were applied.
func (s *Service) applyStatuses(ctx context.Context, statuses []json.RawMessage) int {
	log := s.log.WithContext(ctx)
	applied := 0

	for _, raw := range statuses {
		var st DeliveryStatus
		if err := json.Unmarshal(raw, &st); err != nil {
			log.Warn("skipping malformed status", "error", err)
			continue
		}

		status := strings.ToLower(strings.TrimSpace(st.Status))
		if status != statusDelivered && status != statusRead {
			continue
		}
		recipient := strings.TrimSpace(st.RecipientID)
		if recipient == "" {
			log.Warn("skipping status without recipient", "status_id", st.ID)
			continue
		}

		rows, err := s.store.UpdateMessageReadStatus(ctx, recipient, status == statusRead)
		if err != nil {
			log.Error("failed to update message read status", "phone", recipient, "status", status, "error", err)
			continue
		}
		log.Debug("message status applied", "phone", recipient, "status", status, "rows", rows)
		applied++
	}
	return applied
}
