package scheduler

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const TaskFollowupScan = "followups.scan"

// followupScanUniqueTTL keeps a slow run from stacking another tick
// behind it in the queue.
const followupScanUniqueTTL = 10 * time.Minute

type FollowupScanPayload struct {
	Trigger string `json:"trigger"`
}

func NewFollowupScanTask(payload FollowupScanPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskFollowupScan, data), nil
}

func ParseFollowupScanPayload(task *asynq.Task) (FollowupScanPayload, error) {
	var payload FollowupScanPayload
	if len(task.Payload()) == 0 {
		return payload, nil
	}
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return FollowupScanPayload{}, err
	}
	return payload, nil
}

// followupScanOptions are applied to every enqueued scan.
func followupScanOptions(queue string) []asynq.Option {
	return []asynq.Option{
		asynq.Queue(queue),
		asynq.Unique(followupScanUniqueTTL),
		asynq.MaxRetry(0),
		asynq.Timeout(followupScanUniqueTTL),
	}
}
