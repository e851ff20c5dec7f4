package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskReviewSweep = "reviews.sweep"

type ReviewSweepPayload struct {
	RequestedAt string `json:"requestedAt"`
}

func NewReviewSweepTask(payload ReviewSweepPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReviewSweep, data), nil
}

func ParseReviewSweepPayload(task *asynq.Task) (ReviewSweepPayload, error) {
	var payload ReviewSweepPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return ReviewSweepPayload{}, err
	}
	return payload, nil
}
