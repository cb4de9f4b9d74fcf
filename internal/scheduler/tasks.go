package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskCampaignBulkSend = "campaign.bulk_send"

type CampaignBulkSendPayload struct {
	JobID string `json:"jobId"`
}

func NewCampaignBulkSendTask(payload CampaignBulkSendPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCampaignBulkSend, data), nil
}

func ParseCampaignBulkSendPayload(task *asynq.Task) (CampaignBulkSendPayload, error) {
	var payload CampaignBulkSendPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return CampaignBulkSendPayload{}, err
	}
	return payload, nil
}
