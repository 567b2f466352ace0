package models

// UpdateType is the message type of the periodic status push
const UpdateType = "update"

// UpdateData is the payload of an update message
type UpdateData struct {
	Status *PrinterStatus `json:"status"`
	Job    *JobInfo       `json:"job"`
}

// Update is the envelope pushed to WebSocket subscribers
type Update struct {
	Type string     `json:"type"`
	Data UpdateData `json:"data"`
}

// NewUpdate builds an update envelope from a status and job snapshot
func NewUpdate(status *PrinterStatus, job *JobInfo) *Update {
	return &Update{
		Type: UpdateType,
		Data: UpdateData{
			Status: status,
			Job:    job,
		},
	}
}
