package octoprint

import (
	"context"
	"net/http"

	"github.com/koios/octodash/pkg/models"
)

// GetJob returns the current job and its progress
func (c *Client) GetJob(ctx context.Context) (*models.JobInfo, error) {
	var info models.JobInfo
	if err := c.doJSON(ctx, "get job", http.MethodGet, "/job", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *Client) jobCommand(ctx context.Context, op string, body map[string]string) error {
	return c.doJSON(ctx, op, http.MethodPost, "/job", body, nil)
}

// StartJob starts printing the selected file
func (c *Client) StartJob(ctx context.Context) error {
	return c.jobCommand(ctx, "start job", map[string]string{"command": "start"})
}

// PauseJob pauses the running job
func (c *Client) PauseJob(ctx context.Context) error {
	return c.jobCommand(ctx, "pause job", map[string]string{"command": "pause", "action": "pause"})
}

// ResumeJob resumes a paused job
func (c *Client) ResumeJob(ctx context.Context) error {
	return c.jobCommand(ctx, "resume job", map[string]string{"command": "pause", "action": "resume"})
}

// CancelJob cancels the running job
func (c *Client) CancelJob(ctx context.Context) error {
	return c.jobCommand(ctx, "cancel job", map[string]string{"command": "cancel"})
}
