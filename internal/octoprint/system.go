package octoprint

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/koios/octodash/pkg/models"
)

// Core system actions understood by OctoPrint
const (
	SystemShutdown = "shutdown"
	SystemReboot   = "reboot"
	SystemRestart  = "restart"
)

// VersionInfo is the response of GET /api/version
type VersionInfo struct {
	API    string `json:"api"`
	Server string `json:"server"`
	Text   string `json:"text"`
}

// GetVersion returns the upstream API and server version
func (c *Client) GetVersion(ctx context.Context) (*VersionInfo, error) {
	var v VersionInfo
	if err := c.doJSON(ctx, "get version", http.MethodGet, "/version", nil, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// TestConnection reports whether the upstream service answers the version endpoint
func (c *Client) TestConnection(ctx context.Context) bool {
	_, err := c.GetVersion(ctx)
	return err == nil
}

// SystemCommand runs one of the core system actions
func (c *Client) SystemCommand(ctx context.Context, action string) error {
	return c.doJSON(ctx, action, http.MethodPost, "/system/commands/core/"+escapePath(action), nil, nil)
}

// Shutdown shuts down the host running OctoPrint
func (c *Client) Shutdown(ctx context.Context) error {
	return c.SystemCommand(ctx, SystemShutdown)
}

// Reboot reboots the host running OctoPrint
func (c *Client) Reboot(ctx context.Context) error {
	return c.SystemCommand(ctx, SystemReboot)
}

// RestartOctoPrint restarts the OctoPrint service
func (c *Client) RestartOctoPrint(ctx context.Context) error {
	return c.SystemCommand(ctx, SystemRestart)
}

// GetSettings returns the raw upstream settings document
func (c *Client) GetSettings(ctx context.Context) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := c.doJSON(ctx, "get settings", http.MethodGet, "/settings", nil, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// GetWebcamURLs extracts the webcam stream and snapshot URLs from the upstream settings
func (c *Client) GetWebcamURLs(ctx context.Context) (*models.WebcamURLs, error) {
	raw, err := c.GetSettings(ctx)
	if err != nil {
		return nil, err
	}

	var settings struct {
		Webcam *models.WebcamURLs `json:"webcam"`
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &settings); err != nil {
			return nil, &Error{Kind: KindDecode, Op: "get webcam url", Err: fmt.Errorf("failed to decode webcam settings: %w", err)}
		}
	}
	if settings.Webcam == nil {
		return &models.WebcamURLs{}, nil
	}
	return settings.Webcam, nil
}

// GetTimelapses returns the timelapse listing unchanged
func (c *Client) GetTimelapses(ctx context.Context) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := c.doJSON(ctx, "get timelapses", http.MethodGet, "/timelapse", nil, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// DeleteTimelapse deletes a rendered timelapse
func (c *Client) DeleteTimelapse(ctx context.Context, filename string) error {
	return c.doJSON(ctx, "delete timelapse", http.MethodDelete, "/timelapse/"+escapePath(filename), nil, nil)
}

// GetTimelapseConfig returns the timelapse configuration unchanged
func (c *Client) GetTimelapseConfig(ctx context.Context) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := c.doJSON(ctx, "get timelapse config", http.MethodGet, "/timelapse/config", nil, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// SetTimelapseConfig forwards config verbatim and returns the upstream response
func (c *Client) SetTimelapseConfig(ctx context.Context, config json.RawMessage) (json.RawMessage, error) {
	var raw json.RawMessage
	if len(config) == 0 {
		config = json.RawMessage("{}")
	}
	if err := c.doJSON(ctx, "set timelapse config", http.MethodPost, "/timelapse/config", config, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}
