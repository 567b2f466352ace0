package octoprint

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"

	"github.com/koios/octodash/pkg/models"
)

// GetPrinterStatus returns the printer state and temperatures
func (c *Client) GetPrinterStatus(ctx context.Context) (*models.PrinterStatus, error) {
	var status models.PrinterStatus
	if err := c.doJSON(ctx, "get printer status", http.MethodGet, "/printer", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// ToolName returns the heater key for a tool index, tool0 when tool is nil
func ToolName(tool interface{}) string {
	if tool == nil {
		return "tool0"
	}
	return fmt.Sprintf("tool%v", tool)
}

// SetToolTemperature sets the target temperature of ToolName(tool).
// temp is forwarded as given.
func (c *Client) SetToolTemperature(ctx context.Context, temp, tool interface{}) error {
	body := map[string]interface{}{
		"command": "target",
		"targets": map[string]interface{}{
			ToolName(tool): temp,
		},
	}
	return c.doJSON(ctx, "set tool temperature", http.MethodPost, "/printer/tool", body, nil)
}

// SetBedTemperature sets the target temperature of the bed
func (c *Client) SetBedTemperature(ctx context.Context, temp interface{}) error {
	body := map[string]interface{}{
		"command": "target",
		"target":  temp,
	}
	return c.doJSON(ctx, "set bed temperature", http.MethodPost, "/printer/bed", body, nil)
}

// Jog moves the print head. Every entry of axes (x, y, z distances and
// OctoPrint options such as absolute or speed) is copied into the body.
func (c *Client) Jog(ctx context.Context, axes map[string]interface{}) error {
	body := make(map[string]interface{}, len(axes)+1)
	for k, v := range axes {
		body[k] = v
	}
	body["command"] = "jog"
	return c.doJSON(ctx, "jog", http.MethodPost, "/printer/printhead", body, nil)
}

// Home homes the given axes, normally a list such as ["x", "y"]
func (c *Client) Home(ctx context.Context, axes interface{}) error {
	if axes == nil {
		axes = []string{}
	}
	body := map[string]interface{}{
		"command": "home",
		"axes":    axes,
	}
	return c.doJSON(ctx, "home", http.MethodPost, "/printer/printhead", body, nil)
}

// Extrude extrudes (or retracts, when negative) amount mm of filament on the active tool
func (c *Client) Extrude(ctx context.Context, amount interface{}) error {
	body := map[string]interface{}{
		"command": "extrude",
		"amount":  amount,
	}
	return c.doJSON(ctx, "extrude", http.MethodPost, "/printer/tool", body, nil)
}

// SendGcode sends a raw G-code command to the printer
func (c *Client) SendGcode(ctx context.Context, command interface{}) error {
	body := map[string]interface{}{"command": command}
	return c.doJSON(ctx, "send gcode", http.MethodPost, "/printer/command", body, nil)
}

// FanSpeedGcode returns the M106 command for a fan speed in the range 0-255
func FanSpeedGcode(speed float64) string {
	if speed == 0 {
		return "M106 S0"
	}
	return fmt.Sprintf("M106 S%d", int64(math.Round(speed)))
}

// FeedrateGcode returns the M220 command for a feed rate percentage
func FeedrateGcode(percentage float64) string {
	return "M220 S" + strconv.FormatFloat(percentage, 'f', -1, 64)
}

// FlowrateGcode returns the M221 command for a flow rate percentage
func FlowrateGcode(percentage float64) string {
	return "M221 S" + strconv.FormatFloat(percentage, 'f', -1, 64)
}

// SetFanSpeed sets the part cooling fan speed (0-255)
func (c *Client) SetFanSpeed(ctx context.Context, speed float64) error {
	return c.SendGcode(ctx, FanSpeedGcode(speed))
}

// SetFeedrate sets the print speed factor in percent
func (c *Client) SetFeedrate(ctx context.Context, percentage float64) error {
	return c.SendGcode(ctx, FeedrateGcode(percentage))
}

// SetFlowrate sets the extrusion flow factor in percent
func (c *Client) SetFlowrate(ctx context.Context, percentage float64) error {
	return c.SendGcode(ctx, FlowrateGcode(percentage))
}
