package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/koios/octodash/internal/octoprint"
	"github.com/koios/octodash/internal/settings"
	"github.com/koios/octodash/pkg/models"
	"go.uber.org/zap"
)

// maxUploadMemory is the part of a multipart upload kept in memory before spilling to disk
const maxUploadMemory = 32 << 20

// RelayHandler forwards each local API call to exactly one OctoPrint call
type RelayHandler struct {
	settings *settings.Manager
	logger   *zap.Logger
}

// NewRelayHandler creates a new relay handler
func NewRelayHandler(manager *settings.Manager, logger *zap.Logger) *RelayHandler {
	return &RelayHandler{
		settings: manager,
		logger:   logger,
	}
}

// RegisterRoutes registers the relay routes
func (h *RelayHandler) RegisterRoutes(r *mux.Router) {
	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/settings", h.handleGetSettings).Methods(http.MethodGet)
	api.HandleFunc("/settings", h.handleSaveSettings).Methods(http.MethodPost)
	api.HandleFunc("/connection/test", h.handleConnectionTest).Methods(http.MethodGet)

	api.HandleFunc("/printer/status", h.handlePrinterStatus).Methods(http.MethodGet)
	api.HandleFunc("/printer/tool/target", h.handleToolTarget).Methods(http.MethodPost)
	api.HandleFunc("/printer/bed/target", h.handleBedTarget).Methods(http.MethodPost)
	api.HandleFunc("/printer/jog", h.handleJog).Methods(http.MethodPost)
	api.HandleFunc("/printer/home", h.handleHome).Methods(http.MethodPost)
	api.HandleFunc("/printer/extrude", h.handleExtrude).Methods(http.MethodPost)
	api.HandleFunc("/printer/command", h.handleCommand).Methods(http.MethodPost)
	api.HandleFunc("/printer/fan", h.handleFan).Methods(http.MethodPost)
	api.HandleFunc("/printer/feedrate", h.handleFeedrate).Methods(http.MethodPost)
	api.HandleFunc("/printer/flowrate", h.handleFlowrate).Methods(http.MethodPost)

	api.HandleFunc("/job", h.handleJob).Methods(http.MethodGet)
	api.HandleFunc("/job/start", h.action("start job", (*octoprint.Client).StartJob)).Methods(http.MethodPost)
	api.HandleFunc("/job/pause", h.action("pause job", (*octoprint.Client).PauseJob)).Methods(http.MethodPost)
	api.HandleFunc("/job/resume", h.action("resume job", (*octoprint.Client).ResumeJob)).Methods(http.MethodPost)
	api.HandleFunc("/job/cancel", h.action("cancel job", (*octoprint.Client).CancelJob)).Methods(http.MethodPost)

	api.HandleFunc("/files", h.handleListFiles).Methods(http.MethodGet)
	api.HandleFunc("/files/select", h.handleSelectFile).Methods(http.MethodPost)
	api.HandleFunc("/files/upload", h.handleUpload).Methods(http.MethodPost)
	api.HandleFunc("/files/{location}/{path:.+}", h.handleDownloadFile).Methods(http.MethodGet)
	api.HandleFunc("/files/{location}/{path:.+}", h.handleDeleteFile).Methods(http.MethodDelete)

	api.HandleFunc("/system/shutdown", h.action("shutdown", (*octoprint.Client).Shutdown)).Methods(http.MethodPost)
	api.HandleFunc("/system/reboot", h.action("reboot", (*octoprint.Client).Reboot)).Methods(http.MethodPost)
	api.HandleFunc("/system/restart", h.action("restart", (*octoprint.Client).RestartOctoPrint)).Methods(http.MethodPost)

	api.HandleFunc("/timelapse", h.handleListTimelapses).Methods(http.MethodGet)
	api.HandleFunc("/timelapse/config", h.handleGetTimelapseConfig).Methods(http.MethodGet)
	api.HandleFunc("/timelapse/config", h.handleSetTimelapseConfig).Methods(http.MethodPost)
	api.HandleFunc("/timelapse/{filename}", h.handleDeleteTimelapse).Methods(http.MethodDelete)

	api.HandleFunc("/webcam/url", h.handleWebcamURL).Methods(http.MethodGet)
}

// fail reports a relay failure. Every failure is a 500 carrying the error text.
func (h *RelayHandler) fail(w http.ResponseWriter, op string, err error) {
	h.logger.Error("Relay request failed",
		zap.String("op", op),
		zap.String("kind", octoprint.KindOf(err).String()),
		zap.Int("upstream_status", octoprint.StatusCodeOf(err)),
		zap.Error(err))
	writeError(w, http.StatusInternalServerError, err.Error())
}

// command runs fn against the current client and answers {success: true}
func (h *RelayHandler) command(w http.ResponseWriter, r *http.Request, op string, fn func(ctx context.Context, c *octoprint.Client) error) {
	c, err := h.settings.Client()
	if err != nil {
		h.fail(w, op, err)
		return
	}
	if err := fn(r.Context(), c); err != nil {
		h.fail(w, op, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, SuccessResponse{Success: true}); err != nil {
		h.logger.Error("Failed to encode response", zap.String("op", op), zap.Error(err))
	}
}

// query runs fn against the current client and answers with its result
func (h *RelayHandler) query(w http.ResponseWriter, r *http.Request, op string, fn func(ctx context.Context, c *octoprint.Client) (interface{}, error)) {
	c, err := h.settings.Client()
	if err != nil {
		h.fail(w, op, err)
		return
	}
	result, err := fn(r.Context(), c)
	if err != nil {
		h.fail(w, op, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, result); err != nil {
		h.logger.Error("Failed to encode response", zap.String("op", op), zap.Error(err))
	}
}

// action adapts a body-less client method to a handler
func (h *RelayHandler) action(op string, fn func(c *octoprint.Client, ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.command(w, r, op, func(ctx context.Context, c *octoprint.Client) error {
			return fn(c, ctx)
		})
	}
}

// bind decodes the request body into v, answering 400 on malformed JSON
func (h *RelayHandler) bind(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := decodeBody(r, v); err != nil {
		h.logger.Debug("Rejected request body", zap.String("path", r.URL.Path), zap.Error(err))
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return false
	}
	return true
}

// handleGetSettings handles GET /api/settings
func (h *RelayHandler) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	s, err := h.settings.Settings(r.Context())
	if err != nil {
		h.logger.Error("Failed to load settings", zap.Error(err))
		writeJSON(w, http.StatusOK, struct{}{})
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// SaveSettingsResponse is returned after settings are saved
type SaveSettingsResponse struct {
	Success   bool `json:"success"`
	Connected bool `json:"connected"`
}

// handleSaveSettings handles POST /api/settings
func (h *RelayHandler) handleSaveSettings(w http.ResponseWriter, r *http.Request) {
	var s models.ConnectionSettings
	if !h.bind(w, r, &s) {
		return
	}

	c, err := h.settings.Save(r.Context(), s)
	if err != nil {
		h.logger.Warn("Failed to save settings", zap.Error(err))
		writeError(w, http.StatusBadRequest, "Failed to save settings")
		return
	}

	connected := c.TestConnection(r.Context())
	h.logger.Info("Connection settings saved",
		zap.String("server_url", s.ServerURL),
		zap.Bool("connected", connected))

	writeJSON(w, http.StatusOK, SaveSettingsResponse{Success: true, Connected: connected})
}

// handleConnectionTest handles GET /api/connection/test. It never fails.
func (h *RelayHandler) handleConnectionTest(w http.ResponseWriter, r *http.Request) {
	connected := false
	if c, err := h.settings.Client(); err == nil {
		connected = c.TestConnection(r.Context())
	}
	writeJSON(w, http.StatusOK, map[string]bool{"connected": connected})
}

// handlePrinterStatus handles GET /api/printer/status
func (h *RelayHandler) handlePrinterStatus(w http.ResponseWriter, r *http.Request) {
	h.query(w, r, "get printer status", func(ctx context.Context, c *octoprint.Client) (interface{}, error) {
		return c.GetPrinterStatus(ctx)
	})
}

// handleJob handles GET /api/job
func (h *RelayHandler) handleJob(w http.ResponseWriter, r *http.Request) {
	h.query(w, r, "get job", func(ctx context.Context, c *octoprint.Client) (interface{}, error) {
		return c.GetJob(ctx)
	})
}

// handleListFiles handles GET /api/files?location=local
func (h *RelayHandler) handleListFiles(w http.ResponseWriter, r *http.Request) {
	location := r.URL.Query().Get("location")
	h.query(w, r, "get files", func(ctx context.Context, c *octoprint.Client) (interface{}, error) {
		return c.GetFiles(ctx, location)
	})
}

type selectFileRequest struct {
	Location interface{} `json:"location"`
	Path     interface{} `json:"path"`
	Print    interface{} `json:"print"`
}

// handleSelectFile handles POST /api/files/select
func (h *RelayHandler) handleSelectFile(w http.ResponseWriter, r *http.Request) {
	var req selectFileRequest
	if !h.bind(w, r, &req) {
		return
	}
	h.command(w, r, "select file", func(ctx context.Context, c *octoprint.Client) error {
		return c.SelectFile(ctx, stringArg(req.Location), stringArg(req.Path), req.Print)
	})
}

// handleDeleteFile handles DELETE /api/files/{location}/{path}
func (h *RelayHandler) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	h.command(w, r, "delete file", func(ctx context.Context, c *octoprint.Client) error {
		return c.DeleteFile(ctx, vars["location"], vars["path"])
	})
}

// handleDownloadFile handles GET /api/files/{location}/{path} and returns the raw G-code
func (h *RelayHandler) handleDownloadFile(w http.ResponseWriter, r *http.Request) {
	const op = "download file"
	vars := mux.Vars(r)

	c, err := h.settings.Client()
	if err != nil {
		h.fail(w, op, err)
		return
	}
	content, err := c.DownloadFile(r.Context(), vars["location"], vars["path"])
	if err != nil {
		h.fail(w, op, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, content)
}

// handleUpload handles POST /api/files/upload (multipart field "file", optional "location")
func (h *RelayHandler) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		writeError(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer file.Close()

	location := r.FormValue("location")
	h.command(w, r, "upload file", func(ctx context.Context, c *octoprint.Client) error {
		_, err := c.UploadFile(ctx, location, header.Filename, file)
		if err == nil {
			h.logger.Info("Uploaded file",
				zap.String("filename", header.Filename),
				zap.Int64("size", header.Size),
				zap.String("location", location))
		}
		return err
	})
}

type toolTargetRequest struct {
	Temp interface{} `json:"temp"`
	Tool interface{} `json:"tool"`
}

// handleToolTarget handles POST /api/printer/tool/target
func (h *RelayHandler) handleToolTarget(w http.ResponseWriter, r *http.Request) {
	var req toolTargetRequest
	if !h.bind(w, r, &req) {
		return
	}
	h.command(w, r, "set tool temperature", func(ctx context.Context, c *octoprint.Client) error {
		return c.SetToolTemperature(ctx, req.Temp, req.Tool)
	})
}

type bedTargetRequest struct {
	Temp interface{} `json:"temp"`
}

// handleBedTarget handles POST /api/printer/bed/target
func (h *RelayHandler) handleBedTarget(w http.ResponseWriter, r *http.Request) {
	var req bedTargetRequest
	if !h.bind(w, r, &req) {
		return
	}
	h.command(w, r, "set bed temperature", func(ctx context.Context, c *octoprint.Client) error {
		return c.SetBedTemperature(ctx, req.Temp)
	})
}

type jogRequest struct {
	Axes map[string]interface{} `json:"axes"`
}

// handleJog handles POST /api/printer/jog
func (h *RelayHandler) handleJog(w http.ResponseWriter, r *http.Request) {
	var req jogRequest
	if !h.bind(w, r, &req) {
		return
	}
	h.command(w, r, "jog", func(ctx context.Context, c *octoprint.Client) error {
		return c.Jog(ctx, req.Axes)
	})
}

type homeRequest struct {
	Axes interface{} `json:"axes"`
}

// handleHome handles POST /api/printer/home
func (h *RelayHandler) handleHome(w http.ResponseWriter, r *http.Request) {
	var req homeRequest
	if !h.bind(w, r, &req) {
		return
	}
	h.command(w, r, "home", func(ctx context.Context, c *octoprint.Client) error {
		return c.Home(ctx, req.Axes)
	})
}

type extrudeRequest struct {
	Amount interface{} `json:"amount"`
}

// handleExtrude handles POST /api/printer/extrude
func (h *RelayHandler) handleExtrude(w http.ResponseWriter, r *http.Request) {
	var req extrudeRequest
	if !h.bind(w, r, &req) {
		return
	}
	h.command(w, r, "extrude", func(ctx context.Context, c *octoprint.Client) error {
		return c.Extrude(ctx, req.Amount)
	})
}

type commandRequest struct {
	Command interface{} `json:"command"`
}

// handleCommand handles POST /api/printer/command
func (h *RelayHandler) handleCommand(w http.ResponseWriter, r *http.Request) {
	var req commandRequest
	if !h.bind(w, r, &req) {
		return
	}
	h.command(w, r, "send gcode", func(ctx context.Context, c *octoprint.Client) error {
		return c.SendGcode(ctx, req.Command)
	})
}

type fanRequest struct {
	Speed interface{} `json:"speed"`
}

// bindNumber reads a field that ends up inside a G-code string. It answers
// 400 when the value is not a number or numeric string.
func (h *RelayHandler) bindNumber(w http.ResponseWriter, name string, v interface{}) (float64, bool) {
	n, ok := numberArg(v)
	if !ok {
		writeError(w, http.StatusBadRequest, name+" must be a number")
		return 0, false
	}
	return n, true
}

// handleFan handles POST /api/printer/fan
func (h *RelayHandler) handleFan(w http.ResponseWriter, r *http.Request) {
	var req fanRequest
	if !h.bind(w, r, &req) {
		return
	}
	speed, ok := h.bindNumber(w, "speed", req.Speed)
	if !ok {
		return
	}
	h.command(w, r, "set fan speed", func(ctx context.Context, c *octoprint.Client) error {
		return c.SetFanSpeed(ctx, speed)
	})
}

type percentageRequest struct {
	Percentage interface{} `json:"percentage"`
}

// handleFeedrate handles POST /api/printer/feedrate
func (h *RelayHandler) handleFeedrate(w http.ResponseWriter, r *http.Request) {
	var req percentageRequest
	if !h.bind(w, r, &req) {
		return
	}
	percentage, ok := h.bindNumber(w, "percentage", req.Percentage)
	if !ok {
		return
	}
	h.command(w, r, "set feedrate", func(ctx context.Context, c *octoprint.Client) error {
		return c.SetFeedrate(ctx, percentage)
	})
}

// handleFlowrate handles POST /api/printer/flowrate
func (h *RelayHandler) handleFlowrate(w http.ResponseWriter, r *http.Request) {
	var req percentageRequest
	if !h.bind(w, r, &req) {
		return
	}
	percentage, ok := h.bindNumber(w, "percentage", req.Percentage)
	if !ok {
		return
	}
	h.command(w, r, "set flowrate", func(ctx context.Context, c *octoprint.Client) error {
		return c.SetFlowrate(ctx, percentage)
	})
}

// handleListTimelapses handles GET /api/timelapse
func (h *RelayHandler) handleListTimelapses(w http.ResponseWriter, r *http.Request) {
	h.query(w, r, "get timelapses", func(ctx context.Context, c *octoprint.Client) (interface{}, error) {
		return c.GetTimelapses(ctx)
	})
}

// handleDeleteTimelapse handles DELETE /api/timelapse/{filename}
func (h *RelayHandler) handleDeleteTimelapse(w http.ResponseWriter, r *http.Request) {
	filename := mux.Vars(r)["filename"]
	h.command(w, r, "delete timelapse", func(ctx context.Context, c *octoprint.Client) error {
		return c.DeleteTimelapse(ctx, filename)
	})
}

// handleGetTimelapseConfig handles GET /api/timelapse/config
func (h *RelayHandler) handleGetTimelapseConfig(w http.ResponseWriter, r *http.Request) {
	h.query(w, r, "get timelapse config", func(ctx context.Context, c *octoprint.Client) (interface{}, error) {
		return c.GetTimelapseConfig(ctx)
	})
}

// handleSetTimelapseConfig handles POST /api/timelapse/config. The body is forwarded verbatim.
func (h *RelayHandler) handleSetTimelapseConfig(w http.ResponseWriter, r *http.Request) {
	var config json.RawMessage
	if !h.bind(w, r, &config) {
		return
	}
	h.query(w, r, "set timelapse config", func(ctx context.Context, c *octoprint.Client) (interface{}, error) {
		return c.SetTimelapseConfig(ctx, config)
	})
}

// handleWebcamURL handles GET /api/webcam/url
func (h *RelayHandler) handleWebcamURL(w http.ResponseWriter, r *http.Request) {
	h.query(w, r, "get webcam url", func(ctx context.Context, c *octoprint.Client) (interface{}, error) {
		return c.GetWebcamURLs(ctx)
	})
}
