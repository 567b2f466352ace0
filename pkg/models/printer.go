package models

// PrinterStateFlags mirrors the boolean flags OctoPrint reports for the printer
type PrinterStateFlags struct {
	Operational   bool `json:"operational"`
	Printing      bool `json:"printing"`
	Paused        bool `json:"paused"`
	Ready         bool `json:"ready"`
	Error         bool `json:"error"`
	ClosedOrError bool `json:"closedOrError"`
}

// PrinterState is the textual state plus flags
type PrinterState struct {
	Text  string            `json:"text"`
	Flags PrinterStateFlags `json:"flags"`
}

// TemperatureData holds one heater's readings. Readings are null while a
// heater is disconnected.
type TemperatureData struct {
	Actual *float64 `json:"actual"`
	Target *float64 `json:"target"`
	Offset *float64 `json:"offset,omitempty"`
}

// PrinterStatus is the snapshot returned by GET /api/printer, reduced to state and temperature.
// Temperature is keyed by heater name (tool0, tool1, bed, chamber).
type PrinterStatus struct {
	State       PrinterState               `json:"state"`
	Temperature map[string]TemperatureData `json:"temperature"`
}

// JobFile describes the file loaded for the current job. All fields are null when idle.
type JobFile struct {
	Name    *string  `json:"name"`
	Path    *string  `json:"path"`
	Display *string  `json:"display"`
	Origin  *string  `json:"origin"`
	Size    *int64   `json:"size"`
	Date    *float64 `json:"date"`
}

// FilamentUsage is the estimated filament consumption for one tool
type FilamentUsage struct {
	Length *float64 `json:"length"`
	Volume *float64 `json:"volume"`
}

// Job is the job descriptor from GET /api/job
type Job struct {
	File               JobFile                   `json:"file"`
	EstimatedPrintTime *float64                  `json:"estimatedPrintTime"`
	LastPrintTime      *float64                  `json:"lastPrintTime"`
	Filament           map[string]*FilamentUsage `json:"filament"`
}

// JobProgress holds the progress metrics of the current job
type JobProgress struct {
	Completion    *float64 `json:"completion"`
	Filepos       *int64   `json:"filepos"`
	PrintTime     *float64 `json:"printTime"`
	PrintTimeLeft *float64 `json:"printTimeLeft"`
}

// JobInfo combines the job descriptor with its progress
type JobInfo struct {
	Job      Job         `json:"job"`
	Progress JobProgress `json:"progress"`
}

// WebcamURLs are the stream and snapshot endpoints configured in OctoPrint
type WebcamURLs struct {
	StreamURL   string `json:"streamUrl"`
	SnapshotURL string `json:"snapshotUrl"`
}
