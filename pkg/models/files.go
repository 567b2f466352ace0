package models

// File types reported by OctoPrint
const (
	FileTypeMachinecode = "machinecode"
	FileTypeFolder      = "folder"
)

// FileRefs holds the resource and download links of a file
type FileRefs struct {
	Resource string `json:"resource,omitempty"`
	Download string `json:"download,omitempty"`
}

// GcodeFilament is the per-tool filament estimate of a G-code analysis
type GcodeFilament struct {
	Length *float64 `json:"length,omitempty"`
	Volume *float64 `json:"volume,omitempty"`
}

// GcodeAnalysis is the analysis metadata OctoPrint attaches to machinecode files
type GcodeAnalysis struct {
	EstimatedPrintTime *float64                  `json:"estimatedPrintTime,omitempty"`
	Filament           map[string]*GcodeFilament `json:"filament,omitempty"`
}

// FileEntry is a single entry of a file listing
type FileEntry struct {
	Name          string         `json:"name"`
	Path          string         `json:"path"`
	Display       string         `json:"display,omitempty"`
	Type          string         `json:"type"`
	TypePath      []string       `json:"typePath"`
	Hash          string         `json:"hash,omitempty"`
	Size          *int64         `json:"size,omitempty"`
	Date          *int64         `json:"date,omitempty"`
	Origin        string         `json:"origin,omitempty"`
	Refs          *FileRefs      `json:"refs,omitempty"`
	GcodeAnalysis *GcodeAnalysis `json:"gcodeAnalysis,omitempty"`
	Children      []FileEntry    `json:"children,omitempty"`
}

// IsFolder reports whether the entry is a folder
func (f FileEntry) IsFolder() bool {
	return f.Type == FileTypeFolder
}

// FilesResponse is the listing returned for a storage location
type FilesResponse struct {
	Files []FileEntry `json:"files"`
	Free  *int64      `json:"free,omitempty"`
	Total *int64      `json:"total,omitempty"`
}
