// Package mcdf reads and writes the MCDF metadata container and loads
// appearance payloads from the container variants found in the wild.
package mcdf

// Record is the metadata carried by a native container. JSON keys are
// PascalCase to stay compatible with existing files.
type Record struct {
	Description       string     `json:"Description"`
	GlamourerData     string     `json:"GlamourerData"`
	CustomizePlusData string     `json:"CustomizePlusData"`
	ManipulationData  string     `json:"ManipulationData"`
	Files             []FileData `json:"Files"`
	FileSwaps         []FileSwap `json:"FileSwaps"`
}

// FileData describes one file referenced by a record.
type FileData struct {
	GamePaths []string `json:"GamePaths"`
	Length    int      `json:"Length"`
	Hash      string   `json:"Hash"`
}

// FileSwap redirects game paths to another file.
type FileSwap struct {
	GamePaths    []string `json:"GamePaths"`
	FileSwapPath string   `json:"FileSwapPath"`
}

// Payload is the set of named fields a loader extracts, whichever container
// variant they came from. Empty means absent.
type Payload struct {
	GlamourerBase64    string `json:"GlamourerBase64,omitempty"`
	CustomizePlusJSON  string `json:"CustomizePlusJson,omitempty"`
	HeelsJSON          string `json:"HeelsJson,omitempty"`
	HonorificJSON      string `json:"HonorificJson,omitempty"`
	PenumbraCollection string `json:"PenumbraCollection,omitempty"`
}

// Empty reports whether no field is set.
func (p Payload) Empty() bool {
	return p == Payload{}
}

// Payload extracts the fields a loader cares about from a record.
func (r Record) Payload() Payload {
	return Payload{
		GlamourerBase64:   r.GlamourerData,
		CustomizePlusJSON: r.CustomizePlusData,
	}
}

// NewRecord builds a native record from p. Native records only carry the
// Glamourer and Customize+ fields; the names of any other non-empty fields
// are returned as dropped.
func NewRecord(p Payload, description string) (rec Record, dropped []string) {
	rec = Record{
		Description:       description,
		GlamourerData:     p.GlamourerBase64,
		CustomizePlusData: p.CustomizePlusJSON,
	}
	if p.HeelsJSON != "" {
		dropped = append(dropped, "HeelsJson")
	}
	if p.HonorificJSON != "" {
		dropped = append(dropped, "HonorificJson")
	}
	if p.PenumbraCollection != "" {
		dropped = append(dropped, "PenumbraCollection")
	}
	return rec, dropped
}
