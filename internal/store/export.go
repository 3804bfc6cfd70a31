// Package store persists simulation results for later inspection.
package store

import (
	"encoding/json"
	"os"

	"github.com/dkoval/circsim/internal/result"
)

// ExportData is the on-disk shape of one transient run.
type ExportData struct {
	Title        string               `json:"title"`
	Dt           float64              `json:"dt"`
	StopTime     float64              `json:"stop_time"`
	Steps        int                  `json:"steps"`
	Time         []float64            `json:"time"`
	Signals      map[string][]float64 `json:"signals"`
	Stats        map[string]any       `json:"stats,omitempty"`
	ErrorMessage string               `json:"error_message,omitempty"`
}

// ExportJSON writes a transient result to path as indented JSON.
func ExportJSON(path, title string, dt, stopTime float64, res *result.TransientResult) error {
	data := ExportData{
		Title:        title,
		Dt:           dt,
		StopTime:     stopTime,
		Steps:        len(res.Time),
		Time:         res.Time,
		Signals:      res.Signals,
		Stats:        res.Stats,
		ErrorMessage: res.ErrorMessage,
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}
