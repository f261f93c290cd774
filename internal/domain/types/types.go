// Package types contains shapes shared by the HTTP API, the service layer and
// the command line tools.
package types

import "time"

// Ack is the response to a backblast submission.
type Ack struct {
	Status    string `json:"status"`
	ID        string `json:"id"`
	Duplicate bool   `json:"duplicate"`
}

// Ack statuses.
const (
	AckAccepted  = "accepted"
	AckDuplicate = "duplicate"
)

// StageCounts reports what each pipeline stage did.
type StageCounts struct {
	Loaded          int `json:"loaded"`
	VenueMisses     int `json:"venue_misses"`
	BadWeekdays     int `json:"bad_weekdays"`
	DatesCorrected  int `json:"dates_corrected"`
	NamesResolved   int `json:"names_resolved"`
	Duplicates      int `json:"duplicates"`
	Excluded        int `json:"excluded"`
	Kept            int `json:"kept"`
	QualityWarnings int `json:"quality_warnings"`
}

// RunResult describes one finished pipeline run.
type RunResult struct {
	StartedAt   time.Time     `json:"started_at"`
	Duration    time.Duration `json:"duration_ns"`
	Stages      StageCounts   `json:"stages"`
	PersonTable string        `json:"person_table"`
	PersonRows  int           `json:"person_rows"`
	EventTable  string        `json:"event_table"`
	EventRows   int           `json:"event_rows"`
	DryRun      bool          `json:"dry_run"`
}
