// Package seed generates synthetic backblasts and posts them to a running
// ingest API for local testing.
package seed

import "time"

// Config holds configuration for a seed run.
type Config struct {
	BaseURL     string        // Base URL of the service
	Count       int           // Number of backblasts to generate
	Days        int           // Spread event dates over this many past days
	People      int           // Size of the generated roster
	Venues      []string      // Venue labels to pick from
	RepeatRatio float64       // Share of submissions resent with an existing id
	Seed        uint64        // Generator seed; equal seeds give equal payloads
	Workers     int           // Number of concurrent submitters
	Timeout     time.Duration // HTTP request timeout
	RunPipeline bool          // Trigger one pipeline run after submitting
	OutputFile  string        // Where generated payloads are saved; empty skips
}

// Backblast is the payload accepted by POST /backblasts.
type Backblast struct {
	ID          string   `json:"id"`
	Date        string   `json:"date"`
	AO          string   `json:"ao"`
	Q           string   `json:"q"`
	QID         string   `json:"q_id"`
	Pax         []string `json:"pax"`
	PaxIDs      []string `json:"pax_ids"`
	FNGs        []string `json:"fngs"`
	FNGIDs      []string `json:"fng_ids"`
	PaxNoSlack  string   `json:"pax_no_slack,omitempty"`
	NVisiting   string   `json:"n_visiting_pax"`
	Summary     string   `json:"summary,omitempty"`
	Submitter   string   `json:"submitter"`
	SubmitterID string   `json:"submitter_id"`
	StoreDate   string   `json:"store_date"`
}

// AckResponse represents the response from a submission.
type AckResponse struct {
	Status    string `json:"status"`
	ID        string `json:"id"`
	Duplicate bool   `json:"duplicate"`
}

// Stats holds seed run statistics.
type Stats struct {
	Generated  int
	Submitted  int
	Accepted   int
	Duplicates int
	Failed     int
	StartTime  time.Time
	EndTime    time.Time
	Duration   time.Duration
}
