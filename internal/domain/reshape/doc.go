// Package reshape holds the record-level stages of the reporting pipeline:
// venue resolution, date correction, name resolution, deduplication and
// category filtering.
//
// Every stage takes records in source insertion order and returns new
// records; inputs are never modified. Where two records tie on recorded_at,
// the one later in the slice wins.
package reshape
