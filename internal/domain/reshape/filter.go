package reshape

import (
	"github.com/f3peakcity/f3-bot/internal/domain/model"
)

// FilterCategory keeps records whose resolved venue category equals
// category. An empty category keeps everything. It returns the kept records
// and how many were excluded.
func FilterCategory(records []model.Submission, category string) ([]model.Submission, int) {
	if category == "" {
		out := make([]model.Submission, len(records))
		for i, r := range records {
			out[i] = r.Clone()
		}
		return out, 0
	}

	out := make([]model.Submission, 0, len(records))
	for _, r := range records {
		if r.VenueCategory == category {
			out = append(out, r.Clone())
		}
	}
	return out, len(records) - len(out)
}
