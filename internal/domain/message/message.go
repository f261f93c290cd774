// Package message renders the chat summary posted for each backblast.
package message

import (
	"fmt"
	"strings"

	"github.com/f3peakcity/f3-bot/internal/domain/model"
)

// BlockLimit keeps each chat block under the 3000 character block cap.
const BlockLimit = 2900

const continued = "..."

// Count returns the headcount announced for s: distinct Slack identities
// (organizer included), visitors, and comma-separated names of people not in
// Slack.
func Count(s model.Submission) int {
	n := len(mentions(s)) + max(s.VisitingCount, 0)
	if strings.TrimSpace(s.OrganizerID) != "" {
		n++
	}
	if u := strings.TrimSpace(s.UnregisteredParticipants); u != "" {
		n += len(strings.Split(u, ","))
	}
	return n
}

// mentions lists distinct participant and new participant ids, organizer
// excluded, in the order they were entered.
func mentions(s model.Submission) []string {
	seen := map[string]struct{}{}
	if q := strings.TrimSpace(s.OrganizerID); q != "" {
		seen[q] = struct{}{}
	}
	var out []string
	for _, ids := range [][]string{s.ParticipantIDs, s.NewParticipantIDs} {
		for _, id := range ids {
			id = strings.TrimSpace(id)
			if id == "" {
				continue
			}
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}

func mention(id string) string { return "<@" + id + ">" }

// Build renders the summary text for s.
func Build(s model.Submission) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%d posted", Count(s))
	if s.VenueChannelID != "" {
		fmt.Fprintf(&b, " at <#%s>", s.VenueChannelID)
	}
	b.WriteString(".")

	if s.Summary != "" {
		b.WriteString("\n" + s.Summary)
	}

	pax := mentions(s)
	parts := make([]string, len(pax))
	for i, id := range pax {
		parts[i] = mention(id)
	}
	b.WriteString("\n" + strings.Join(parts, ", "))
	if s.OrganizerID != "" {
		fmt.Fprintf(&b, " (%s Q)", mention(s.OrganizerID))
	}

	var fngs []string
	for _, id := range s.NewParticipantIDs {
		if id = strings.TrimSpace(id); id != "" {
			fngs = append(fngs, mention(id))
		}
	}
	if len(fngs) > 0 {
		b.WriteString("\nFNGs named today: " + strings.Join(fngs, ", "))
	}
	if u := strings.TrimSpace(s.UnregisteredParticipants); u != "" {
		b.WriteString("\nPax not yet in slack: " + u)
	}
	if s.VisitingCount > 0 {
		fmt.Fprintf(&b, "\nJoined by %d from outside our region.", s.VisitingCount)
	}
	return b.String()
}

// Split cuts text into chunks of at most limit characters of text. Every
// block but the last ends with "..." and every block but the first starts
// with it, so a block may run up to limit+6 characters.
func Split(text string, limit int) []string {
	if limit <= 0 {
		limit = BlockLimit
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return []string{text}
	}

	var blocks []string
	for start := 0; start < len(runes); start += limit {
		end := min(start+limit, len(runes))
		block := string(runes[start:end])
		if start > 0 {
			block = continued + block
		}
		if end < len(runes) {
			block += continued
		}
		blocks = append(blocks, block)
	}
	return blocks
}
