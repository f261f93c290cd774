package seed

import (
	"fmt"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/google/uuid"
)

const (
	minPax        = 3
	maxPax        = 15
	maxFNGs       = 2
	visitingEvery = 4
)

var nicknames = []string{ //nolint:gochecknoglobals // fixed word list
	"Anvil", "Bolt", "Chalk", "Dozer", "Ember", "Flint", "Gristle", "Hatchet",
	"Iceberg", "Jigsaw", "Kettle", "Lugnut", "Mongoose", "Nacho", "Outlaw",
	"Pretzel", "Quill", "Rebar", "Sprocket", "Tater", "Unit", "Viking",
	"Wrench", "Yeti", "Zamboni",
}

type person struct {
	id   string
	name string
}

// Generator builds backblast payloads from a fixed roster.
type Generator struct {
	rnd    *rand.Rand
	cfg    Config
	roster []person
	sent   []Backblast
	now    time.Time
	fngSeq int
}

// NewGenerator returns a generator seeded from cfg.Seed. now anchors the
// generated event dates.
func NewGenerator(cfg Config, now time.Time) *Generator {
	g := &Generator{
		rnd: rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)), //nolint:gosec // test data
		cfg: cfg,
		now: now.UTC(),
	}
	if g.cfg.People < minPax {
		g.cfg.People = minPax
	}
	if g.cfg.Days <= 0 {
		g.cfg.Days = 1
	}
	if len(g.cfg.Venues) == 0 {
		g.cfg.Venues = []string{"1stf"}
	}
	for i := range g.cfg.People {
		name := nicknames[i%len(nicknames)]
		if i >= len(nicknames) {
			name += strconv.Itoa(i / len(nicknames))
		}
		g.roster = append(g.roster, person{id: fmt.Sprintf("U%05d", i), name: name})
	}
	return g
}

// Next returns the next payload. With probability RepeatRatio it is an
// earlier payload sent again under the same id.
func (g *Generator) Next() Backblast {
	if len(g.sent) > 0 && g.rnd.Float64() < g.cfg.RepeatRatio {
		return g.sent[g.rnd.IntN(len(g.sent))]
	}

	date := g.now.AddDate(0, 0, -g.rnd.IntN(g.cfg.Days))
	picked := g.rnd.Perm(len(g.roster))
	n := min(minPax+g.rnd.IntN(maxPax-minPax+1), len(g.roster))
	q := g.roster[picked[0]]

	b := Backblast{
		ID:          uuid.NewString(),
		Date:        date.Format(time.DateOnly),
		AO:          g.cfg.Venues[g.rnd.IntN(len(g.cfg.Venues))],
		Q:           q.name,
		QID:         q.id,
		Pax:         []string{},
		PaxIDs:      []string{},
		FNGs:        []string{},
		FNGIDs:      []string{},
		NVisiting:   "0",
		Submitter:   q.name,
		SubmitterID: q.id,
		StoreDate:   date.Add(time.Duration(6+g.rnd.IntN(3)) * time.Hour).Format(time.RFC3339),
	}
	for _, i := range picked[1:n] {
		b.Pax = append(b.Pax, g.roster[i].name)
		b.PaxIDs = append(b.PaxIDs, g.roster[i].id)
	}
	for range g.rnd.IntN(maxFNGs + 1) {
		g.fngSeq++
		b.FNGs = append(b.FNGs, "FNG"+strconv.Itoa(g.fngSeq))
		b.FNGIDs = append(b.FNGIDs, fmt.Sprintf("N%05d", g.fngSeq))
	}
	if g.rnd.IntN(visitingEvery) == 0 {
		b.NVisiting = strconv.Itoa(1+g.rnd.IntN(3)) + "+"
		b.PaxNoSlack = "Visitor" + strconv.Itoa(g.rnd.IntN(100))
	}
	b.Summary = fmt.Sprintf("%d posted at %s.", len(b.PaxIDs)+1+len(b.FNGIDs), b.AO)

	g.sent = append(g.sent, b)
	return b
}

// Generate returns count payloads.
func (g *Generator) Generate(count int) []Backblast {
	out := make([]Backblast, 0, count)
	for range count {
		out = append(out, g.Next())
	}
	return out
}
