package message_test

import (
	"strings"
	"testing"

	"github.com/f3peakcity/f3-bot/internal/domain/message"
	"github.com/f3peakcity/f3-bot/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestBuild(t *testing.T) {
	Convey("Given a full backblast", t, func() {
		s := model.Submission{
			VenueChannelID:           "C123",
			OrganizerID:              "Q1",
			ParticipantIDs:           []string{"P1", "P2", "Q1"},
			ParticipantNames:         []string{"Banjo", "Parker", "Torpedo"},
			NewParticipantIDs:        []string{"F1"},
			NewParticipantNames:      []string{"Fresh"},
			UnregisteredParticipants: "what_a_guy, other_guy",
			VisitingCount:            5,
			Summary:                  "Merkins and mumblechatter.",
		}

		text := message.Build(s)

		Convey("Then the headcount covers everyone once", func() {
			So(message.Count(s), ShouldEqual, 4+5+2)
			So(text, ShouldStartWith, "11 posted at <#C123>.")
		})

		Convey("Then every section is present in order", func() {
			So(text, ShouldEqual, strings.Join([]string{
				"11 posted at <#C123>.",
				"Merkins and mumblechatter.",
				"<@P1>, <@P2>, <@F1> (<@Q1> Q)",
				"FNGs named today: <@F1>",
				"Pax not yet in slack: what_a_guy, other_guy",
				"Joined by 5 from outside our region.",
			}, "\n"))
		})
	})

	Convey("Given a minimal backblast", t, func() {
		s := model.Submission{OrganizerID: "Q1"}

		Convey("Then optional sections are left out", func() {
			So(message.Build(s), ShouldEqual, "1 posted.\n (<@Q1> Q)")
		})
	})
}

func TestSplit(t *testing.T) {
	Convey("Given short text", t, func() {
		So(message.Split("hello", 10), ShouldResemble, []string{"hello"})
	})

	Convey("Given text spanning three blocks", t, func() {
		text := strings.Repeat("a", 10) + strings.Repeat("b", 10) + "ccc"
		blocks := message.Split(text, 10)

		Convey("Then blocks are joined with ellipses", func() {
			So(blocks, ShouldResemble, []string{
				strings.Repeat("a", 10) + "...",
				"..." + strings.Repeat("b", 10) + "...",
				"...ccc",
			})
		})

		Convey("Then no block exceeds the limit plus both markers", func() {
			for _, b := range blocks {
				So(len([]rune(b)), ShouldBeLessThanOrEqualTo, 10+6)
			}
			So(len([]rune(blocks[1])), ShouldEqual, 16)
		})
	})

	Convey("Given multibyte text", t, func() {
		blocks := message.Split("ééé", 2)
		So(blocks, ShouldResemble, []string{"éé...", "...é"})
	})

	Convey("Given a non-positive limit", t, func() {
		text := strings.Repeat("x", message.BlockLimit+1)
		So(len(message.Split(text, 0)), ShouldEqual, 2)
	})
}
