package types_test

import (
	"encoding/json"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	types "github.com/f3peakcity/f3-bot/internal/domain/types"
)

func TestRunResultJSON(t *testing.T) {
	Convey("Given a run result", t, func() {
		r := types.RunResult{
			StartedAt:   time.Date(2024, time.March, 4, 6, 0, 0, 0, time.UTC),
			Duration:    1500 * time.Millisecond,
			Stages:      types.StageCounts{Loaded: 4, Duplicates: 1, Kept: 3},
			PersonTable: "__PROCESSED_PAX",
			PersonRows:  7,
		}

		Convey("It encodes with snake_case keys", func() {
			b, err := json.Marshal(r)
			So(err, ShouldBeNil)
			So(string(b), ShouldContainSubstring, `"duration_ns":1500000000`)
			So(string(b), ShouldContainSubstring, `"stages":{"loaded":4,`)
			So(string(b), ShouldContainSubstring, `"person_rows":7`)
		})
	})

	Convey("An ack for a repeat submission is marked duplicate", t, func() {
		b, err := json.Marshal(types.Ack{Status: types.AckDuplicate, ID: "bb-1", Duplicate: true})
		So(err, ShouldBeNil)
		So(string(b), ShouldEqual, `{"status":"duplicate","id":"bb-1","duplicate":true}`)
	})
}
