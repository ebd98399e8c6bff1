package convert

import (
	"encoding/json"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
	geom "github.com/peterstace/simplefeatures/geom"

	"github.com/OCAP2/collision-benchmark/internal/model"
	"github.com/OCAP2/collision-benchmark/pkg/core"
)

// pointToVec converts a geom.Point to a vector. Empty points give the zero vector.
func pointToVec(p geom.Point) mgl64.Vec3 {
	coord, ok := p.Coordinates()
	if !ok {
		return mgl64.Vec3{}
	}
	return mgl64.Vec3{coord.XY.X, coord.XY.Y, coord.Z}
}

// RunToCore converts a GORM model.Run to a core.Run.
func RunToCore(r model.Run) core.Run {
	out := core.Run{
		Model1:    r.Model1,
		Model2:    r.Model2,
		StartTime: r.StartTime,
	}
	if id, err := uuid.Parse(r.RunUUID); err == nil {
		out.ID = id
	}
	_ = json.Unmarshal(r.Engines, &out.Engines)
	_ = json.Unmarshal(r.Worlds, &out.Worlds)
	_ = json.Unmarshal(r.Params, &out.Params)
	return out
}

// RunToSummary extracts the summary counters of a finished run.
func RunToSummary(r model.Run) core.Summary {
	s := core.Summary{
		Cells:     r.Cells,
		Evaluated: r.Evaluated,
		Skipped:   r.Skipped,
		Failures:  r.Failures,
		Duration:  time.Duration(r.DurationMs) * time.Millisecond,
	}
	if id, err := uuid.Parse(r.RunUUID); err == nil {
		s.RunID = id
	}
	return s
}

// FailureToCore converts a GORM model.Failure to a core.Failure. Contact
// points are regrouped per model pair, keeping their stored order.
func FailureToCore(f model.Failure, runID uuid.UUID) core.Failure {
	out := core.Failure{
		RunID:    runID,
		Number:   f.Number,
		Cell:     core.Cell{Index: f.CellIndex, Position: pointToVec(f.Position)},
		Positive: f.Positive,
		Negative: f.Negative,
		MaxDepth: f.MaxDepth,
		Time:     f.Time,
	}
	_ = json.Unmarshal(f.SnapshotFiles, &out.SnapshotFiles)

	for _, v := range f.Votes {
		vote := core.Vote{
			World:     v.World,
			Engine:    v.Engine,
			Colliding: v.Colliding,
			MaxDepth:  v.MaxDepth,
		}
		for _, c := range v.Contacts {
			pt := core.ContactPoint{
				Position: pointToVec(c.Position),
				Normal:   pointToVec(c.Normal),
				Depth:    c.Depth,
			}
			n := len(vote.Contacts)
			if n > 0 && vote.Contacts[n-1].ModelA == c.Model1 && vote.Contacts[n-1].ModelB == c.Model2 {
				vote.Contacts[n-1].Points = append(vote.Contacts[n-1].Points, pt)
				continue
			}
			vote.Contacts = append(vote.Contacts, core.ContactInfo{
				ModelA: c.Model1,
				ModelB: c.Model2,
				Points: []core.ContactPoint{pt},
			})
		}
		out.Votes = append(out.Votes, vote)
	}
	return out
}
