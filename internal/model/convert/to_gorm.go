// Package convert maps core run data to GORM models and back.
package convert

import (
	"database/sql"
	"encoding/json"

	"github.com/go-gl/mathgl/mgl64"
	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"

	"github.com/OCAP2/collision-benchmark/internal/model"
	"github.com/OCAP2/collision-benchmark/pkg/core"
)

// vecToPoint converts a vector to a 3D geom.Point.
func vecToPoint(v mgl64.Vec3) geom.Point {
	coords := geom.Coordinates{XY: geom.XY{X: v[0], Y: v[1]}, Z: v[2], Type: geom.DimXYZ}
	return geom.NewPoint(coords)
}

// toJSON marshals v, falling back to fallback on error or nil input.
func toJSON(v any, fallback string) datatypes.JSON {
	if v == nil {
		return datatypes.JSON(fallback)
	}
	data, err := json.Marshal(v)
	if err != nil || string(data) == "null" {
		return datatypes.JSON(fallback)
	}
	return datatypes.JSON(data)
}

// CoreToRun converts a core.Run to a GORM model.Run.
func CoreToRun(r core.Run) model.Run {
	return model.Run{
		RunUUID:   r.ID.String(),
		Model1:    r.Model1,
		Model2:    r.Model2,
		Engines:   toJSON(r.Engines, "[]"),
		Worlds:    toJSON(r.Worlds, "[]"),
		Params:    toJSON(r.Params, "{}"),
		StartTime: r.StartTime,
	}
}

// ApplySummary copies the summary counters onto a stored run.
func ApplySummary(run *model.Run, s core.Summary) {
	run.Cells = s.Cells
	run.Evaluated = s.Evaluated
	run.Skipped = s.Skipped
	run.Failures = s.Failures
	run.DurationMs = s.Duration.Milliseconds()
	run.EndTime = sql.NullTime{Time: run.StartTime.Add(s.Duration), Valid: true}
}

// CoreToFailure converts a core.Failure to a GORM model.Failure including
// its votes and contact points. runID is the database id of the run.
func CoreToFailure(f core.Failure, runID uint) model.Failure {
	out := model.Failure{
		Time:          f.Time,
		RunID:         runID,
		Number:        f.Number,
		CellIndex:     f.Cell.Index,
		Position:      vecToPoint(f.Cell.Position),
		Positive:      f.Positive,
		Negative:      f.Negative,
		MaxDepth:      f.MaxDepth,
		SnapshotFiles: toJSON(f.SnapshotFiles, "[]"),
		Votes:         make([]model.Vote, 0, len(f.Votes)),
	}

	for _, v := range f.Votes {
		vote := model.Vote{
			World:     v.World,
			Engine:    v.Engine,
			Colliding: v.Colliding,
			MaxDepth:  v.MaxDepth,
		}
		for _, c := range v.Contacts {
			for _, p := range c.Points {
				vote.Contacts = append(vote.Contacts, model.ContactPoint{
					Model1:   c.ModelA,
					Model2:   c.ModelB,
					Position: vecToPoint(p.Position),
					Normal:   vecToPoint(p.Normal),
					Depth:    p.Depth,
				})
			}
		}
		out.Votes = append(out.Votes, vote)
	}
	return out
}
