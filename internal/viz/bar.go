package viz

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/OCAP2/collision-benchmark/pkg/core"
	"github.com/OCAP2/collision-benchmark/pkg/streaming"
)

const (
	// BarName is the marker model name of the collision bar.
	BarName   = "collision_bar"
	BarRadius = 0.05
	barColor  = "#ff808080"

	barInterval = 100 * time.Millisecond
)

// BarAxis is the world axis the second model is moved along.
var BarAxis = mgl64.Vec3{0, 1, 0}

// CollisionBar keeps a static cylinder marker between two models alive in
// the visualization client. The pose is re-published periodically so it
// cannot be dragged away in the client.
type CollisionBar struct {
	pub      Publisher
	info     streaming.ModelInfoPayload
	interval time.Duration
	logger   *slog.Logger
}

// BarPose computes the bar pose and length for two models whose boxes
// touch along BarAxis. origin is the position of the first model.
func BarPose(aabb1, aabb2 core.AABB, origin mgl64.Vec3) (core.Pose, float64) {
	length := aabb1.Size().Dot(BarAxis)/2 + aabb2.Size().Dot(BarAxis)/2
	return core.Pose{
		Position: origin.Add(BarAxis.Mul(length / 2)),
		// 90 degrees about x
		Rotation: mgl64.Quat{W: math.Sqrt(0.5), V: mgl64.Vec3{math.Sqrt(0.5), 0, 0}},
	}, length
}

// NewCollisionBar builds a bar for the given boxes.
func NewCollisionBar(pub Publisher, aabb1, aabb2 core.AABB, origin mgl64.Vec3, logger *slog.Logger) *CollisionBar {
	if logger == nil {
		logger = slog.Default()
	}
	pose, length := BarPose(aabb1, aabb2, origin)
	return &CollisionBar{
		pub: pub,
		info: streaming.ModelInfoPayload{
			Name: BarName,
			Geometry: streaming.Geometry{
				Kind:   "cylinder",
				Radius: BarRadius,
				Length: length,
			},
			Pose:  pose,
			Color: barColor,
		},
		interval: barInterval,
		logger:   logger,
	}
}

// Info returns the marker announced by the bar.
func (b *CollisionBar) Info() streaming.ModelInfoPayload {
	return b.info
}

// Run publishes the marker once, then its pose every interval until ctx
// is cancelled.
func (b *CollisionBar) Run(ctx context.Context) error {
	if err := b.pub.Publish(streaming.TypeModelInfo, b.info); err != nil {
		return err
	}

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	pose := streaming.PoseInfoPayload{Name: b.info.Name, Pose: b.info.Pose}
	for {
		select {
		case <-ctx.Done():
			b.logger.Info("Stopping to publish collision bar")
			return nil
		case <-ticker.C:
			if err := b.pub.Publish(streaming.TypePoseInfo, pose); err != nil {
				b.logger.Warn("Failed to publish collision bar pose", "error", err)
			}
		}
	}
}
