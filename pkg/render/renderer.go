// pkg/render/renderer.go
package render

import (
	"context"

	"github.com/opd-ai/rigid2d/pkg/engine"
	"github.com/opd-ai/rigid2d/pkg/logging"
)

// Renderer draws simulation snapshots
type Renderer interface {
	Clear()
	DrawBody(body engine.BodyState)
	DrawJoint(joint engine.JointState)
	Present() error
}

// DrawState clears r, draws every body then every joint of st, and presents the frame.
func DrawState(r Renderer, st *engine.State) error {
	r.Clear()
	if st == nil {
		return r.Present()
	}
	for _, b := range st.Bodies {
		r.DrawBody(b)
	}
	for _, j := range st.Joints {
		r.DrawJoint(j)
	}
	return r.Present()
}

// NullRenderer logs draw calls at debug level and draws nothing.
type NullRenderer struct {
	logger *logging.Logger
	drawn  int
}

// NewNullRenderer creates a NullRenderer. A nil logger discards output.
func NewNullRenderer(logger *logging.Logger) *NullRenderer {
	if logger == nil {
		logger = logging.NewDiscardLogger()
	}
	return &NullRenderer{logger: logger}
}

// Clear implements Renderer.
func (d *NullRenderer) Clear() {
	d.drawn = 0
}

// DrawBody implements Renderer.
func (d *NullRenderer) DrawBody(body engine.BodyState) {
	d.drawn++
	d.logger.Debug(context.Background(), "draw body",
		"body", body.Name,
		"x", body.Position.X,
		"y", body.Position.Y,
		"rotation", body.Rotation,
	)
}

// DrawJoint implements Renderer.
func (d *NullRenderer) DrawJoint(joint engine.JointState) {
	d.drawn++
	d.logger.Debug(context.Background(), "draw joint",
		"joint", joint.Name,
		"angle", joint.RelativeAngle,
	)
}

// Present implements Renderer.
func (d *NullRenderer) Present() error {
	d.logger.Debug(context.Background(), "present", "items", d.drawn)
	return nil
}

// Drawn returns the number of items drawn since the last Clear
func (d *NullRenderer) Drawn() int {
	return d.drawn
}
