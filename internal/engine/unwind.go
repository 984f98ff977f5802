package engine

import (
	"fmt"

	"github.com/roach88/ctorder/internal/ir"
)

// unwind tears down the completed prefix of layer f after a failure, last
// completed first. The step that was in progress and the steps that never
// started are not touched; the layer's destructor body does not run.
//
// Teardown errors are not reported: the construction failure is what the
// caller sees.
func (r *run) unwind(inst *Instance, f *frame, completed []ir.Step) {
	r.emit(inst, ir.EventUnwind, f.path, f.class.Name(), "", fmt.Sprintf("%d completed", len(completed)))
	for _, step := range ir.ReverseSteps(completed) {
		_ = r.teardownStep(inst, f, step)
	}
}
