package ir

// Run outcomes.
const (
	OutcomeLive      = "live"      // constructed, not destroyed
	OutcomeDestroyed = "destroyed" // constructed and destroyed
	OutcomeFailed    = "failed"    // construction failed and was unwound
	OutcomePartial   = "partial"   // destroyed through a base without a virtual destructor
)

// Run is the persisted header of one object lifetime. Its events are
// keyed by ID.
type Run struct {
	ID            string `json:"id"`
	Class         string `json:"class"`
	Constructor   string `json:"constructor"`
	SpecHash      string `json:"spec_hash"`
	PlanHash      string `json:"plan_hash"`
	EngineVersion string `json:"engine_version"`
	IRVersion     string `json:"ir_version"`
	Outcome       string `json:"outcome"`
}
