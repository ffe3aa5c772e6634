/*
Package generic provides the shared vocabulary of the duty engine.

PURPOSE:
  Types that every domain package needs but none of them owns: identifiers,
  the reviewing actor, the validation/review state carried by reviewable
  records, domain events and the time primitives used by the calculators.
  Domain packages (attendance, jaspel) build on these; the validation state
  machine operates on them without knowing any concrete record type.

KEY CONCEPTS IN THIS FILE (types.go):
  - UserID / RecordID: Type-safe identifiers
  - RecordType: Which kind of reviewable record a value is
  - Actor: Who performed an edit or review (opaque, provided by the caller)

DESIGN PRINCIPLES:
  1. Pure engines: calculators take snapshots and return values, never hold
     references across calls
  2. Precision: money and percentages use decimal.Decimal
  3. Missing input is a value (nil pointer), not an error

SEE ALSO:
  - review.go: Validation status and review state
  - event.go: Domain events and sinks
  - time.go: Time-of-day and clock provider
*/
package generic

// =============================================================================
// IDENTIFIERS
// =============================================================================

type UserID string
type RecordID string

// RecordType identifies a reviewable record kind.
type RecordType string

const (
	RecordAttendance   RecordType = "attendance"
	RecordPatientCount RecordType = "patient_count"
)

// =============================================================================
// ACTOR - Who is acting
// =============================================================================

// Actor is the opaque "current actor" supplied by the surrounding layer.
// Authentication is not this engine's concern.
type Actor struct {
	ID   string
	Name string
	Role string
}

// System is the actor used by scheduled jobs.
var System = Actor{ID: "system", Name: "System", Role: "system"}

func (a Actor) IsZero() bool { return a.ID == "" }

func (a Actor) String() string {
	if a.Name != "" {
		return a.Name
	}
	return a.ID
}
