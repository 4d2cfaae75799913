package appointment

import "github.com/pulsecal/scheduling/internal/audit"

// statusTransitions is the full transition table. completed, cancelled
// and declined are terminal. Anything not listed is invalid, including
// same-status transitions.
var statusTransitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCancelled, StatusDeclined},
	StatusConfirmed: {StatusCheckedIn, StatusCancelled, StatusCompleted},
	StatusCheckedIn: {StatusCompleted, StatusCancelled},
	StatusCompleted: {},
	StatusCancelled: {},
	StatusDeclined:  {},
}

func ValidStatus(s Status) bool {
	_, ok := statusTransitions[s]
	return ok
}

func IsTerminal(s Status) bool {
	next, ok := statusTransitions[s]
	return ok && len(next) == 0
}

// CanTransition reports whether from -> to is an allowed status change.
func CanTransition(from, to Status) bool {
	for _, next := range statusTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// patientStatusRank orders in-clinic progress. Transitions may only move
// forward; done is terminal with no reset path.
var patientStatusRank = map[PatientStatus]int{
	PatientWaiting:        0,
	PatientInConsultation: 1,
	PatientDone:           2,
}

func ValidPatientStatus(s PatientStatus) bool {
	_, ok := patientStatusRank[s]
	return ok
}

// CanAdvancePatientStatus reports whether from -> to moves strictly
// forward through waiting -> in_consultation -> done.
func CanAdvancePatientStatus(from, to PatientStatus) bool {
	fr, ok1 := patientStatusRank[from]
	tr, ok2 := patientStatusRank[to]
	return ok1 && ok2 && tr > fr
}

// auditActionFor maps an accepted status change to its audit action kind.
func auditActionFor(to Status) audit.Action {
	switch to {
	case StatusCancelled:
		return audit.ActionAppointmentCancelled
	case StatusCompleted:
		return audit.ActionAppointmentCompleted
	default:
		return audit.ActionAppointmentUpdated
	}
}

// eventTypeFor maps an accepted status change to the event verb carried
// in notifications, e.g. "Your appointment has been confirmed."
func eventTypeFor(to Status) string {
	switch to {
	case StatusCheckedIn:
		return "checked in"
	default:
		return string(to)
	}
}
