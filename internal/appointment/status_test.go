package appointment

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pulsecal/scheduling/internal/audit"
)

func TestCanTransition(t *testing.T) {
	allowed := []struct{ from, to Status }{
		{StatusPending, StatusConfirmed},
		{StatusPending, StatusCancelled},
		{StatusPending, StatusDeclined},
		{StatusConfirmed, StatusCheckedIn},
		{StatusConfirmed, StatusCancelled},
		{StatusConfirmed, StatusCompleted},
		{StatusCheckedIn, StatusCompleted},
		{StatusCheckedIn, StatusCancelled},
	}
	for _, tc := range allowed {
		assert.True(t, CanTransition(tc.from, tc.to), "%s -> %s should be allowed", tc.from, tc.to)
	}

	rejected := []struct{ from, to Status }{
		{StatusPending, StatusCheckedIn},
		{StatusPending, StatusCompleted},
		{StatusPending, StatusPending},
		{StatusConfirmed, StatusPending},
		{StatusConfirmed, StatusDeclined},
		{StatusCheckedIn, StatusConfirmed},
		{StatusCompleted, StatusCancelled},
		{StatusCancelled, StatusPending},
		{StatusDeclined, StatusConfirmed},
	}
	for _, tc := range rejected {
		assert.False(t, CanTransition(tc.from, tc.to), "%s -> %s should be rejected", tc.from, tc.to)
	}
}

func TestTerminalStatuses(t *testing.T) {
	for _, s := range []Status{StatusCompleted, StatusCancelled, StatusDeclined} {
		assert.True(t, IsTerminal(s), "%s should be terminal", s)
	}
	for _, s := range []Status{StatusPending, StatusConfirmed, StatusCheckedIn} {
		assert.False(t, IsTerminal(s), "%s should not be terminal", s)
	}
}

func TestValidStatus(t *testing.T) {
	assert.True(t, ValidStatus(StatusPending))
	assert.False(t, ValidStatus(Status("expired")))
	assert.False(t, ValidStatus(Status("")))
}

func TestPatientStatusForwardOnly(t *testing.T) {
	assert.True(t, CanAdvancePatientStatus(PatientWaiting, PatientInConsultation))
	assert.True(t, CanAdvancePatientStatus(PatientInConsultation, PatientDone))
	assert.True(t, CanAdvancePatientStatus(PatientWaiting, PatientDone))

	assert.False(t, CanAdvancePatientStatus(PatientDone, PatientWaiting))
	assert.False(t, CanAdvancePatientStatus(PatientDone, PatientInConsultation))
	assert.False(t, CanAdvancePatientStatus(PatientInConsultation, PatientWaiting))
	assert.False(t, CanAdvancePatientStatus(PatientWaiting, PatientWaiting))
	assert.False(t, CanAdvancePatientStatus(PatientDone, PatientDone))
}

func TestAuditActionMapping(t *testing.T) {
	assert.Equal(t, audit.ActionAppointmentCancelled, auditActionFor(StatusCancelled))
	assert.Equal(t, audit.ActionAppointmentCompleted, auditActionFor(StatusCompleted))
	assert.Equal(t, audit.ActionAppointmentUpdated, auditActionFor(StatusConfirmed))
	assert.Equal(t, audit.ActionAppointmentUpdated, auditActionFor(StatusCheckedIn))
}

func TestEventTypeMapping(t *testing.T) {
	assert.Equal(t, "checked in", eventTypeFor(StatusCheckedIn))
	assert.Equal(t, "confirmed", eventTypeFor(StatusConfirmed))
	assert.Equal(t, "cancelled", eventTypeFor(StatusCancelled))
}
