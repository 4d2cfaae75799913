package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/pulsecal/scheduling/internal/appointment"
)

type CreateAppointmentRequest struct {
	PatientID      string  `json:"patient_id"`
	DoctorID       string  `json:"doctor_id"`
	OrganizationID *string `json:"organization_id,omitempty"`
	ScheduledAt    string  `json:"scheduled_at"`
	Kind           string  `json:"kind,omitempty"`
	Fee            string  `json:"fee,omitempty"`
	Notes          string  `json:"notes,omitempty"`
	PatientNotes   string  `json:"patient_notes,omitempty"`
	MeetingLink    *string `json:"meeting_link,omitempty"`
}

type TransitionRequest struct {
	Status string `json:"status"`
}

type PatientStatusRequest struct {
	PatientStatus string `json:"patient_status"`
}

type RescheduleRequest struct {
	ScheduledAt string `json:"scheduled_at"`
}

type NotesRequest struct {
	Text string `json:"text"`
}

type AppointmentResponse struct {
	ID             uuid.UUID  `json:"id"`
	PatientID      uuid.UUID  `json:"patient_id"`
	DoctorID       uuid.UUID  `json:"doctor_id"`
	OrganizationID *uuid.UUID `json:"organization_id,omitempty"`
	ScheduledAt    time.Time  `json:"scheduled_at"`
	Status         string     `json:"status"`
	PatientStatus  string     `json:"patient_status"`
	Kind           string     `json:"kind"`
	IsVirtual      bool       `json:"is_virtual"`
	Fee            string     `json:"fee"`
	Notes          string     `json:"notes,omitempty"`
	ReceptionNotes string     `json:"reception_notes,omitempty"`
	PatientNotes   string     `json:"patient_notes,omitempty"`
	MeetingLink    *string    `json:"meeting_link,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func toAppointmentResponse(a *appointment.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:             a.ID,
		PatientID:      a.PatientID,
		DoctorID:       a.DoctorID,
		OrganizationID: a.OrganizationID,
		ScheduledAt:    a.ScheduledAt,
		Status:         string(a.Status),
		PatientStatus:  string(a.PatientStatus),
		Kind:           string(a.Kind),
		IsVirtual:      a.IsVirtual(),
		Fee:            a.Fee.String(),
		Notes:          a.Notes,
		ReceptionNotes: a.ReceptionNotes,
		PatientNotes:   a.PatientNotes,
		MeetingLink:    a.MeetingLink,
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	}
}

func toAppointmentResponses(list []appointment.Appointment) []AppointmentResponse {
	out := make([]AppointmentResponse, 0, len(list))
	for i := range list {
		out = append(out, toAppointmentResponse(&list[i]))
	}
	return out
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}
