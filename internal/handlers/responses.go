package handlers

import "github.com/abrezinsky/rafflebook/internal/models"

// ActorResponse is the response for login and identity lookups
type ActorResponse struct {
	ID   string      `json:"id"`
	Role models.Role `json:"role"`
}

// NumbersResponse lists numbers of a draw
type NumbersResponse struct {
	DrawID  string `json:"draw_id"`
	Numbers []int  `json:"numbers"`
}

// DrawsResponse lists draws
type DrawsResponse struct {
	Draws []models.Draw `json:"draws"`
}

// ParticipationsResponse lists participations
type ParticipationsResponse struct {
	Participations []models.Participation `json:"participations"`
}

// AuditResponse lists audit events
type AuditResponse struct {
	Events []models.AuditEvent `json:"events"`
}

// HealthResponse is the response of the health check
type HealthResponse struct {
	Status string `json:"status"`
}
