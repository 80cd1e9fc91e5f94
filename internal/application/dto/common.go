package dto

import (
	"errors"

	"github.com/jhoicas/Farmacia-api/internal/domain"
)

// PageRequest paginación para listados.
type PageRequest struct {
	Limit  int `query:"limit" validate:"min=1,max=100"`
	Offset int `query:"offset" validate:"min=0"`
}

// DefaultPage aplica valores por defecto si Limit/Offset son cero.
func (p *PageRequest) DefaultPage() {
	if p.Limit <= 0 {
		p.Limit = 20
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
}

// PageResponse metadatos de página en respuestas.
type PageResponse struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Total  int `json:"total,omitempty"`
}

// ErrorResponse cuerpo de error HTTP.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorFrom clasifica un error de dominio en un ErrorResponse para el colaborador de presentación.
// CORRUPTION e INTERNAL llevan un mensaje fijo; el detalle queda en los logs.
func ErrorFrom(err error) ErrorResponse {
	switch {
	case errors.Is(err, domain.ErrCorruption):
		return ErrorResponse{Code: "CORRUPTION", Message: "problema de integridad del sistema, contacte a soporte"}
	case errors.Is(err, domain.ErrConflict):
		return ErrorResponse{Code: "CONFLICT", Message: err.Error()}
	case errors.Is(err, domain.ErrNotFound):
		return ErrorResponse{Code: "NOT_FOUND", Message: err.Error()}
	case errors.Is(err, domain.ErrValidation):
		return ErrorResponse{Code: "VALIDATION", Message: err.Error()}
	}
	return ErrorResponse{Code: "INTERNAL", Message: "error interno"}
}
