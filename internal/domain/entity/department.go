package entity

import (
	"strings"

	"github.com/jhoicas/Farmacia-api/internal/domain"
)

// Department ubicación de inventario con stock propio por medicamento.
type Department string

const (
	DepartmentPharmacy Department = "PHARMACY" // farmacia central
	DepartmentOPD      Department = "OPD"      // consulta externa
)

// Departments lista cerrada de departamentos válidos.
var Departments = []Department{DepartmentPharmacy, DepartmentOPD}

// Valid indica si el departamento pertenece a la lista cerrada.
func (d Department) Valid() bool {
	switch d {
	case DepartmentPharmacy, DepartmentOPD:
		return true
	}
	return false
}

// ParseDepartment normaliza y valida un código de departamento.
func ParseDepartment(s string) (Department, error) {
	d := Department(strings.ToUpper(strings.TrimSpace(s)))
	if !d.Valid() {
		return "", domain.Validation("departamento desconocido %q", s)
	}
	return d, nil
}
