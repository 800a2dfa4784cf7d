package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/zatekoja/referralintake/internal/domain/entities"
	"github.com/zatekoja/referralintake/internal/domain/repositories"
	apperrors "github.com/zatekoja/referralintake/pkg/errors"
)

// TaxonomyIndex is a per-run snapshot of the specialty, treatment type and
// procedure hierarchy. Name lookups are exact and case-sensitive; when the
// store holds duplicate names the first one listed wins.
//
// A TaxonomyIndex is not safe for concurrent mutation. It is built, used and
// discarded by a single classification run.
type TaxonomyIndex struct {
	specialties    []*entities.Specialty
	treatmentTypes map[string][]*entities.TreatmentType // by specialty ID
	procedures     map[string][]*entities.Procedure     // by treatment type ID

	specialtyByID     map[string]*entities.Specialty
	treatmentTypeByID map[string]*entities.TreatmentType

	specialtyByName     map[string]*entities.Specialty
	treatmentTypeByName map[string]*entities.TreatmentType
	procedureByName     map[string]*entities.Procedure
}

// BuildTaxonomyIndex links the flat collections into a hierarchy. A treatment
// type or procedure whose parent is missing fails the build with a
// TAXONOMY_INTEGRITY error.
func BuildTaxonomyIndex(specialties []*entities.Specialty, treatmentTypes []*entities.TreatmentType, procedures []*entities.Procedure) (*TaxonomyIndex, error) {
	idx := &TaxonomyIndex{
		treatmentTypes:      make(map[string][]*entities.TreatmentType),
		procedures:          make(map[string][]*entities.Procedure),
		specialtyByID:       make(map[string]*entities.Specialty, len(specialties)),
		treatmentTypeByID:   make(map[string]*entities.TreatmentType, len(treatmentTypes)),
		specialtyByName:     make(map[string]*entities.Specialty, len(specialties)),
		treatmentTypeByName: make(map[string]*entities.TreatmentType, len(treatmentTypes)),
		procedureByName:     make(map[string]*entities.Procedure, len(procedures)),
	}

	for _, s := range specialties {
		if s == nil {
			continue
		}
		idx.addSpecialty(s)
	}

	for _, tt := range treatmentTypes {
		if tt == nil {
			continue
		}
		if _, ok := idx.specialtyByID[tt.SpecialtyID]; !ok {
			return nil, apperrors.NewTaxonomyIntegrityError(fmt.Sprintf(
				"treatment type %q (%s) references unknown specialty %q", tt.Name, tt.ID, tt.SpecialtyID))
		}
		idx.addTreatmentType(tt)
	}

	for _, p := range procedures {
		if p == nil {
			continue
		}
		if _, ok := idx.treatmentTypeByID[p.TreatmentTypeID]; !ok {
			return nil, apperrors.NewTaxonomyIntegrityError(fmt.Sprintf(
				"procedure %q (%s) references unknown treatment type %q", p.Name, p.ID, p.TreatmentTypeID))
		}
		idx.addProcedure(p)
	}

	return idx, nil
}

func (idx *TaxonomyIndex) addSpecialty(s *entities.Specialty) {
	idx.specialties = append(idx.specialties, s)
	idx.specialtyByID[s.ID] = s
	if _, exists := idx.specialtyByName[s.Name]; !exists {
		idx.specialtyByName[s.Name] = s
	}
}

func (idx *TaxonomyIndex) addTreatmentType(tt *entities.TreatmentType) {
	idx.treatmentTypes[tt.SpecialtyID] = append(idx.treatmentTypes[tt.SpecialtyID], tt)
	idx.treatmentTypeByID[tt.ID] = tt
	if _, exists := idx.treatmentTypeByName[tt.Name]; !exists {
		idx.treatmentTypeByName[tt.Name] = tt
	}
}

func (idx *TaxonomyIndex) addProcedure(p *entities.Procedure) {
	idx.procedures[p.TreatmentTypeID] = append(idx.procedures[p.TreatmentTypeID], p)
	if _, exists := idx.procedureByName[p.Name]; !exists {
		idx.procedureByName[p.Name] = p
	}
}

// FindSpecialtyByName returns the specialty with exactly this name, or nil
func (idx *TaxonomyIndex) FindSpecialtyByName(name string) *entities.Specialty {
	return idx.specialtyByName[name]
}

// FindTreatmentTypeByName returns the treatment type with exactly this name,
// or nil. The match is not scoped to a specialty.
func (idx *TaxonomyIndex) FindTreatmentTypeByName(name string) *entities.TreatmentType {
	return idx.treatmentTypeByName[name]
}

// FindProcedureByName returns the procedure with exactly this name, or nil
func (idx *TaxonomyIndex) FindProcedureByName(name string) *entities.Procedure {
	return idx.procedureByName[name]
}

// AddSpecialty records a specialty created during the run
func (idx *TaxonomyIndex) AddSpecialty(id, name, description string) *entities.Specialty {
	s := &entities.Specialty{ID: id, Name: name, Description: description}
	idx.addSpecialty(s)
	return s
}

// AddTreatmentType records a treatment type created during the run
func (idx *TaxonomyIndex) AddTreatmentType(id, specialtyID, name, description string) (*entities.TreatmentType, error) {
	if _, ok := idx.specialtyByID[specialtyID]; !ok {
		return nil, apperrors.NewTaxonomyIntegrityError(fmt.Sprintf(
			"treatment type %q added under unknown specialty %q", name, specialtyID))
	}
	tt := &entities.TreatmentType{ID: id, SpecialtyID: specialtyID, Name: name, Description: description}
	idx.addTreatmentType(tt)
	return tt, nil
}

// AddProcedure records a procedure created during the run
func (idx *TaxonomyIndex) AddProcedure(id, treatmentTypeID, name, description string) (*entities.Procedure, error) {
	if _, ok := idx.treatmentTypeByID[treatmentTypeID]; !ok {
		return nil, apperrors.NewTaxonomyIntegrityError(fmt.Sprintf(
			"procedure %q added under unknown treatment type %q", name, treatmentTypeID))
	}
	p := &entities.Procedure{ID: id, TreatmentTypeID: treatmentTypeID, Name: name, Description: description}
	idx.addProcedure(p)
	return p, nil
}

// Counts returns the number of entries at each level
func (idx *TaxonomyIndex) Counts() (specialties, treatmentTypes, procedures int) {
	for _, tts := range idx.treatmentTypes {
		treatmentTypes += len(tts)
	}
	for _, ps := range idx.procedures {
		procedures += len(ps)
	}
	return len(idx.specialties), treatmentTypes, procedures
}

// Render serializes the hierarchy as indented "name - description" lines,
// one tab per level below specialty.
func (idx *TaxonomyIndex) Render() string {
	var b strings.Builder
	for _, s := range idx.specialties {
		fmt.Fprintf(&b, "%s - %s\n", s.Name, s.Description)
		for _, tt := range idx.treatmentTypes[s.ID] {
			fmt.Fprintf(&b, "\t%s - %s\n", tt.Name, tt.Description)
			for _, p := range idx.procedures[tt.ID] {
				fmt.Fprintf(&b, "\t\t%s - %s\n", p.Name, p.Description)
			}
		}
	}
	return b.String()
}

// LoadTaxonomyIndex fetches the three flat collections and builds a snapshot
func LoadTaxonomyIndex(ctx context.Context, repo repositories.TaxonomyRepository) (*TaxonomyIndex, error) {
	specialties, err := repo.ListSpecialties(ctx)
	if err != nil {
		return nil, storeError("failed to list specialties", err)
	}
	treatmentTypes, err := repo.ListTreatmentTypes(ctx)
	if err != nil {
		return nil, storeError("failed to list treatment types", err)
	}
	procedures, err := repo.ListProcedures(ctx)
	if err != nil {
		return nil, storeError("failed to list procedures", err)
	}
	return BuildTaxonomyIndex(specialties, treatmentTypes, procedures)
}
