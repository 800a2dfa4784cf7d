package services

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/zatekoja/referralintake/internal/domain/entities"
	"github.com/zatekoja/referralintake/internal/domain/repositories"
	"github.com/zatekoja/referralintake/internal/infrastructure/observability"
	"gopkg.in/yaml.v3"
)

//go:embed taxonomy_seed.yaml
var defaultSeed []byte

// TaxonomySeed is a starter taxonomy with rules attached to procedures by name
type TaxonomySeed struct {
	Specialties []SeedSpecialty `yaml:"specialties"`
	Rules       []SeedRule      `yaml:"rules"`
}

type SeedSpecialty struct {
	Name           string              `yaml:"name"`
	Description    string              `yaml:"description"`
	TreatmentTypes []SeedTreatmentType `yaml:"treatment_types"`
}

type SeedTreatmentType struct {
	Name        string          `yaml:"name"`
	Description string          `yaml:"description"`
	Procedures  []SeedProcedure `yaml:"procedures"`
}

type SeedProcedure struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

type SeedRule struct {
	Title       string   `yaml:"title"`
	Description string   `yaml:"description"`
	Procedures  []string `yaml:"procedures"`
}

// DefaultTaxonomySeed returns the built-in starter taxonomy
func DefaultTaxonomySeed() (*TaxonomySeed, error) {
	var seed TaxonomySeed
	if err := yaml.Unmarshal(defaultSeed, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse default taxonomy seed: %w", err)
	}
	return &seed, nil
}

// TaxonomyView is the rendered taxonomy with per-level counts
type TaxonomyView struct {
	Tree           string `json:"tree"`
	Specialties    int    `json:"specialties"`
	TreatmentTypes int    `json:"treatment_types"`
	Procedures     int    `json:"procedures"`
}

// SeedReport counts the entries a seed run wrote
type SeedReport struct {
	Skipped        bool `json:"skipped"`
	Specialties    int  `json:"specialties"`
	TreatmentTypes int  `json:"treatment_types"`
	Procedures     int  `json:"procedures"`
	Rules          int  `json:"rules"`
}

// TaxonomyService exposes and seeds the taxonomy
type TaxonomyService struct {
	taxonomy repositories.TaxonomyRepository
	rules    repositories.RuleRepository
}

// NewTaxonomyService creates a new taxonomy service
func NewTaxonomyService(taxonomy repositories.TaxonomyRepository, rules repositories.RuleRepository) *TaxonomyService {
	return &TaxonomyService{
		taxonomy: taxonomy,
		rules:    rules,
	}
}

// View renders the current taxonomy
func (s *TaxonomyService) View(ctx context.Context) (*TaxonomyView, error) {
	idx, err := LoadTaxonomyIndex(ctx, s.taxonomy)
	if err != nil {
		return nil, err
	}
	specialties, treatmentTypes, procedures := idx.Counts()
	return &TaxonomyView{
		Tree:           idx.Render(),
		Specialties:    specialties,
		TreatmentTypes: treatmentTypes,
		Procedures:     procedures,
	}, nil
}

// Seed writes the seed taxonomy and its rules when the store has no
// specialties yet.
func (s *TaxonomyService) Seed(ctx context.Context, seed *TaxonomySeed) (*SeedReport, error) {
	logger := observability.LoggerFromContext(ctx)

	existing, err := s.taxonomy.ListSpecialties(ctx)
	if err != nil {
		return nil, storeError("failed to list specialties", err)
	}
	if len(existing) > 0 {
		logger.Info().Int("specialties", len(existing)).Msg("Taxonomy already seeded, skipping")
		return &SeedReport{Skipped: true}, nil
	}

	report := &SeedReport{}
	procedureIDs := make(map[string]string)

	for _, sp := range seed.Specialties {
		specialtyID, created, err := s.taxonomy.CreateSpecialty(ctx, sp.Name, sp.Description)
		if err != nil {
			return nil, storeError(fmt.Sprintf("failed to seed specialty %q", sp.Name), err)
		}
		if created {
			report.Specialties++
		}

		for _, tt := range sp.TreatmentTypes {
			treatmentTypeID, created, err := s.taxonomy.CreateTreatmentType(ctx, specialtyID, tt.Name, tt.Description)
			if err != nil {
				return nil, storeError(fmt.Sprintf("failed to seed treatment type %q", tt.Name), err)
			}
			if created {
				report.TreatmentTypes++
			}

			for _, p := range tt.Procedures {
				procedureID, created, err := s.taxonomy.CreateProcedure(ctx, treatmentTypeID, p.Name, p.Description)
				if err != nil {
					return nil, storeError(fmt.Sprintf("failed to seed procedure %q", p.Name), err)
				}
				if created {
					report.Procedures++
				}
				procedureIDs[p.Name] = procedureID
			}
		}
	}

	for _, rule := range seed.Rules {
		ruleID, err := s.rules.CreateRule(ctx, rule.Title, rule.Description, entities.CreatedBySystem)
		if err != nil {
			return nil, storeError(fmt.Sprintf("failed to seed rule %q", rule.Title), err)
		}
		report.Rules++

		for _, name := range rule.Procedures {
			procedureID, ok := procedureIDs[name]
			if !ok {
				logger.Warn().Str("rule_title", rule.Title).Str("procedure", name).Msg("Seed rule references unknown procedure")
				continue
			}
			if err := s.rules.AddRuleToProcedure(ctx, procedureID, ruleID); err != nil {
				return nil, storeError(fmt.Sprintf("failed to attach rule %q to %q", rule.Title, name), err)
			}
		}
	}

	logger.Info().
		Int("specialties", report.Specialties).
		Int("treatment_types", report.TreatmentTypes).
		Int("procedures", report.Procedures).
		Int("rules", report.Rules).
		Msg("Seeded taxonomy")
	return report, nil
}
