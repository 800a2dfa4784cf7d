package repositories

// Store groups the repositories a storage backend provides
type Store struct {
	Taxonomy TaxonomyRepository
	Rules    RuleRepository
	Cases    CaseRepository
	Patients PatientRepository
}
