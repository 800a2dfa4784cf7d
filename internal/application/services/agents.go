package services

import (
	"fmt"
	"strings"

	"github.com/zatekoja/referralintake/internal/domain/entities"
	"github.com/zatekoja/referralintake/internal/domain/providers"
)

// Extraction task names
const (
	TaskProcedureSummary  = "procedure_summary"
	TaskClassification    = "classification"
	TaskRuleGeneration    = "rule_generation"
	TaskRuleEvaluation    = "rule_evaluation"
	TaskPatientInfo       = "patient_info"
	TaskProviderName      = "provider_name"
	TaskDocumentStructure = "document_structure"
)

func stringProp(description string) map[string]interface{} {
	return map[string]interface{}{"type": "string", "description": description}
}

func nullableStringProp(description string) map[string]interface{} {
	return map[string]interface{}{"type": []string{"string", "null"}, "description": description}
}

func stringListProp(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "array",
		"description": description,
		"items":       map[string]interface{}{"type": "string"},
	}
}

// objectSchema builds a strict object schema where every property is required
func objectSchema(props map[string]interface{}, order ...string) map[string]interface{} {
	return map[string]interface{}{
		"type":                 "object",
		"properties":           props,
		"required":             order,
		"additionalProperties": false,
	}
}

func procedureSummarySpec(model string) providers.AgentSpec {
	return providers.AgentSpec{
		Name:  TaskProcedureSummary,
		Model: model,
		Instructions: "You are a referral request extractor. You are given a medical referral. " +
			"Examine the request, the history and the patient information and return the name of the " +
			"procedure requested, its description and the relevant details such as codes or conditions.",
		Schema: objectSchema(map[string]interface{}{
			"procedure_name":   stringProp("The name of the procedure requested"),
			"description":      stringProp("The description of the procedure requested"),
			"relevant_details": stringProp("Relevant details of the request, any special code or condition"),
		}, "procedure_name", "description", "relevant_details"),
	}
}

func classificationSpec(model string) providers.AgentSpec {
	return providers.AgentSpec{
		Name:  TaskClassification,
		Model: model,
		Instructions: `You are a clinical triage and routing assistant. Given a requested medical procedure and its description, classify it into a specialty, a treatment type and a procedure.

Use the existing specialties, treatment types and procedures whenever one fits, spelled exactly as listed. Only name a new entry when nothing existing fits, and use standard clinical terminology for it.

Decision rules:
- Prefer explicit codes or procedure names over symptoms; use CPT/ICD codes when present.
- If both a test and a procedure are requested, select Procedure or Surgery.
- If only assessment is requested, select Consultation.
- Therapy includes medications, physiotherapy, psychotherapy and rehabilitation.
- Ongoing care without a new request is Follow-up or Monitoring.
- If ambiguous, use Primary Care and Consultation and explain in the notes.

Evidence items are short (3 to 12 words). Strip personal identifiers from evidence and notes.`,
		Schema: objectSchema(map[string]interface{}{
			"specialty":                  stringProp("The specialty of the referral"),
			"specialty_description":      stringProp("The description of the specialty"),
			"treatment_type":             stringProp("The treatment type of the referral"),
			"treatment_type_description": stringProp("The description of the treatment type"),
			"procedure":                  stringProp("The procedure of the referral"),
			"procedure_description":      stringProp("The description of the procedure"),
			"evidence":                   stringListProp("Short evidence snippets supporting the classification"),
			"notes":                      stringProp("Notes about the classification"),
		}, "specialty", "specialty_description", "treatment_type", "treatment_type_description",
			"procedure", "procedure_description", "evidence", "notes"),
	}
}

func classificationInput(tree string, summary *entities.ProcedureSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Existing classifications: %s\n", tree)
	b.WriteString("--------------------------------\n")
	fmt.Fprintf(&b, "Procedure Requested:\n %s\n", summary.ProcedureName)
	fmt.Fprintf(&b, "Procedure Description:\n %s\n", summary.Description)
	fmt.Fprintf(&b, "Procedure Relevant Details:\n %s\n", summary.RelevantDetails)
	return b.String()
}

func ruleGenerationSpec(model string) providers.AgentSpec {
	return providers.AgentSpec{
		Name:  TaskRuleGeneration,
		Model: model,
		Instructions: `You create eligibility and safety rules for medical procedures. Given a procedure and its specialty and treatment type, generate the essential rules a reviewer must check before approving a referral for it.

Cover medical necessity, safety and contraindications, prerequisites, documentation, authorization and patient criteria where relevant. Focus on the rules that most often cause a referral to be denied or to need more information.

Each title is concise and specific (5 to 10 words). Each description tells a medical reviewer exactly what to check. Explain your selection in the reasoning.`,
		Schema: objectSchema(map[string]interface{}{
			"rules": map[string]interface{}{
				"type":        "array",
				"description": "Rules that must be checked for this procedure",
				"items": objectSchema(map[string]interface{}{
					"title":       stringProp("A concise, clear title for the rule"),
					"description": stringProp("What needs to be checked or verified for this rule"),
				}, "title", "description"),
			},
			"reasoning": stringProp("Why these rules were generated for this procedure"),
		}, "rules", "reasoning"),
	}
}

func ruleGenerationInput(req RuleGenerationRequest) string {
	var b strings.Builder
	b.WriteString("PROCEDURE TO GENERATE RULES FOR:\n")
	fmt.Fprintf(&b, "Name: %s\n", req.ProcedureName)
	fmt.Fprintf(&b, "Description: %s\n\n", req.ProcedureDescription)
	b.WriteString("CLASSIFICATION CONTEXT:\n")
	fmt.Fprintf(&b, "Specialty: %s\n", req.SpecialtyName)
	fmt.Fprintf(&b, "Specialty Description: %s\n", req.SpecialtyDescription)
	fmt.Fprintf(&b, "Treatment Type: %s\n", req.TreatmentTypeName)
	fmt.Fprintf(&b, "Treatment Type Description: %s\n", req.TreatmentTypeDescription)
	return b.String()
}

func ruleEvaluationSpec(model string) providers.AgentSpec {
	return providers.AgentSpec{
		Name:  TaskRuleEvaluation,
		Model: model,
		Instructions: `You evaluate referral documents against a single rule and decide whether the referral meets it.

Return one status:
- valid: the referral meets every requirement of the rule with the information available.
- needs_more_information: the referral could meet the rule but more documents are needed to decide. List what is needed.
- deny: the referral does not meet the rule and no additional information would change that.

Be factual and specific. When unsure whether the information is sufficient, prefer needs_more_information over deny.`,
		Schema: objectSchema(map[string]interface{}{
			"status": map[string]interface{}{
				"type":        "string",
				"enum":        []string{string(entities.RuleStatusValid), string(entities.RuleStatusNeedsMoreInformation), string(entities.RuleStatusDeny)},
				"description": "The outcome of the rule evaluation",
			},
			"reasoning":                stringProp("Why this status was chosen"),
			"required_additional_info": stringListProp("Information needed when the status is needs_more_information"),
		}, "status", "reasoning", "required_additional_info"),
	}
}

func ruleEvaluationInput(title, description, documentText string) string {
	var b strings.Builder
	b.WriteString("RULE TO EVALUATE:\n")
	fmt.Fprintf(&b, "Name: %s\n", title)
	fmt.Fprintf(&b, "Description: %s\n\n", description)
	b.WriteString("DOCUMENT CONTENT:\n")
	b.WriteString(documentText)
	return b.String()
}

func patientInfoSpec(model string) providers.AgentSpec {
	return providers.AgentSpec{
		Name:  TaskPatientInfo,
		Model: model,
		Instructions: "You extract patient information from medical document content: full name, date of birth, " +
			"gender, email, phone number, medical record number, insurance provider and member ID, and address. " +
			"Only extract what is clearly identifiable as patient information; use null for anything absent or unclear.",
		Schema: objectSchema(map[string]interface{}{
			"name":                  nullableStringProp("The full name of the patient"),
			"date_of_birth":         nullableStringProp("The date of birth of the patient"),
			"gender":                nullableStringProp("The gender of the patient"),
			"email":                 nullableStringProp("The email of the patient"),
			"phone":                 nullableStringProp("The phone number of the patient"),
			"medical_record_number": nullableStringProp("The medical record number of the patient"),
			"insurance_provider":    nullableStringProp("The insurance provider of the patient"),
			"insurance_member_id":   nullableStringProp("The insurance member ID of the patient"),
			"address":               nullableStringProp("The street address of the patient"),
			"city":                  nullableStringProp("The city of the patient"),
			"state":                 nullableStringProp("The state of the patient"),
			"zip_code":              nullableStringProp("The zip code of the patient"),
		}, "name", "date_of_birth", "gender", "email", "phone", "medical_record_number",
			"insurance_provider", "insurance_member_id", "address", "city", "state", "zip_code"),
	}
}

func providerNameSpec(model string) providers.AgentSpec {
	return providers.AgentSpec{
		Name:  TaskProviderName,
		Model: model,
		Instructions: "You are given medical referral content. Extract the full name of the referring or rendering provider. " +
			"Prefer explicit labels such as Referring Provider, Physician or Doctor. Return only the human name without " +
			"titles or credentials, keeping middle initials. Return null when no provider is clearly present.",
		Schema: objectSchema(map[string]interface{}{
			"name": nullableStringProp("The provider's full name"),
		}, "name"),
	}
}

func documentStructureSpec(model string) providers.AgentSpec {
	return providers.AgentSpec{
		Name:  TaskDocumentStructure,
		Model: model,
		Instructions: "You outline medical documents. Return the section structure of the document as an indented " +
			"list of headings, noting tables and forms, without reproducing the content.",
		Schema: objectSchema(map[string]interface{}{
			"structure": stringProp("The outline of the document"),
		}, "structure"),
	}
}
