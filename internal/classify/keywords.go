package classify

import "github.com/corpusforge/corpus-engine/internal/document"

// domainKeywords are the lowercase keyword sets scored per domain. The
// general bucket carries no keywords; it exists so the argmax is never
// undefined.
func domainKeywords() map[document.Domain][]string {
	return map[document.Domain][]string{
		document.DomainSafety: {
			"safety", "hazard", "hazardous", "ppe", "protective", "injury",
			"accident", "osha", "fall", "guardrail", "harness", "hard",
			"helmet", "lockout", "tagout", "confined", "excavation",
			"scaffold", "scaffolding", "respirator", "ventilation", "toxic",
			"flammable", "emergency", "evacuation", "first-aid",
		},
		document.DomainRegulatory: {
			"regulation", "regulatory", "compliance", "cfr", "statute",
			"violation", "penalty", "fine", "citation", "audit", "standard",
			"standards", "certification", "permit", "enforcement", "agency",
			"inspector", "inspection", "mandate", "prohibited",
		},
		document.DomainEngineering: {
			"engineering", "design", "specification", "tolerance", "load",
			"stress", "structural", "mechanical", "electrical", "voltage",
			"circuit", "torque", "welding", "fabrication", "blueprint",
			"schematic", "calibration", "materials", "concrete", "steel",
		},
		document.DomainFinancial: {
			"financial", "revenue", "profit", "loss", "earnings", "fiscal",
			"budget", "invoice", "payment", "investment", "shareholder",
			"dividend", "equity", "liability", "asset", "quarterly",
			"expense", "audit", "balance", "capital",
		},
		document.DomainLegal: {
			"legal", "contract", "agreement", "plaintiff", "defendant",
			"court", "lawsuit", "litigation", "clause", "liability",
			"indemnification", "warranty", "jurisdiction", "arbitration",
			"counsel", "attorney", "settlement", "damages", "tort",
		},
		document.DomainMedical: {
			"medical", "patient", "diagnosis", "treatment", "clinical",
			"symptom", "dosage", "prescription", "physician", "hospital",
			"therapy", "pathology", "exposure", "illness", "disease",
			"infection", "toxicology", "epidemiology",
		},
		document.DomainEnvironmental: {
			"environmental", "emission", "emissions", "pollution",
			"pollutant", "epa", "contamination", "wastewater", "discharge",
			"remediation", "groundwater", "habitat", "ecosystem",
			"sustainability", "recycling", "disposal", "landfill",
		},
		document.DomainGeneral: {},
	}
}

// docTypeKeywords are the lowercase keyword sets scored per document type.
// Disjoint from domain keywords by construction.
func docTypeKeywords() map[document.DocType][]string {
	return map[document.DocType][]string{
		document.DocTypeTechnical: {
			"procedure", "installation", "configuration", "parameters",
			"diagram", "assembly", "maintenance", "troubleshooting",
			"technical", "version", "revision",
		},
		document.DocTypeLegal: {
			"hereby", "whereas", "herein", "thereof", "pursuant",
			"notwithstanding", "covenant", "executed", "binding",
		},
		document.DocTypeSafety: {
			"warning", "caution", "danger", "must", "shall", "required",
			"prohibited", "mandatory", "comply",
		},
		document.DocTypeFinancial: {
			"total", "amount", "balance", "subtotal", "tax", "due",
			"account", "statement", "transaction",
		},
		document.DocTypeReport: {
			"summary", "findings", "conclusion", "methodology", "results",
			"analysis", "recommendation", "appendix", "abstract",
		},
		document.DocTypeManual: {
			"chapter", "section", "instructions", "guide", "handbook",
			"overview", "glossary", "index", "tutorial",
		},
		document.DocTypePolicy: {
			"policy", "policies", "responsibility", "scope", "purpose",
			"effective", "applicability", "revision", "approval",
		},
		document.DocTypeGeneral: {},
	}
}
