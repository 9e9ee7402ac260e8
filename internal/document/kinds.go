package document

import (
	"fmt"
	"strings"
)

// EntityKind identifies a category of extracted entity.
type EntityKind string

// Entity kinds produced by the recognizers.
const (
	KindPerson      EntityKind = "PERSON"
	KindOrg         EntityKind = "ORG"
	KindGPE         EntityKind = "GPE"
	KindDate        EntityKind = "DATE"
	KindTime        EntityKind = "TIME"
	KindMoney       EntityKind = "MONEY"
	KindMeasurement EntityKind = "MEASUREMENT"
	KindLocation    EntityKind = "LOCATION"
	KindRegulation  EntityKind = "REGULATION"
	KindEmail       EntityKind = "EMAIL"
	KindURL         EntityKind = "URL"
	KindPhone       EntityKind = "PHONE"
	KindChemical    EntityKind = "CHEMICAL"
	KindPercentage  EntityKind = "PERCENTAGE"
	KindSafetyTerm  EntityKind = "SAFETY_TERM"
	KindAgency      EntityKind = "AGENCY"
)

// ParseEntityKind converts a string to an EntityKind at the input boundary.
func ParseEntityKind(s string) (EntityKind, error) {
	k := EntityKind(strings.ToUpper(strings.TrimSpace(s)))
	switch k {
	case KindPerson, KindOrg, KindGPE, KindDate, KindTime, KindMoney,
		KindMeasurement, KindLocation, KindRegulation, KindEmail, KindURL,
		KindPhone, KindChemical, KindPercentage, KindSafetyTerm, KindAgency:
		return k, nil
	}
	return "", fmt.Errorf("unknown entity kind: %q", s)
}

// Domain is a document subject-area label.
type Domain string

// Domains assignable by the classifier.
const (
	DomainSafety        Domain = "safety"
	DomainRegulatory    Domain = "regulatory"
	DomainEngineering   Domain = "engineering"
	DomainFinancial     Domain = "financial"
	DomainLegal         Domain = "legal"
	DomainMedical       Domain = "medical"
	DomainEnvironmental Domain = "environmental"
	DomainGeneral       Domain = "general"
)

// DocType is a document purpose label, orthogonal to Domain.
type DocType string

// Document types assignable by the classifier.
const (
	DocTypeTechnical DocType = "technical"
	DocTypeLegal     DocType = "legal"
	DocTypeSafety    DocType = "safety"
	DocTypeFinancial DocType = "financial"
	DocTypeReport    DocType = "report"
	DocTypeManual    DocType = "manual"
	DocTypePolicy    DocType = "policy"
	DocTypeGeneral   DocType = "general"
)

// Strategy selects the conversion approach for a batch.
type Strategy string

// Conversion strategies.
const (
	StrategyFast   Strategy = "fast"
	StrategyVLM    Strategy = "vlm"
	StrategyHybrid Strategy = "hybrid"
)

// ParseStrategy converts a CLI flag value to a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case StrategyFast:
		return StrategyFast, nil
	case StrategyVLM:
		return StrategyVLM, nil
	case StrategyHybrid:
		return StrategyHybrid, nil
	}
	return "", fmt.Errorf("unknown strategy: %q", s)
}

// Stage names the seven pipeline transformations.
type Stage string

// Pipeline stages in execution order.
const (
	StageConvert   Stage = "convert"
	StageProcess   Stage = "process"
	StageClassify  Stage = "classify"
	StageExtract   Stage = "extract"
	StageNormalize Stage = "normalize"
	StageSemantic  Stage = "semantic"
	StageWrite     Stage = "write"
)

// Stages lists all pipeline stages in dependency order.
func Stages() []Stage {
	return []Stage{
		StageConvert, StageProcess, StageClassify, StageExtract,
		StageNormalize, StageSemantic, StageWrite,
	}
}

// FactKind identifies which generator produced a semantic fact.
type FactKind string

// Fact kinds emitted by the semantic stage.
const (
	FactRequirement  FactKind = "requirement"
	FactCompliance   FactKind = "compliance"
	FactMeasurement  FactKind = "measurement"
	FactOrgAction    FactKind = "organizational_action"
	FactQuantitative FactKind = "quantitative"
)
