// Package claims normalizes prescription and medical-service claims JSON into
// a single timeline model.
package claims

import "time"

// Kind is the source category of a claim item.
type Kind string

const (
	KindPrescriptionPending Kind = "prescription-pending"
	KindPrescriptionHistory Kind = "prescription-history"
	KindMedicalService      Kind = "medical-service"
)

// Section returns the section key the kind is read from.
func (k Kind) Section() string {
	switch k {
	case KindPrescriptionPending:
		return SectionRxTBA
	case KindPrescriptionHistory:
		return SectionRxHistory
	case KindMedicalService:
		return SectionMedHistory
	default:
		return ""
	}
}

// Category is the display name used in synthesized labels.
func (k Kind) Category() string {
	switch k {
	case KindPrescriptionPending:
		return "RX TBA"
	case KindPrescriptionHistory:
		return "RX History"
	case KindMedicalService:
		return "Medical Service"
	default:
		return string(k)
	}
}

// Unknown marks an attribute absent from the source record.
const Unknown = "N/A"

// Interval is a pair of calendar instants. End >= Start is not enforced.
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Union returns the smallest interval covering both i and o.
func (i Interval) Union(o Interval) Interval {
	out := i
	if o.Start.Before(out.Start) {
		out.Start = o.Start
	}
	if o.End.After(out.End) {
		out.End = o.End
	}
	return out
}

// PrescriptionFacts are the normalized fields of a prescription claim.
type PrescriptionFacts struct {
	Dosage     string `json:"dosage"`
	Prescriber string `json:"prescriber"`
	Pharmacy   string `json:"pharmacy"`
	NDC        string `json:"ndc"`
	Quantity   string `json:"quantity"`
	Copay      string `json:"copay"`
	DaysSupply int    `json:"daysSupply"`
}

// ServiceFacts are the normalized fields of one medical service line.
type ServiceFacts struct {
	ClaimID       string `json:"claimId"`
	Provider      string `json:"provider"`
	ServiceType   string `json:"serviceType"`
	ProcedureCode string `json:"procedureCode"`
	ChargedAmount string `json:"chargedAmount"`
	AllowedAmount string `json:"allowedAmount"`
	PaidAmount    string `json:"paidAmount"`
}

// Attributes holds exactly one of Prescription or Service, plus the source
// fields carried through verbatim in Extra.
type Attributes struct {
	Prescription *PrescriptionFacts `json:"prescription,omitempty"`
	Service      *ServiceFacts      `json:"service,omitempty"`
	Extra        map[string]any     `json:"extra,omitempty"`
}

// ClaimItem is one plottable unit: a prescription entry or a service line.
type ClaimItem struct {
	ID         string     `json:"id"`
	Kind       Kind       `json:"kind"`
	Label      string     `json:"label"`
	Color      string     `json:"color"`
	Interval   Interval   `json:"interval"`
	Attributes Attributes `json:"attributes"`
}

// Summary describes a document or an aggregate of documents.
type Summary struct {
	TotalItems int    `json:"totalItems"`
	Kinds      []Kind `json:"kinds"`
}

// Warning is a non-fatal diagnostic raised while normalizing.
type Warning struct {
	Section  string `json:"section"`
	Position string `json:"position"`
	Message  string `json:"message"`
	Err      error  `json:"-"`
}

// TimelineDocument is the normalized form of one input file. Items are
// ordered most recent first; a document always has at least one item.
type TimelineDocument struct {
	Items    []ClaimItem `json:"items"`
	Span     Interval    `json:"span"`
	Summary  Summary     `json:"summary"`
	Warnings []Warning   `json:"warnings,omitempty"`
}
