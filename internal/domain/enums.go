package domain

// DocType classifies the source document.
type DocType string

const (
	DocTypeEOB          DocType = "eob"
	DocTypeProviderBill DocType = "provider_bill"
	DocTypeUnknown      DocType = "unknown"
)

// CodeTypeUnknown marks procedure codes whose coding system cannot be
// determined from flat tabular input.
const CodeTypeUnknown = "UNKNOWN"

// AdjustmentTypeContractual is the type assigned to adjustments derived from
// a flat adjustment column; richer sources may carry other types.
const AdjustmentTypeContractual = "contractual"
