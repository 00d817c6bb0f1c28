package payroll

const (
	StatusUnpaid Status = "Unpaid"
	StatusPaid   Status = "Paid"

	StatusFilterAll    StatusFilter = "all"
	StatusFilterPaid   StatusFilter = "paid"
	StatusFilterUnpaid StatusFilter = "unpaid"

	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"

	DerivationSupplied = "supplied"
	DerivationComputed = "computed"

	IdentityPrefix      = "GO"
	UnknownEmployeeName = "Unknown Employee"

	DropReasonSampleGroup = "sample_group"
	DropReasonMarker      = "marker_identity"
	DropReasonBlank       = "blank_row"
)

// Identity markers and group markers are matched case-sensitively.
var (
	identityExclusionMarkers = []string{"DUMMY", "SAMPLE"}
	groupExclusionMarker     = "Sample"
)
