package i18n

// Error codes must match the codes defined in internal/platform/errors/codes.go.
// These are duplicated as strings to avoid an import cycle.
const (
	CodeNoPolicyDefined             = "NO_POLICY_DEFINED"
	CodePolicyRulesEmpty            = "POLICY_RULES_EMPTY"
	CodeInsufficientCandidates      = "INSUFFICIENT_CANDIDATES"
	CodeScheduleExists              = "SCHEDULE_EXISTS"
	CodeConfirmedScheduleImmutable  = "CONFIRMED_SCHEDULE_IMMUTABLE"
	CodeDuplicateActiveRequest      = "DUPLICATE_ACTIVE_REQUEST"
	CodeInvalidTransition           = "INVALID_TRANSITION"
	CodeYearInvalid                 = "YEAR_INVALID"
	CodeHouseholdIDEmpty            = "HOUSEHOLD_ID_EMPTY"
	CodeReasonEmpty                 = "REASON_EMPTY"
	CodeApproverIDEmpty             = "APPROVER_ID_EMPTY"
	CodeStatusInvalid               = "STATUS_INVALID"
	CodeNotFound                    = "NOT_FOUND"
)

var enUSCatalog = &Catalog{
	locale: "en-US",
	messages: map[Code]string{
		// Policy errors
		CodeNoPolicyDefined:  "No rotation policy has been published yet",
		CodePolicyRulesEmpty: "A rotation policy needs at least one ranking rule and one exclusion condition",

		// Scheduling errors
		CodeInsufficientCandidates:     "Only {{.CandidateCount}} household(s) are eligible; at least 2 are required",
		CodeScheduleExists:             "A leader schedule already exists for year {{.Year}}",
		CodeConfirmedScheduleImmutable: "The schedule for year {{.Year}} is confirmed and cannot be recalculated",

		// Exemption errors
		CodeDuplicateActiveRequest: "Household {{.HouseholdID}} already has an active exemption request for year {{.Year}}",

		// Lifecycle errors
		CodeInvalidTransition: "Cannot transition from {{.FromStatus}} to {{.ToStatus}}",

		// Validation errors
		CodeYearInvalid:      "A valid target year is required",
		CodeHouseholdIDEmpty: "Household ID cannot be empty",
		CodeReasonEmpty:      "A reason is required",
		CodeApproverIDEmpty:  "Approver ID cannot be empty",
		CodeStatusInvalid:    "Invalid status specified",

		// Storage errors
		CodeNotFound: "The requested record was not found",
	},
}
