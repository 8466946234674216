package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Policy errors
	CodeNoPolicyDefined  Code = "NO_POLICY_DEFINED"
	CodePolicyRulesEmpty Code = "POLICY_RULES_EMPTY"

	// Scheduling errors
	CodeInsufficientCandidates     Code = "INSUFFICIENT_CANDIDATES"
	CodeScheduleExists             Code = "SCHEDULE_EXISTS"
	CodeConfirmedScheduleImmutable Code = "CONFIRMED_SCHEDULE_IMMUTABLE"

	// Exemption errors
	CodeDuplicateActiveRequest Code = "DUPLICATE_ACTIVE_REQUEST"

	// Lifecycle errors
	CodeInvalidTransition Code = "INVALID_TRANSITION"

	// Validation errors
	CodeYearInvalid      Code = "YEAR_INVALID"
	CodeHouseholdIDEmpty Code = "HOUSEHOLD_ID_EMPTY"
	CodeReasonEmpty      Code = "REASON_EMPTY"
	CodeApproverIDEmpty  Code = "APPROVER_ID_EMPTY"
	CodeStatusInvalid    Code = "STATUS_INVALID"

	// Storage errors
	CodeNotFound Code = "NOT_FOUND"
)

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	// InvalidArgument - validation failures, bad input
	case CodeYearInvalid,
		CodeHouseholdIDEmpty,
		CodeReasonEmpty,
		CodeApproverIDEmpty,
		CodeStatusInvalid,
		CodePolicyRulesEmpty:
		return codes.InvalidArgument

	// FailedPrecondition - state doesn't allow operation
	case CodeNoPolicyDefined,
		CodeInsufficientCandidates,
		CodeInvalidTransition,
		CodeConfirmedScheduleImmutable:
		return codes.FailedPrecondition

	// AlreadyExists - uniqueness conflicts
	case CodeDuplicateActiveRequest,
		CodeScheduleExists:
		return codes.AlreadyExists

	// NotFound
	case CodeNotFound:
		return codes.NotFound

	default:
		return codes.Internal
	}
}
