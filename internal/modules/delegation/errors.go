package delegation

import "errors"

var (
	ErrGrantNotFound      = errors.New("delegation grant not found")
	ErrAlreadyRevoked     = errors.New("delegation grant already revoked")
	ErrAssessmentNotFound = errors.New("assessment not found")
	ErrNotAuthorized      = errors.New("not authorized to manage delegations")
)
