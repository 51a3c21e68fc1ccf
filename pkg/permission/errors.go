package permission

import "errors"

var (
	// ErrDefinitionNotFound indicates the permission id is absent from the
	// catalog. Checks resolve this to a deny; the error exists for callers
	// inspecting the catalog directly.
	ErrDefinitionNotFound = errors.New("permission.definition_not_found")

	// ErrInvalidDefinition indicates a catalog entry is malformed.
	ErrInvalidDefinition = errors.New("permission.invalid_definition")
)
