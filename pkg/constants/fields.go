package constants

// Common field keys shared across tables and API payloads.
const (
	FieldID           = "id"
	FieldName         = "name"
	FieldCode         = "code"
	FieldStatus       = "status"
	FieldCreatedDate  = "created_date"
	FieldModifiedDate = "last_modified_date"
)

// Sort directions
const (
	SortASC  = "ASC"
	SortDESC = "DESC"
)
