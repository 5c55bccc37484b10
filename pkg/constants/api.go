package constants

// HTTP header names
const (
	HeaderAuthorization = "Authorization"
	HeaderContentType   = "Content-Type"
)

// JSON response envelope keys
const (
	ResponseError = "error"
	ResponseData  = "data"
	FieldMessage  = "message"
)

// Gin context keys
const (
	ContextKeyUser = "user"
)

// Pagination defaults for list endpoints
const (
	DefaultPageSize = 20
	MaxPageSize     = 200
)
