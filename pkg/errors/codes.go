package errors

import "net/http"

// ErrorCode identifies a failure category. Codes are namespaced by module:
// "<MODULE>_<NNN>".
type ErrorCode string

func (c ErrorCode) String() string { return string(c) }

// Infrastructure and transport codes.
const (
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeBadRequest         ErrorCode = "COMMON_002"
	ErrCodeNotFound           ErrorCode = "COMMON_005"
	ErrCodeConflict           ErrorCode = "COMMON_006"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_008"
	ErrCodeTimeout            ErrorCode = "COMMON_009"
	ErrCodeValidation         ErrorCode = "COMMON_010"
	ErrCodeSerialization      ErrorCode = "COMMON_011"
	ErrCodeDatabaseError      ErrorCode = "COMMON_012"
	ErrCodeCacheError         ErrorCode = "COMMON_013"
	ErrCodeStorageError       ErrorCode = "COMMON_014"
	ErrCodeMessagingError     ErrorCode = "COMMON_015"
	ErrCodeConfigError        ErrorCode = "COMMON_016"
)

// Short aliases used at call sites.
const (
	CodeInternal     = ErrCodeInternal
	CodeInvalidParam = ErrCodeBadRequest
	CodeNotFound     = ErrCodeNotFound
	CodeConflict     = ErrCodeConflict
	CodeOK           = ErrorCode("OK")
	CodeUnknown      = ErrorCode("UNKNOWN")
)

// Material analytics codes.
//
// InputPrecondition failures abort the computation and go back to the
// caller. DegenerateData conditions are normally absorbed by the analytics
// with a fallback value; the code exists for ingestion, which rejects
// catalogs that cannot be analysed at all.
const (
	ErrCodeInputPrecondition ErrorCode = "MAT_001"
	ErrCodeDegenerateData    ErrorCode = "MAT_002"

	ErrCodeCatalogNotFound   ErrorCode = "MAT_010"
	ErrCodeCatalogParseError ErrorCode = "MAT_011"
	ErrCodeCatalogEmpty      ErrorCode = "MAT_012"
	ErrCodeUnknownProperty   ErrorCode = "MAT_013"
)

type codeInfo struct {
	status  int
	message string
}

var registry = map[ErrorCode]codeInfo{
	ErrCodeInternal:           {http.StatusInternalServerError, "internal server error"},
	ErrCodeBadRequest:         {http.StatusBadRequest, "bad request"},
	ErrCodeNotFound:           {http.StatusNotFound, "resource not found"},
	ErrCodeConflict:           {http.StatusConflict, "resource conflict"},
	ErrCodeServiceUnavailable: {http.StatusServiceUnavailable, "service unavailable"},
	ErrCodeTimeout:            {http.StatusGatewayTimeout, "request timeout"},
	ErrCodeValidation:         {http.StatusBadRequest, "validation failed"},
	ErrCodeSerialization:      {http.StatusBadRequest, "serialization error"},
	ErrCodeDatabaseError:      {http.StatusInternalServerError, "database error"},
	ErrCodeCacheError:         {http.StatusInternalServerError, "cache error"},
	ErrCodeStorageError:       {http.StatusBadGateway, "object storage error"},
	ErrCodeMessagingError:     {http.StatusBadGateway, "messaging error"},
	ErrCodeConfigError:        {http.StatusInternalServerError, "configuration error"},

	ErrCodeInputPrecondition: {http.StatusUnprocessableEntity, "input precondition violated"},
	ErrCodeDegenerateData:    {http.StatusUnprocessableEntity, "degenerate data"},
	ErrCodeCatalogNotFound:   {http.StatusNotFound, "material catalog not found"},
	ErrCodeCatalogParseError: {http.StatusBadRequest, "failed to parse material catalog"},
	ErrCodeCatalogEmpty:      {http.StatusUnprocessableEntity, "material catalog is empty"},
	ErrCodeUnknownProperty:   {http.StatusBadRequest, "unknown material property"},
}

// HTTPStatusForCode returns the HTTP status for code, 500 when unregistered.
func HTTPStatusForCode(code ErrorCode) int {
	if info, ok := registry[code]; ok {
		return info.status
	}
	return http.StatusInternalServerError
}

// DefaultMessageForCode returns the public message for code.
func DefaultMessageForCode(code ErrorCode) string {
	if info, ok := registry[code]; ok {
		return info.message
	}
	return "unknown error"
}

// IsClientError reports whether code maps to a 4xx status.
func IsClientError(code ErrorCode) bool {
	s := HTTPStatusForCode(code)
	return s >= 400 && s < 500
}
