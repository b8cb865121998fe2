package modules

const (
	codeInvalidParams = -32602
	codeUnauthorized  = -32001
	codeServerError   = -32000
	codeStateConflict = -32040
	codeResourceLimit = -32041
	codeNotFound      = -32044
)

// ModuleError carries a module failure to the transport layer with the HTTP
// status and JSON-RPC code it should surface as.
type ModuleError struct {
	HTTPStatus int
	Code       int
	Message    string
	Data       interface{}
}

func (e *ModuleError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}
