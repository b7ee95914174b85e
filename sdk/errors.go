package sdk

// SDKError is the normalized failure of a node API call: the method that
// failed plus the status detail reported by the node or the transport.
type SDKError struct {
	Method string
	Detail string
	Err    error
}

func (e *SDKError) Error() string {
	return e.Method + ": " + e.Detail
}

func (e *SDKError) Unwrap() error {
	return e.Err
}
