package llm

import "errors"

// ConnectivityError marks network-class failures: connect/read/write
// timeouts, connection errors, and 5xx responses. These are retried
// and, on the
// autonomous call sites, feed the cooldown. Application errors such as
// a bad response shape are not connectivity errors.
type ConnectivityError struct {
	Err error
}

func (e *ConnectivityError) Error() string {
	return "connectivity: " + e.Err.Error()
}

func (e *ConnectivityError) Unwrap() error {
	return e.Err
}

func IsConnectivity(err error) bool {
	var ce *ConnectivityError
	return errors.As(err, &ce)
}
