package request

import "github.com/al002/psmoveclient/internal/protocol"

// Callback receives the outcome of a request exactly once. resp is the
// service's response when one arrived and nil when the request was resolved
// locally (ResultCanceled, ResultTimeout). Any per-request context belongs
// in the closure; the manager drops its reference once the callback ran.
type Callback func(result protocol.ResultCode, id protocol.RequestID, resp *protocol.Response)

// Discard is the explicit "don't care" callback.
func Discard(protocol.ResultCode, protocol.RequestID, *protocol.Response) {}

// Decoded adapts a callback that wants the response body decoded into T.
// decode only runs for ResultOK responses; any other outcome reaches fn
// with the zero T. A decode failure is reported as ResultError together
// with the decode error.
func Decoded[T any](decode func([]byte) (T, error), fn func(result protocol.ResultCode, id protocol.RequestID, value T, err error)) Callback {
	return func(result protocol.ResultCode, id protocol.RequestID, resp *protocol.Response) {
		var zero T
		if result != protocol.ResultOK || resp == nil {
			fn(result, id, zero, nil)
			return
		}

		value, err := decode(resp.Body)
		if err != nil {
			fn(protocol.ResultError, id, zero, err)
			return
		}
		fn(result, id, value, nil)
	}
}
