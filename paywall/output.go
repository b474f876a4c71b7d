// Package paywall implements the credit-settlement engine (C6): it wraps a
// handler so that, after the handler runs, the resolved credit cost is
// redeemed against the facilitator and the outcome merged into the
// handler's result.
package paywall

// HandlerOutput is the tagged union a wrapped handler returns: either a
// single Value or a Stream of incremental items. Settlement timing differs
// between the two (§C6): a Value settles immediately after the handler
// returns; a Stream settles once the stream has been fully drained.
type HandlerOutput interface {
	isHandlerOutput()
}

// ValueOutput is a handler's unary result.
type ValueOutput struct {
	Value interface{}
}

func (ValueOutput) isHandlerOutput() {}

// Value wraps v as a unary HandlerOutput.
func Value(v interface{}) HandlerOutput {
	return ValueOutput{Value: v}
}

// StreamItem is one increment of a streamed result. A non-nil Err marks the
// final item of a failed stream; no further items follow it.
type StreamItem struct {
	Value interface{}
	Err   error
}

// StreamOutput is a handler's incremental result.
type StreamOutput struct {
	Items <-chan StreamItem
}

func (StreamOutput) isHandlerOutput() {}

// Stream wraps items as a streaming HandlerOutput.
func Stream(items <-chan StreamItem) HandlerOutput {
	return StreamOutput{Items: items}
}
