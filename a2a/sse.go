package a2a

import (
	"bufio"
	"context"
	"io"
	"strings"
)

// sseEvent is one dispatched Server-Sent Event: its data lines joined by
// "\n", per the SSE spec. event/id fields are ignored by this library
// (§4.10), so only the joined data is kept.
type sseEvent struct {
	data string
}

// readSSE reads an SSE byte stream from r, calling handle once per
// dispatched event, until r is exhausted, ctx is canceled, or handle
// returns false (to stop early). Buffered data still pending at stream
// end is dispatched as a final event before returning.
//
// Parsing rules (strict, per §4.10): split on "\n"; successive "data:"
// lines within one event are concatenated with "\n", trimming exactly one
// leading space from each; a blank line terminates and dispatches the
// event; lines starting with ":" are comments; "event:" and "id:" lines
// are recognized and ignored.
func readSSE(ctx context.Context, r io.Reader, handle func(sseEvent) bool) error {
	br := bufio.NewReader(r)
	var dataLines []string

	dispatch := func() bool {
		if len(dataLines) == 0 {
			return true
		}
		event := sseEvent{data: strings.Join(dataLines, "\n")}
		dataLines = nil
		return handle(event)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line, err := br.ReadString('\n')
		line = strings.TrimRight(line, "\r\n")

		switch {
		case line == "":
			if !dispatch() {
				return nil
			}
		case strings.HasPrefix(line, ":"):
			// comment, ignored
		case strings.HasPrefix(line, "event:"), strings.HasPrefix(line, "id:"):
			// event/id framing, not interpreted by this consumer
		case strings.HasPrefix(line, "data:"):
			value := strings.TrimPrefix(line, "data:")
			if strings.HasPrefix(value, " ") {
				value = value[1:]
			}
			dataLines = append(dataLines, value)
		}

		if err != nil {
			if err == io.EOF {
				dispatch()
				return nil
			}
			return err
		}
	}
}
