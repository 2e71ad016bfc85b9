package marketdata

import "context"

// StreamingSource serves snapshots from the live websocket stream, falling
// back to the HTTP client while no tick has arrived (or when no stream is
// configured).
type StreamingSource struct {
	stream *Stream
	client *Client
}

// NewStreamingSource builds a source preferring stream ticks over fetches.
// stream may be nil; every snapshot then comes from the client.
func NewStreamingSource(stream *Stream, client *Client) *StreamingSource {
	return &StreamingSource{stream: stream, client: client}
}

// Conditions returns the latest stream tick if one has arrived, otherwise a
// fresh HTTP fetch.
func (s *StreamingSource) Conditions(ctx context.Context) (Conditions, error) {
	if s.stream != nil {
		if tick, ok := s.stream.Latest(); ok {
			return tick, nil
		}
	}
	return s.client.Conditions(ctx)
}
