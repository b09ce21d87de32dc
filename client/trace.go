package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"net/url"
	"strconv"
)

// Trailers sent by the server after a trace body.
const (
	trailerHits      = "X-Trace-Hits"
	trailerTruncated = "X-Trace-Truncated"
)

// TraceService runs traces against the server.
type TraceService struct {
	c *Client
}

// traceLine is one NDJSON line: a hit, or an error that ended the stream.
type traceLine struct {
	TraceHit
	Error *APIError `json:"error,omitempty"`
}

func traceQuery(opts TraceOptions) url.Values {
	q := url.Values{}
	q.Set("terminal_label", opts.TerminalLabel)
	q.Set("min_contribution", strconv.FormatFloat(opts.MinContribution, 'g', -1, 64))
	if opts.Category != "" {
		q.Set("category", opts.Category)
	}
	if opts.Emit != "" {
		q.Set("emit", opts.Emit)
	}
	if opts.MaxDepth > 0 {
		q.Set("max_depth", strconv.Itoa(opts.MaxDepth))
	}
	if opts.MaxResults > 0 {
		q.Set("max_results", strconv.Itoa(opts.MaxResults))
	}
	return q
}

// Stream runs a trace and yields hits as the server produces them. Breaking
// out of the range closes the response body, which stops the trace on the
// server. A request error, or an error line sent after streaming began, is
// yielded once and ends the sequence.
func (s *TraceService) Stream(ctx context.Context, key string, opts TraceOptions) iter.Seq2[TraceHit, error] {
	return func(yield func(TraceHit, error) bool) {
		s.stream(ctx, key, opts, yield, nil)
	}
}

// Collect runs a trace and gathers every hit.
func (s *TraceService) Collect(ctx context.Context, key string, opts TraceOptions) (*TraceResult, error) {
	result := &TraceResult{}
	var streamErr error

	s.stream(ctx, key, opts, func(hit TraceHit, err error) bool {
		if err != nil {
			streamErr = err
			return false
		}
		result.Hits = append(result.Hits, hit)
		return true
	}, func(trailer http.Header) {
		result.Truncated = trailer.Get(trailerTruncated) == "true"
	})

	if streamErr != nil {
		return nil, streamErr
	}
	return result, nil
}

// stream performs the request and feeds yield. onTrailer, when set, sees the
// trailers after a body read to the end.
func (s *TraceService) stream(ctx context.Context, key string, opts TraceOptions,
	yield func(TraceHit, error) bool, onTrailer func(http.Header),
) {
	path := "/api/v1/trace/" + url.PathEscape(key) + "?" + traceQuery(opts).Encode()

	req, err := s.c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		yield(TraceHit{}, err)
		return
	}
	req.Header.Set("Accept", "application/x-ndjson")

	// The client-wide timeout would cut long streams off mid-body.
	hc := *s.c.httpClient
	hc.Timeout = 0

	resp, err := hc.Do(req)
	if err != nil {
		yield(TraceHit{}, fmt.Errorf("request failed: %w", err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		yield(TraceHit{}, parseAPIError(resp.StatusCode, body))
		return
	}

	dec := json.NewDecoder(resp.Body)
	for {
		var line traceLine
		if err := dec.Decode(&line); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			yield(TraceHit{}, fmt.Errorf("decode trace line: %w", err))
			return
		}

		if line.Error != nil {
			yield(TraceHit{}, line.Error)
			return
		}

		if !yield(line.TraceHit, nil) {
			return
		}
	}

	if onTrailer != nil {
		onTrailer(resp.Trailer)
	}
}
