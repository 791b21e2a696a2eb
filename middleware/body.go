package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"

	"github.com/dmitrymomot/relay/core/pipeline"
	"github.com/dmitrymomot/relay/core/request"
	"github.com/dmitrymomot/relay/core/response"
)

type bodyKey struct{}
type rawBodyKey struct{}
type bodyParsedMark struct{}

// BodyKey is the default key the parsed body is stored under.
var BodyKey any = bodyKey{}

// BodyParserConfig configures BodyParser.
type BodyParserConfig struct {
	// Key stores the parsed body. Defaults to BodyKey.
	Key any
	// MaxSize rejects bodies larger than this many bytes with 413. Zero
	// means unlimited.
	MaxSize int64
}

type bodyResult struct {
	raw      []byte
	complete bool
	tooLarge bool
}

// BodyParser buffers the streamed request body and parses it as JSON once
// the final chunk arrives. A body that is empty or not valid JSON parses
// to an empty map. The step does its work at most once per request, so it
// is safe to register more than once.
func BodyParser(cfg BodyParserConfig) pipeline.Step {
	key := cfg.Key
	if key == nil {
		key = BodyKey
	}

	return func(res *response.Handle, req *request.Context) error {
		if !req.Mark(bodyParsedMark{}) {
			return nil
		}

		done := make(chan bodyResult, 1)
		go func() {
			var (
				buf    bytes.Buffer
				result bodyResult
			)
			res.OnData(func(chunk []byte, last bool) {
				if !result.tooLarge {
					if cfg.MaxSize > 0 && int64(buf.Len()+len(chunk)) > cfg.MaxSize {
						result.tooLarge = true
						buf.Reset()
					} else {
						buf.Write(chunk)
					}
				}
				if last {
					result.complete = true
				}
			})
			result.raw = buf.Bytes()
			done <- result
		}()

		var result bodyResult
		select {
		case result = <-done:
		case <-req.Done():
			return bodyInterrupted(req)
		}

		switch {
		case result.tooLarge:
			return res.Send(ErrBodyTooLarge.Status, ErrBodyTooLarge)
		case !result.complete:
			if req.Err() != nil {
				return bodyInterrupted(req)
			}
			return ErrBodyAborted
		}

		req.SetValue(rawBodyKey{}, result.raw)
		req.SetValue(key, parseJSON(result.raw))
		return nil
	}
}

func bodyInterrupted(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ErrBodyTimeout
	}
	return ErrBodyAborted
}

func parseJSON(raw []byte) any {
	var v any
	if len(raw) == 0 || json.Unmarshal(raw, &v) != nil || v == nil {
		return map[string]any{}
	}
	return v
}

// GetBody returns the body parsed by a BodyParser using BodyKey.
func GetBody(req *request.Context) (any, bool) {
	return GetBodyFrom(req, BodyKey)
}

// GetBodyFrom returns the body parsed by a BodyParser configured with key.
func GetBodyFrom(req *request.Context, key any) (any, bool) {
	v := req.Value(key)
	return v, v != nil
}

// GetRawBody returns the unparsed body bytes.
func GetRawBody(req *request.Context) ([]byte, bool) {
	b, ok := req.Value(rawBodyKey{}).([]byte)
	return b, ok
}
