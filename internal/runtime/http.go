package runtime

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/botflow/internal/compiler"
	"github.com/aretw0/botflow/pkg/domain"
)

// maxResponseBody bounds how much of an HTTP response is kept in the session.
const maxResponseBody = 1 << 20

func (e *Engine) httpRequest(ctx context.Context, x *execution, stage *compiler.Stage) (*domain.StageResponse, error) {
	data, err := payload[domain.HTTPRequestData](stage)
	if err != nil {
		return nil, err
	}
	res := &domain.StageResponse{NextStage: e.program.DefaultNext(stage.ID)}

	started := time.Now()
	body, callErr := e.doHTTP(ctx, x, data)
	e.emitExternalCall(ctx, x, stage, "http", time.Since(started), callErr)

	if callErr != nil {
		e.logger.Warn("HTTP request failed",
			"conversation_id", x.msg.ConversationID,
			"node_id", stage.Node.ID,
			"err", callErr,
		)
		if data.ResponseVariable != "" {
			failure := &domain.ExternalCallError{Kind: "http", NodeID: stage.Node.ID, Message: callErr.Error(), Err: callErr}
			res.SetVar(data.ResponseVariable, failure.Marker())
		}
		return res, nil
	}

	if data.ResponseVariable != "" {
		res.SetVar(data.ResponseVariable, body)
	}
	return res, nil
}

// doHTTP performs the call and returns the body as text: compact JSON when
// the body is JSON, raw otherwise.
func (e *Engine) doHTTP(ctx context.Context, x *execution, data *domain.HTTPRequestData) (string, error) {
	method := strings.ToUpper(strings.TrimSpace(data.Method))
	if method == "" {
		method = http.MethodGet
	}

	reqBody, err := e.renderBody(x, data.Body)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, e.httpTimeout(data.TimeoutMs))
	defer cancel()

	var reader io.Reader
	if reqBody != nil {
		reader = bytes.NewReader(reqBody)
	}
	req, err := http.NewRequestWithContext(ctx, method, x.render(data.URL), reader)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	for k, v := range data.Headers {
		req.Header.Set(k, x.render(v))
	}
	if reqBody != nil && req.Header.Get("Content-Type") == "" && json.Valid(reqBody) {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := e.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return "", fmt.Errorf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	if json.Valid(raw) {
		var buf bytes.Buffer
		if err := json.Compact(&buf, raw); err == nil {
			return buf.String(), nil
		}
	}
	return string(raw), nil
}

// renderBody templates a string body as a whole, or every string leaf of a
// structured body before encoding it as JSON.
func (e *Engine) renderBody(x *execution, body any) ([]byte, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case string:
		if b == "" {
			return nil, nil
		}
		return []byte(x.render(b)), nil
	default:
		out, err := json.Marshal(renderLeaves(x, b))
		if err != nil {
			return nil, fmt.Errorf("encode body: %w", err)
		}
		return out, nil
	}
}

func renderLeaves(x *execution, v any) any {
	switch t := v.(type) {
	case string:
		return x.render(t)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = renderLeaves(x, val)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = renderLeaves(x, val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = renderLeaves(x, val)
		}
		return out
	default:
		return v
	}
}

func (e *Engine) httpTimeout(ms int) time.Duration {
	if ms <= 0 {
		return e.maxHTTPTimeout
	}
	d := time.Duration(ms) * time.Millisecond
	if d > e.maxHTTPTimeout {
		return e.maxHTTPTimeout
	}
	return d
}

func (e *Engine) emitExternalCall(ctx context.Context, x *execution, stage *compiler.Stage, kind string, d time.Duration, err error) {
	if e.hooks.OnExternalCall == nil {
		return
	}
	e.hooks.OnExternalCall(ctx, &domain.ExternalCallEvent{
		EventBase: e.base(x),
		NodeID:    stage.Node.ID,
		Kind:      kind,
		Duration:  d,
		Err:       err,
	})
}
