package runner

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/aretw0/botflow/pkg/domain"
)

// JSONHandler implements the IOHandler interface for JSON-Lines communication.
// Each response is written as one StageResponse object per line.
type JSONHandler struct {
	Reader  *bufio.Reader
	Encoder *json.Encoder
}

// NewJSONHandler creates a handler for JSON IO.
func NewJSONHandler(r io.Reader, w io.Writer) *JSONHandler {
	if r == nil {
		r = os.Stdin
	}
	if w == nil {
		w = os.Stdout
	}
	return &JSONHandler{
		Reader:  bufio.NewReader(r),
		Encoder: json.NewEncoder(w),
	}
}

func (h *JSONHandler) Output(ctx context.Context, resp *domain.StageResponse) error {
	return h.Encoder.Encode(resp)
}

// Input accepts a JSON string, an object with a "text" field, or raw text.
func (h *JSONHandler) Input(ctx context.Context) (string, error) {
	for {
		line, err := h.Reader.ReadString('\n')
		text := strings.TrimSpace(line)
		if text == "" {
			if err != nil {
				return "", err
			}
			continue
		}

		var s string
		if json.Unmarshal([]byte(text), &s) == nil {
			return s, nil
		}
		var obj struct {
			Text *string `json:"text"`
		}
		if json.Unmarshal([]byte(text), &obj) == nil && obj.Text != nil {
			return *obj.Text, nil
		}
		return text, nil
	}
}

func (h *JSONHandler) SystemOutput(ctx context.Context, msg string) error {
	return h.Encoder.Encode(map[string]string{"system": msg})
}
