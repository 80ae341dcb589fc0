package runner

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/aretw0/botflow/pkg/domain"
)

// TextHandler implements the standard text-based interface.
// Buttons and list rows are numbered; typing a number sends the option id.
type TextHandler struct {
	Reader *bufio.Reader
	Writer io.Writer
	Prompt string

	mu      sync.Mutex
	choices []string

	inputChan chan inputResult
	startOnce sync.Once
}

type inputResult struct {
	text string
	err  error
}

// NewTextHandler creates a handler for standard text IO.
func NewTextHandler(r io.Reader, w io.Writer) *TextHandler {
	if r == nil {
		r = os.Stdin
	}
	if w == nil {
		w = os.Stdout
	}
	return &TextHandler{
		Reader: bufio.NewReader(r),
		Writer: w,
		Prompt: "> ",
	}
}

// initPump starts the reader goroutine so Input can honour ctx while blocked.
func (h *TextHandler) initPump() {
	h.startOnce.Do(func() {
		h.inputChan = make(chan inputResult)
		go h.pump()
	})
}

func (h *TextHandler) pump() {
	defer close(h.inputChan)
	for {
		text, err := h.Reader.ReadString('\n')
		// If we got text (even with EOF), send it
		if text != "" {
			h.inputChan <- inputResult{text: text}
		}
		if err != nil {
			if err != io.EOF {
				h.inputChan <- inputResult{err: err}
			}
			return
		}
	}
}

func (h *TextHandler) Output(ctx context.Context, resp *domain.StageResponse) error {
	for _, m := range resp.LeadingMessages {
		fmt.Fprintln(h.Writer, strings.TrimSpace(m))
	}
	if resp.Message != "" {
		fmt.Fprintln(h.Writer, strings.TrimSpace(resp.Message))
	}

	var choices []string
	if in := resp.Interactive; in != nil {
		switch in.Type {
		case domain.InteractiveButtons:
			for i, b := range in.Buttons {
				fmt.Fprintf(h.Writer, "  [%d] %s\n", i+1, b.Text)
				choices = append(choices, b.ID)
			}
		case domain.InteractiveList:
			if in.List != nil {
				if in.List.ButtonText != "" {
					fmt.Fprintf(h.Writer, "  (%s)\n", in.List.ButtonText)
				}
				for _, sec := range in.List.Sections {
					if sec.Title != "" {
						fmt.Fprintf(h.Writer, "  %s\n", sec.Title)
					}
					for _, row := range sec.Rows {
						choices = append(choices, row.ID)
						line := fmt.Sprintf("    [%d] %s", len(choices), row.Title)
						if row.Description != "" {
							line += " - " + row.Description
						}
						fmt.Fprintln(h.Writer, line)
					}
				}
			}
		case domain.InteractiveMedia:
			if in.Media != nil {
				fmt.Fprintf(h.Writer, "  [%s] %s\n", in.Media.Type, in.Media.URL)
			}
		}
	}

	h.mu.Lock()
	h.choices = choices
	h.mu.Unlock()
	return nil
}

func (h *TextHandler) Input(ctx context.Context) (string, error) {
	h.initPump()

	for {
		// Only show prompt if context is not yet done
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
			fmt.Fprint(h.Writer, h.Prompt)
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case res, ok := <-h.inputChan:
			if !ok {
				return "", io.EOF
			}
			if res.err != nil {
				return "", res.err
			}
			text := strings.TrimSpace(res.text)
			if text == "" {
				continue
			}
			return h.resolveChoice(text), nil
		}
	}
}

// resolveChoice maps a number typed after a menu to the option id.
func (h *TextHandler) resolveChoice(text string) string {
	n, err := strconv.Atoi(text)
	if err != nil {
		return text
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if n < 1 || n > len(h.choices) {
		return text
	}
	return h.choices[n-1]
}

func (h *TextHandler) SystemOutput(ctx context.Context, msg string) error {
	fmt.Fprintf(h.Writer, "[system] %s\n", msg)
	return nil
}
