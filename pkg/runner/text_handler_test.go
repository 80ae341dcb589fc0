package runner

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/aretw0/botflow/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextHandler_RendersList(t *testing.T) {
	out := &bytes.Buffer{}
	h := NewTextHandler(strings.NewReader("2\n9\n"), out)
	ctx := context.Background()

	err := h.Output(ctx, &domain.StageResponse{
		Message: "Pick a product",
		Interactive: &domain.InteractivePayload{
			Type: domain.InteractiveList,
			List: &domain.ListPayload{
				ButtonText: "Products",
				Sections: []domain.ListSection{
					{Title: "Plans", Rows: []domain.ListRow{
						{ID: "basic", Title: "Basic"},
						{ID: "pro", Title: "Pro", Description: "For teams"},
					}},
				},
			},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Pick a product\n  (Products)\n  Plans\n    [1] Basic\n    [2] Pro - For teams\n", out.String())

	got, err := h.Input(ctx)
	require.NoError(t, err)
	assert.Equal(t, "pro", got, "a number selects the row id")

	got, err = h.Input(ctx)
	require.NoError(t, err)
	assert.Equal(t, "9", got, "out-of-range numbers pass through")

	_, err = h.Input(ctx)
	assert.ErrorIs(t, err, io.EOF)
}

func TestTextHandler_RendersMediaAndLeading(t *testing.T) {
	out := &bytes.Buffer{}
	h := NewTextHandler(strings.NewReader(""), out)

	require.NoError(t, h.Output(context.Background(), &domain.StageResponse{
		LeadingMessages: []string{"One moment"},
		Message:         "Here is your invoice",
		Interactive: &domain.InteractivePayload{
			Type:  domain.InteractiveMedia,
			Media: &domain.Media{Type: "document", URL: "https://files.example.com/inv.pdf"},
		},
	}))
	assert.Equal(t, "One moment\nHere is your invoice\n  [document] https://files.example.com/inv.pdf\n", out.String())
}

func TestTextHandler_SkipsBlankLines(t *testing.T) {
	h := NewTextHandler(strings.NewReader("\n   \nhello"), &bytes.Buffer{})
	got, err := h.Input(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "hello", got)
}
