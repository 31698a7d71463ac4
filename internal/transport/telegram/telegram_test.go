package telegram

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plantit/internal/transport"
	logx "plantit/pkg/logx"
)

func TestSplitText(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		in    string
		limit int
		want  []string
	}{
		{name: "short", in: "hello", limit: 10, want: []string{"hello"}},
		{name: "empty", in: "", limit: 10, want: []string{""}},
		{name: "hard cut", in: "abcdefghij", limit: 4, want: []string{"abcd", "efgh", "ij"}},
		{name: "prefers newline", in: "aaaa\nbbbbbb", limit: 8, want: []string{"aaaa", "bbbbbb"}},
		{name: "multibyte", in: strings.Repeat("🌱", 5), limit: 2, want: []string{"🌱🌱", "🌱🌱", "🌱"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, splitText(tc.in, tc.limit))
		})
	}
}

func TestInlineMarkup(t *testing.T) {
	t.Parallel()

	assert.Nil(t, inlineMarkup(nil))

	rm := inlineMarkup([][]transport.Button{{{Text: "Complete", Data: "complete|x"}, {Text: "Snooze", Data: "snooze|x"}}})
	require.NotNil(t, rm)
	require.Len(t, rm.InlineKeyboard, 1)
	require.Len(t, rm.InlineKeyboard[0], 2)
	assert.Equal(t, "Snooze", rm.InlineKeyboard[0][1].Text)
	assert.Equal(t, "complete|x", rm.InlineKeyboard[0][0].Data)
}

func TestNew_RequiresToken(t *testing.T) {
	t.Parallel()
	_, err := New(Config{Token: "  "}, logx.Nop())
	assert.Error(t, err)
}
