package channels

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncateLeavesShortTextUnchanged(t *testing.T) {
	assert.Equal(t, "hello", truncate("hello", slackTextLimit))
}

func TestTruncateShortensLongTextWithEllipsis(t *testing.T) {
	long := strings.Repeat("a", slackTextLimit+50)
	out := truncate(long, slackTextLimit)
	assert.Len(t, []rune(out), slackTextLimit)
	assert.True(t, strings.HasSuffix(out, "…"))
}

func TestTruncateIsUnicodeSafe(t *testing.T) {
	// multi-byte runes must not be split mid-codepoint
	long := strings.Repeat("é", 200)
	out := truncate(long, 10)
	assert.Equal(t, 10, len([]rune(out)))
	for _, r := range out {
		assert.NotEqual(t, rune(0xFFFD), r, "should not produce a replacement character from a split rune")
	}
}
