package notify

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCenter_NoticesRetained(t *testing.T) {
	c := NewCenter(nil)

	c.Notice("stream interrupted")
	c.Notice("reconnected")

	recent := c.Recent()
	assert.Len(t, recent, 2)
	assert.Equal(t, "stream interrupted", recent[0].Message)
	assert.Equal(t, "reconnected", recent[1].Message)
	assert.False(t, recent[0].Timestamp.IsZero())
}

func TestCenter_HistoryBounded(t *testing.T) {
	c := NewCenter(nil)

	for i := 0; i < maxNotices+10; i++ {
		c.Notice(fmt.Sprintf("notice %d", i))
	}

	recent := c.Recent()
	assert.Len(t, recent, maxNotices)
	assert.Equal(t, "notice 10", recent[0].Message)
}

func TestCenter_Indicator(t *testing.T) {
	c := NewCenter(nil)
	assert.False(t, c.Indicator())

	c.SetIndicator(true)
	assert.True(t, c.Indicator())

	c.SetIndicator(false)
	assert.False(t, c.Indicator())
}
