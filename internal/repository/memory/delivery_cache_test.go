package memory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDeliveryCacheMarksOnce(t *testing.T) {
	c := NewDeliveryCache(time.Minute)

	assert.True(t, c.MarkIfNew("stage-completed:item:1"))
	assert.False(t, c.MarkIfNew("stage-completed:item:1"))
	assert.True(t, c.MarkIfNew("stage-completed:item:2"))
	assert.Equal(t, 2, c.Len())

	c.Forget("stage-completed:item:1")
	assert.True(t, c.MarkIfNew("stage-completed:item:1"))
}
