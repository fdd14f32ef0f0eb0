package rpc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyMethodName(t *testing.T) {
	assert.Equal(t, KindNotification, ClassifyMethodName("subscribeEvents"))
	assert.Equal(t, KindNotification, ClassifyMethodName("subscribe"))
	assert.Equal(t, KindCall, ClassifyMethodName("SubscribeEvents"))
	assert.Equal(t, KindCall, ClassifyMethodName("GetPerson"))
	assert.Equal(t, KindCall, ClassifyMethodName("unsubscribe"))
}

func TestParseMethodKind(t *testing.T) {
	kind, ok := ParseMethodKind(" Notification ")
	assert.True(t, ok)
	assert.Equal(t, KindNotification, kind)

	kind, ok = ParseMethodKind("call")
	assert.True(t, ok)
	assert.Equal(t, KindCall, kind)

	_, ok = ParseMethodKind("stream")
	assert.False(t, ok)
}
