package stage

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestZeroResultIsInvalid(t *testing.T) {
	var r Result
	assert.False(t, r.Valid(), "the zero Result must be detectable as a contract violation")
}

func TestConstructorShapes(t *testing.T) {
	t.Run("continue", func(t *testing.T) {
		r := Continue("st")
		assert.True(t, r.Valid())
		assert.False(t, r.Stopped())
		assert.False(t, r.HasOutput())
		assert.Equal(t, "st", r.State())
		assert.Zero(t, r.Timeout())
	})

	t.Run("continue with timeout", func(t *testing.T) {
		r := ContinueAfter("st", 50*time.Millisecond)
		assert.True(t, r.Valid())
		assert.Equal(t, 50*time.Millisecond, r.Timeout())
	})

	t.Run("emit", func(t *testing.T) {
		r := Emit("st", "out")
		assert.True(t, r.HasOutput())
		assert.Equal(t, "out", r.Output())
		assert.False(t, r.Stopped())
	})

	t.Run("emit with timeout", func(t *testing.T) {
		r := EmitAfter("st", "out", time.Millisecond)
		assert.True(t, r.HasOutput())
		assert.Equal(t, time.Millisecond, r.Timeout())
	})

	t.Run("stop", func(t *testing.T) {
		boom := errors.New("boom")
		r := Stop("st", boom)
		assert.True(t, r.Stopped())
		assert.Equal(t, boom, r.StopReason())
	})
}

func TestSyncResultReply(t *testing.T) {
	r := Reply("st", 42)
	v, ok := r.ReplyValue()
	assert.True(t, ok)
	assert.Equal(t, 42, v)
	assert.False(t, r.Stopped())

	n := NoReply("st")
	_, ok = n.ReplyValue()
	assert.False(t, ok)

	s := StopReply("st", nil, "bye")
	v, ok = s.ReplyValue()
	assert.True(t, ok)
	assert.Equal(t, "bye", v)
	assert.True(t, s.Stopped())

	e := ReplyEmit("st", "ack", "out")
	assert.True(t, e.HasOutput())
	v, ok = e.ReplyValue()
	assert.True(t, ok)
	assert.Equal(t, "ack", v)
}

func TestBaseDefaults(t *testing.T) {
	var b Base

	state, err := b.Init(nil)
	assert.NoError(t, err)
	assert.Nil(t, state)

	assert.True(t, b.HandleInput("x", "st", 0).Valid())
	assert.Equal(t, "st", b.HandleInput("x", "st", 0).State())
	assert.True(t, b.HandleInputsDone("st").Valid())
	assert.True(t, b.HandleTimeout("st").Valid())
	assert.True(t, b.HandleEvent("e", "st").Valid())
	assert.True(t, b.HandleSyncEvent("e", "st").Valid())
	assert.True(t, b.HandleInfo("i", "st").Valid())
}
