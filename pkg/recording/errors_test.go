package recording

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAsError(t *testing.T) {
	t.Run("unwraps a wrapped coordinator error", func(t *testing.T) {
		inner := newError(KindValidation, MsgMissingUserID, nil)

		got := asError(fmt.Errorf("start: %w", inner), KindResource, MsgCreateDirFailed)
		assert.Same(t, inner, got)
		assert.Equal(t, KindValidation, got.Kind)
	})

	t.Run("wraps a foreign error under the fallback kind", func(t *testing.T) {
		foreign := &fs.PathError{Op: "mkdir", Path: "/x", Err: fs.ErrPermission}

		got := asError(foreign, KindResource, MsgCreateDirFailed)
		require.NotNil(t, got)
		assert.Equal(t, KindResource, got.Kind)
		assert.Equal(t, MsgCreateDirFailed+": "+foreign.Error(), got.Error())
		assert.ErrorIs(t, got, fs.ErrPermission)
	})
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindConflict, KindOf(fmt.Errorf("wrapped: %w", newError(KindConflict, MsgAlreadyRecording, nil))))
	assert.Equal(t, ErrorKind(""), KindOf(errors.New("plain")))
	assert.True(t, errors.Is(newError(KindNative, "boom", nil), &Error{Kind: KindNative}))
}
