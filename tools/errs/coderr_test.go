package errs

import (
	"fmt"
	"testing"

	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodeErrorIsMatchesByCode(t *testing.T) {
	err := ErrAlreadyJoined.WrapMsg("join rejected", "clientId", "a1", "channelId", "c1")

	assert.True(t, ErrAlreadyJoined.Is(err))
	assert.False(t, ErrNotJoined.Is(err))
	assert.Contains(t, err.Error(), "1002 AlreadyJoined join rejected, clientId=a1, channelId=c1")
}

func TestCodeErrorSurvivesWrapping(t *testing.T) {
	inner := ErrMalformedFrame.WrapMsg("unknown action", "action", "dance")
	outer := fmt.Errorf("handle frame: %w", pkgerrors.Wrap(inner, "dispatch"))

	code, ok := AsCode(outer)
	require.True(t, ok)
	assert.Equal(t, CodeMalformedFrame, code.Code)
	assert.Equal(t, "unknown action, action=dance", code.Detail)
}

func TestWithDetailAppends(t *testing.T) {
	e := ErrInvalidChannel.WithDetail("missing").WithDetail("not a string")
	assert.Equal(t, "missing, not a string", e.Detail)
	assert.Equal(t, "", ErrInvalidChannel.Detail)
}

func TestWrapNil(t *testing.T) {
	assert.NoError(t, Wrap(nil))
	assert.NoError(t, WrapMsg(nil, "x"))
}
