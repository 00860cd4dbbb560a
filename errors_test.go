package synchrophasor

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFrameCorruptErrorIsComparableViaErrorsAs(t *testing.T) {
	err := error(&FrameCorruptError{Reason: ReasonBadCRC})
	var corrupt *FrameCorruptError
	require.True(t, errors.As(err, &corrupt))
	require.Equal(t, ReasonBadCRC, corrupt.Reason)
	require.Contains(t, corrupt.Error(), "bad_crc")
}

func TestInvalidConfigErrorMessage(t *testing.T) {
	err := &InvalidConfigError{Field: "TIME_BASE"}
	require.Contains(t, err.Error(), "TIME_BASE")
}

func TestCorruptReasonString(t *testing.T) {
	require.Equal(t, "bad_sync", ReasonBadSync.String())
	require.Equal(t, "bad_length", ReasonBadLength.String())
	require.Equal(t, "bad_crc", ReasonBadCRC.String())
	require.Equal(t, "unknown", CorruptReason(99).String())
}
