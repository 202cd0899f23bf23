package circuitbreaker

import (
	"errors"
	"testing"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/harvest-keeper/internal/apperror"
)

func TestExecute_OpensAfterConsecutiveFailures(t *testing.T) {
	cfg := DefaultConfig("test")
	cfg.ConsecutiveFailures = 2

	var transitions []gobreaker.State
	cfg.OnStateChange = func(_ string, _, to gobreaker.State) {
		transitions = append(transitions, to)
	}
	cb := New[int](cfg)

	boom := errors.New("boom")
	for i := 0; i < 2; i++ {
		_, err := cb.Execute(func() (int, error) { return 0, boom })
		require.ErrorIs(t, err, boom)
	}

	assert.Equal(t, gobreaker.StateOpen, cb.State())
	assert.Equal(t, []gobreaker.State{gobreaker.StateOpen}, transitions)

	calls := 0
	_, err := cb.Execute(func() (int, error) {
		calls++
		return 1, nil
	})
	assert.Zero(t, calls)
	assert.True(t, apperror.HasCode(err, apperror.CodeCircuitOpen))
}

func TestExecute_PassesThroughSuccess(t *testing.T) {
	cb := New[string](DefaultConfig("ok"))

	v, err := cb.Execute(func() (string, error) { return "fine", nil })
	require.NoError(t, err)
	assert.Equal(t, "fine", v)
	assert.Equal(t, gobreaker.StateClosed, cb.State())
}
