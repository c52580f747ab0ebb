package tx

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNoop_Do(t *testing.T) {
	called := false
	err := Noop{}.Do(context.Background(), func(ctx context.Context) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	require.True(t, called)

	want := errors.New("boom")
	require.ErrorIs(t, Noop{}.Do(context.Background(), func(ctx context.Context) error { return want }), want)
}
