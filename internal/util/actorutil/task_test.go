package actorutil

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBackgroundTaskDeliversResult(t *testing.T) {

	require := require.New(t)

	var got int
	NewBackgroundTask(nil, func() (*int, error) {
		v := 7
		return &v, nil
	}).OnSuccess(func(v int) {
		got = v
	}).Run()

	require.Equal(7, got)
}

func TestBackgroundTaskDeliversRecoveredValue(t *testing.T) {

	require := require.New(t)

	var got *int
	NewBackgroundTask(nil, func() (*int, error) {
		return nil, errors.New("boom")
	}).Recover(func(err error) int {
		return 42
	}).OnSuccess(func(v int) {
		got = &v
	}).Run()

	require.NotNil(got, "recovered value must reach the success handler")
	require.Equal(42, *got)
}

func TestBackgroundTaskOnErrorSkipsSuccess(t *testing.T) {

	require := require.New(t)

	var gotErr error
	called := false
	NewBackgroundTask(nil, func() (*int, error) {
		return nil, errors.New("boom")
	}).OnError(func(err error) {
		gotErr = err
	}).OnSuccess(func(v int) {
		called = true
	}).Run()

	require.Error(gotErr)
	require.False(called)
}
