package utils

import (
	"testing"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
)

func TestSentryRunOptionsRecoversPanic(t *testing.T) {
	called := make(chan struct{})
	SentryRunOptions{
		RoutineName: "panicking routine",
		OnErrorFn:   func() { close(called) },
	}.Run(func(_ *sentry.Hub) {
		panic("boom")
	})

	select {
	case <-called:
	case <-time.After(5 * time.Second):
		t.Fatal("OnErrorFn was not called after panic")
	}
}

func TestSentryRunOptionsRunsFn(t *testing.T) {
	done := make(chan bool, 1)
	SentryRunOptions{RoutineName: "worker"}.Run(func(hub *sentry.Hub) {
		done <- hub != nil
	})

	select {
	case gotHub := <-done:
		assert.True(t, gotHub)
	case <-time.After(5 * time.Second):
		t.Fatal("routine did not run")
	}
}

func TestInitSentryEmptyDSN(t *testing.T) {
	assert.NoError(t, InitSentry("", "dev"))
}
