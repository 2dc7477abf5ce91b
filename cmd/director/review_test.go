package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouterDeclinesLinesWithoutPendingReview(t *testing.T) {
	router := &inputRouter{}
	assert.False(t, router.route("hello"), "chat lines stay with the chat loop")
}

func TestReviewOwnsInputWhilePending(t *testing.T) {
	router := &inputRouter{}
	reviewer := &stdinReviewer{router: router}

	type outcome struct {
		text   string
		accept bool
		err    error
	}
	results := make(chan outcome, 1)
	go func() {
		text, accept, err := reviewer.Review(context.Background(), "the draft")
		results <- outcome{text, accept, err}
	}()

	// Once the prompt is up, typed lines answer the review instead of
	// being sent as chat messages.
	require.Eventually(t, func() bool {
		return router.route("s")
	}, 2*time.Second, 10*time.Millisecond)

	select {
	case res := <-results:
		require.NoError(t, res.err)
		assert.False(t, res.accept, "skip must suppress the direction")
		assert.Empty(t, res.text)
	case <-time.After(2 * time.Second):
		t.Fatal("review never finished")
	}

	// With the review over, input flows back to the chat loop.
	assert.False(t, router.route("back to chat"))
}

func TestReviewEditRoutesReplacement(t *testing.T) {
	router := &inputRouter{}
	reviewer := &stdinReviewer{router: router}

	type outcome struct {
		text   string
		accept bool
		err    error
	}
	results := make(chan outcome, 1)
	go func() {
		text, accept, err := reviewer.Review(context.Background(), "the draft")
		results <- outcome{text, accept, err}
	}()

	require.Eventually(t, func() bool {
		return router.route("e")
	}, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		return router.route("a sharper direction")
	}, 2*time.Second, 10*time.Millisecond)

	select {
	case res := <-results:
		require.NoError(t, res.err)
		assert.True(t, res.accept)
		assert.Equal(t, "a sharper direction", res.text)
	case <-time.After(2 * time.Second):
		t.Fatal("review never finished")
	}
}

func TestReviewCancelledReleasesInput(t *testing.T) {
	router := &inputRouter{}
	reviewer := &stdinReviewer{router: router}

	ctx, cancel := context.WithCancel(context.Background())
	results := make(chan error, 1)
	go func() {
		_, _, err := reviewer.Review(ctx, "the draft")
		results <- err
	}()

	cancel()
	select {
	case err := <-results:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("review did not observe cancellation")
	}
	assert.False(t, router.route("hello"), "input returns to the chat loop")
}
