package main

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
)

// inputRouter routes stdin between the chat loop and a pending review.
// There is exactly one stdin reader; while a review is pending the chat
// loop hands every line to the reviewer instead of treating it as a chat
// message.
type inputRouter struct {
	mu     sync.Mutex
	review chan string
	done   chan struct{}
}

// beginReview claims the input stream for a review.
func (r *inputRouter) beginReview() <-chan string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.review = make(chan string)
	r.done = make(chan struct{})
	return r.review
}

// endReview releases the input stream back to the chat loop.
func (r *inputRouter) endReview() {
	r.mu.Lock()
	defer r.mu.Unlock()
	close(r.done)
	r.review = nil
	r.done = nil
}

// route hands line to a pending review. Reports whether the line was
// consumed; the chat loop keeps lines the router declines.
func (r *inputRouter) route(line string) bool {
	r.mu.Lock()
	review, done := r.review, r.done
	r.mu.Unlock()
	if review == nil {
		return false
	}
	select {
	case review <- line:
		return true
	case <-done:
		// The review ended before reading the line (cancelled mid-prompt).
		return false
	}
}

// stdinReviewer gates each direction at the terminal.
type stdinReviewer struct {
	router *inputRouter
}

// Review renders the draft and asks the operator to accept, edit, or skip.
// It owns stdin for the duration of the prompt.
func (r *stdinReviewer) Review(ctx context.Context, draft string) (string, bool, error) {
	lines := r.router.beginReview()
	defer r.router.endReview()

	fmt.Println(headerStyle.Render("── director draft ──"))
	fmt.Print(renderMarkdown(draft))
	fmt.Println(statusStyle.Render("[a]ccept  [e]dit  [s]kip"))

	for {
		line, err := readLine(ctx, lines)
		if err != nil {
			return "", false, err
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "a", "accept", "":
			return draft, true, nil
		case "s", "skip":
			return "", false, nil
		case "e", "edit":
			fmt.Println(statusStyle.Render("enter replacement (empty line keeps the draft):"))
			edited, err := readLine(ctx, lines)
			if err != nil {
				return "", false, err
			}
			if strings.TrimSpace(edited) == "" {
				return draft, true, nil
			}
			return edited, true, nil
		default:
			fmt.Println(statusStyle.Render("[a]ccept  [e]dit  [s]kip"))
		}
	}
}

func readLine(ctx context.Context, lines <-chan string) (string, error) {
	select {
	case line, ok := <-lines:
		if !ok {
			return "", fmt.Errorf("input closed")
		}
		return line, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// renderMarkdown pretty-prints markdown for the terminal, falling back to
// plain text.
func renderMarkdown(text string) string {
	out, err := glamour.Render(text, "dark")
	if err != nil {
		return text + "\n"
	}
	return out
}
