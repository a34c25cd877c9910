// Package confirm lets case bodies wait for an operator to act on the
// hardware (e.g. start traffic, replug a cable) before checking results.
package confirm

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/vk/teeio-validator/internal/ctxlog"
)

// ErrDeclined is returned when the operator answers the prompt negatively.
var ErrDeclined = errors.New("operator declined")

// Confirmer blocks until the operator acknowledges prompt or ctx ends.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) error
}

// Auto confirms every prompt immediately. Used in CI and tests.
type Auto struct {
	// Decline answers every prompt with ErrDeclined.
	Decline bool

	mu      sync.Mutex
	prompts []string
}

// Confirm records the prompt and returns nil, or ErrDeclined if Decline is set.
func (a *Auto) Confirm(ctx context.Context, prompt string) error {
	ctxlog.FromContext(ctx).Debug("Auto-answering operator prompt.", "prompt", prompt, "decline", a.Decline)
	a.mu.Lock()
	defer a.mu.Unlock()
	a.prompts = append(a.prompts, prompt)
	if a.Decline {
		return ErrDeclined
	}
	return nil
}

// Prompts returns every prompt seen so far.
func (a *Auto) Prompts() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.prompts...)
}

// Console prints the prompt and waits for a line on the input. An answer
// starting with "n" declines; anything else, including an empty line,
// confirms.
type Console struct {
	out   io.Writer
	lines chan string
	once  sync.Once
	in    io.Reader

	// err is the terminal read error, set before lines is closed.
	err error
}

// NewConsole returns a console confirmer reading from in and writing to out.
func NewConsole(in io.Reader, out io.Writer) *Console {
	return &Console{in: in, out: out, lines: make(chan string)}
}

// The scanner goroutine outlives individual prompts so a cancelled prompt
// does not lose the next line typed.
func (c *Console) start() {
	go func() {
		sc := bufio.NewScanner(c.in)
		for sc.Scan() {
			c.lines <- sc.Text()
		}
		c.err = sc.Err()
		if c.err == nil {
			c.err = io.EOF
		}
		close(c.lines)
	}()
}

// Confirm implements Confirmer.
func (c *Console) Confirm(ctx context.Context, prompt string) error {
	c.once.Do(c.start)
	fmt.Fprintf(c.out, "%s [Y/n] ", prompt)

	select {
	case line, open := <-c.lines:
		if !open {
			return fmt.Errorf("reading operator answer: %w", c.err)
		}
		if strings.HasPrefix(strings.ToLower(strings.TrimSpace(line)), "n") {
			return ErrDeclined
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
