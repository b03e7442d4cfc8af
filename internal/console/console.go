// Package console is the terminal human-interaction collaborator: it
// renders conversation turns and collects yes/no confirmation decisions.
package console

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"

	"github.com/voltr/surge/internal/conversation"
)

var (
	humanStyle  = color.New(color.FgGreen, color.Bold)
	modelStyle  = color.New(color.FgBlue, color.Bold)
	systemStyle = color.New(color.FgYellow, color.Bold)
	callStyle   = color.New(color.FgYellow)
	resultStyle = color.New(color.FgMagenta)
	errorStyle  = color.New(color.FgRed, color.Bold)
	askStyle    = color.New(color.FgYellow, color.Bold)
)

// Console reads decisions from an input stream and writes rendered turns
// to an output stream. A single goroutine owns the input stream so that
// confirmation prompts and between-tick commands share one line source.
type Console struct {
	out   io.Writer
	lines chan string
}

// New creates a Console over stdin/stdout.
func New() *Console {
	return NewWith(os.Stdin, os.Stdout)
}

// NewWith creates a Console over explicit streams. Tests use this.
func NewWith(in io.Reader, out io.Writer) *Console {
	c := &Console{
		out:   out,
		lines: make(chan string),
	}
	go c.readLoop(in)
	return c
}

func (c *Console) readLoop(in io.Reader) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		c.lines <- strings.TrimSpace(scanner.Text())
	}
	close(c.lines)
}

// ReadLine returns the next input line, or ctx.Err() when the context is
// done first. An empty string with io.EOF means the input was closed.
func (c *Console) ReadLine(ctx context.Context) (string, error) {
	select {
	case line, ok := <-c.lines:
		if !ok {
			return "", io.EOF
		}
		return line, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Confirm renders the pending action and blocks until the human answers
// yes or no, or ctx expires. Unrecognized answers re-prompt.
func (c *Console) Confirm(ctx context.Context, description string) (bool, error) {
	fmt.Fprintln(c.out)
	askStyle.Fprintln(c.out, "Confirmation required")
	fmt.Fprintln(c.out, description)

	for {
		askStyle.Fprint(c.out, "Proceed? (y/n): ")
		line, err := c.ReadLine(ctx)
		if err != nil {
			return false, err
		}
		switch strings.ToLower(line) {
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		}
	}
}

// Display renders one turn. It never blocks on input.
func (c *Console) Display(turn conversation.Turn) {
	switch turn.Role {
	case conversation.RoleHuman:
		humanStyle.Fprintln(c.out, "You")
		fmt.Fprintln(c.out, turn.Text)

	case conversation.RoleModel:
		modelStyle.Fprintln(c.out, "Agent")
		fmt.Fprintln(c.out, turn.Text)

	case conversation.RoleToolCalls:
		for _, call := range turn.Calls {
			callStyle.Fprintf(c.out, "Tool call: %s\n", call.Name)
			fmt.Fprintln(c.out, prettyJSON(call.Args))
		}

	case conversation.RoleToolResults:
		for _, res := range turn.Results {
			if res.Failed() {
				errorStyle.Fprintf(c.out, "Tool error: %s\n", res.Name)
				fmt.Fprintf(c.out, "%s: %s\n", res.Error.Kind, res.Error.Message)
				continue
			}
			resultStyle.Fprintf(c.out, "Tool output: %s\n", res.Name)
			fmt.Fprintln(c.out, prettyJSON(res.Payload))
		}
	}
	fmt.Fprintln(c.out)
}

// System prints an out-of-band status line (tick markers, token totals).
func (c *Console) System(format string, args ...any) {
	systemStyle.Fprintf(c.out, format+"\n", args...)
}

// Error prints an error banner.
func (c *Console) Error(err error) {
	errorStyle.Fprintf(c.out, "Error: %v\n", err)
}

// Welcome prints the startup banner.
func (c *Console) Welcome(network string) {
	banner := color.New(color.FgCyan, color.Bold)
	banner.Fprintln(c.out, "Surge — autonomous Lightning Network agent")
	fmt.Fprintf(c.out, "   Network: %s\n", network)
	fmt.Fprintln(c.out, "   Type a message between ticks, or 'exit' to quit.")
	fmt.Fprintln(c.out)
}

func prettyJSON(v map[string]any) string {
	if len(v) == 0 {
		return "{}"
	}
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(raw)
}
