package deploy

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// promptState is one node of the confirmation loop. The loop is a small
// explicit state machine: the operator can inspect the diff or log any
// number of times before accepting or declining.
type promptState int

const (
	stateAwaitingInput promptState = iota
	stateShowingDiff
	stateShowingLog
	stateAccepted
	stateDeclined
)

// Confirmer runs the interactive accept/decline/diff/log loop.
type Confirmer struct {
	In  io.Reader
	Out io.Writer

	// ShowDiff and ShowLog display the change between the current and the
	// requested revision, paginated on the operator's terminal.
	ShowDiff func(ctx context.Context) error
	ShowLog  func(ctx context.Context) error
}

// Confirm prompts until the operator accepts (the default) or declines.
// Closed input counts as a decline: a push must never proceed on a prompt
// nobody answered.
func (c *Confirmer) Confirm(ctx context.Context) (bool, error) {
	reader := bufio.NewReader(c.In)
	state := stateAwaitingInput

	for {
		switch state {
		case stateAwaitingInput:
			fmt.Fprint(c.Out, "Proceed? [Y/n/d=diff/l=log] ")
			line, err := reader.ReadString('\n')
			if err != nil && strings.TrimSpace(line) == "" {
				state = stateDeclined
				continue
			}
			switch strings.ToLower(strings.TrimSpace(line)) {
			case "", "y", "yes":
				state = stateAccepted
			case "n", "no":
				state = stateDeclined
			case "d", "diff":
				state = stateShowingDiff
			case "l", "log":
				state = stateShowingLog
			default:
				fmt.Fprintln(c.Out, "Please answer y, n, d or l.")
			}

		case stateShowingDiff:
			if err := c.ShowDiff(ctx); err != nil {
				fmt.Fprintf(c.Out, "Failed to show diff: %v\n", err)
			}
			state = stateAwaitingInput

		case stateShowingLog:
			if err := c.ShowLog(ctx); err != nil {
				fmt.Fprintf(c.Out, "Failed to show log: %v\n", err)
			}
			state = stateAwaitingInput

		case stateAccepted:
			return true, nil

		case stateDeclined:
			return false, nil
		}
	}
}
