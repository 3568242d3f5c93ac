package blockstack

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Confirmer asks a human whether a destructive action may proceed.
type Confirmer interface {
	// Confirm returns true only on explicit affirmative confirmation.
	Confirm(prompt string) (bool, error)
}

// Prompt is a Confirmer that asks on Out and reads the answer from In.
type Prompt struct {
	In  io.Reader
	Out io.Writer
}

// Confirm writes prompt followed by "[N/y]: " and reads a single character.
// Only 'y' or 'Y' confirm. Anything else, end of input included, prints
// "Aborted" and returns false.
func (p Prompt) Confirm(prompt string) (bool, error) {
	if _, err := fmt.Fprintf(p.Out, "%s [N/y]: ", prompt); err != nil {
		return false, err
	}

	r, _, err := bufio.NewReader(p.In).ReadRune()
	if err != nil && err != io.EOF {
		return false, err
	}

	if r == 'y' || r == 'Y' {
		return true, nil
	}

	_, err = fmt.Fprintln(p.Out, "Aborted")

	return false, err
}

// ConfirmFunc adapts a function to the Confirmer interface.
type ConfirmFunc func(prompt string) (bool, error)

// Confirm calls f(prompt).
func (f ConfirmFunc) Confirm(prompt string) (bool, error) {
	return f(prompt)
}

func provisionPrompt(disks []string) string {
	return fmt.Sprintf("Going to wipe all signatures from %s. Is this ok?", quoteDisks(disks))
}

func teardownPrompt(disks []string) string {
	return fmt.Sprintf("Going to remove all devices on %s. Is this ok?", quoteDisks(disks))
}

func quoteDisks(disks []string) string {
	quoted := make([]string, len(disks))
	for i, d := range disks {
		quoted[i] = "'" + d + "'"
	}

	return strings.Join(quoted, " and ")
}
