package devhost

import (
	"os"

	"github.com/pkg/errors"
	"golang.org/x/term"
)

// ErrInteractiveTerminal is returned when the frame protocol would be spoken to a
// terminal instead of a browser or a provider process.
var ErrInteractiveTerminal = errors.New("stdin is an interactive terminal; the host expects framed messages from a provider")

// CheckStdio refuses to serve frames on an interactive terminal.
func CheckStdio(in *os.File) error {
	if term.IsTerminal(int(in.Fd())) {
		return ErrInteractiveTerminal
	}
	return nil
}
