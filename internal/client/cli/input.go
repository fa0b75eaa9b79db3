package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"golang.org/x/term"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

// GetSimpleText prints a prompt to w and reads a single line of input from
// reader. The trailing newline is trimmed. If EOF occurs after some input
// was read, the partial line is returned.
func GetSimpleText(reader *bufio.Reader, prompt string, w io.Writer) (string, error) {
	if _, err := fmt.Fprint(w, prompt+"\n> "); err != nil {
		return "", err
	}
	line, err := reader.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && len(line) > 0 {
			return strings.TrimSpace(line), nil
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// Confirm asks a yes/no question; anything but y/yes means no.
func Confirm(reader *bufio.Reader, prompt string, w io.Writer) (bool, error) {
	answer, err := GetSimpleText(reader, prompt+" (y/N)", w)
	if err != nil {
		return false, err
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

// GetPassword prints prompt to w and reads a secret from the terminal
// without echo. The caller should wipe the result when done.
func GetPassword(w io.Writer, prompt string) ([]byte, error) {
	if _, err := fmt.Fprint(w, prompt+": "); err != nil {
		return nil, err
	}
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return nil, errors.Wrap(err, "read password")
	}
	return pw, nil
}

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
