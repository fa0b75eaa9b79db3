package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// execIface is the command surface the REPL drives. App satisfies it; tests
// provide a stub.
type execIface interface {
	inGroup() bool
	Groups(ctx context.Context) error
	Create(ctx context.Context) error
	Join(ctx context.Context, args []string) error
	Select(ctx context.Context, args []string) error
	Send(ctx context.Context, text string) error
	Members(ctx context.Context, args []string) error
	Back(ctx context.Context) error
	Status(ctx context.Context) error
	Logout(ctx context.Context) error
}

const helpText = "Available commands: groups, create, join <id>, select <id|#>, send <text>, members [id|#], back, status, logout, exit"

// runREPL reads commands from reader until EOF, exit, quit or logout.
// While a group is open, a line that is not a command is sent as a
// message. Command errors are printed and the loop carries on. Commands
// that prompt read from the same reader.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader, w io.Writer) {
	for {
		fmt.Fprintf(w, "gs %s> ", statusFn())
		raw, err := reader.ReadString('\n')
		if err != nil && raw == "" {
			fmt.Fprintln(w)
			return
		}
		line := strings.TrimSpace(raw)
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		err = nil
		switch cmd {
		case "help", "?":
			fmt.Fprintln(w, helpText)

		case "groups", "g":
			err = a.Groups(ctx)

		case "create":
			err = a.Create(ctx)

		case "join":
			err = a.Join(ctx, args)

		case "select", "open":
			err = a.Select(ctx, args)

		case "send", "s":
			err = a.Send(ctx, strings.TrimSpace(strings.TrimPrefix(line, cmd)))

		case "members":
			err = a.Members(ctx, args)

		case "back":
			err = a.Back(ctx)

		case "status":
			err = a.Status(ctx)

		case "logout":
			if err := a.Logout(ctx); err != nil {
				fmt.Fprintln(w, "Error:", describe(err))
				continue
			}
			fmt.Fprintln(w, "Logged out. Bye!")
			return

		case "exit", "quit":
			fmt.Fprintln(w, "Bye!")
			return

		default:
			if a.inGroup() {
				err = a.Send(ctx, line)
				break
			}
			fmt.Fprintln(w, "Unknown command:", cmd)
		}

		if err != nil {
			fmt.Fprintln(w, "Error:", describe(err))
		}
	}
}
