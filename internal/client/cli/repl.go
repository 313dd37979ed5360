package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Signup(ctx context.Context) error
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	Status(ctx context.Context) error
	WhoAmI(ctx context.Context) error
	Header(ctx context.Context) error
	Refresh(ctx context.Context) error
	Forgot(ctx context.Context) error
}

// runREPL reads one command per line from reader and dispatches it to a.
// Command errors are printed and the loop continues. The loop exits on EOF
// or when the user types "exit" or "quit".
//
//	Not logged in:
//	  - help           show available commands
//	  - signup         create an account
//	  - login          authenticate
//	  - forgot         reset a forgotten password
//	  - status         show session state
//	  - exit | quit    leave the program
//
//	Logged in:
//	  - help           show available commands
//	  - whoami         fetch the profile with the current token
//	  - header         print the Authorization header
//	  - refresh        force a token refresh
//	  - status         show session state
//	  - logout         log out
//	  - exit | quit    leave the program
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for {
		printlnFn(fmt.Sprintf("pf (%s)> ", statusFn()))
		line, err := reader.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || strings.TrimSpace(line) == "") {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd := parts[0]

		var cmdErr error
		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn("Available commands: whoami, header, refresh, status, logout, exit")
			} else {
				printlnFn("Available commands: signup, login, forgot, status, exit")
			}

		case "signup":
			cmdErr = a.Signup(ctx)

		case "login":
			cmdErr = a.Login(ctx)

		case "logout":
			cmdErr = a.Logout(ctx)

		case "status":
			cmdErr = a.Status(ctx)

		case "whoami":
			cmdErr = a.WhoAmI(ctx)

		case "header":
			cmdErr = a.Header(ctx)

		case "refresh":
			cmdErr = a.Refresh(ctx)

		case "forgot":
			cmdErr = a.Forgot(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}

		if cmdErr != nil {
			printlnFn("Error:", cmdErr)
		}
	}
}
