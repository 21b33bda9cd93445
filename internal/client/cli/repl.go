package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output.
var printlnFn = fmt.Println

// execIface is the command surface the REPL dispatches to. App satisfies
// it; tests use a stub.
type execIface interface {
	isUnlocked() bool
	Create(ctx context.Context) error
	Unlock(ctx context.Context, args []string) error
	Sessions(ctx context.Context) error
	Terminate(ctx context.Context, args []string) error
	TerminateOthers(ctx context.Context) error
	ChangePIN(ctx context.Context) error
	SetDecoy(ctx context.Context) error
	ClearDecoy(ctx context.Context) error
	RecoveryGenerate(ctx context.Context) error
	RecoveryShow(ctx context.Context) error
	Recover(ctx context.Context, args []string) error
	Activity(ctx context.Context, args []string) error
	Logout(ctx context.Context) error
}

const (
	helpLocked   = "Available commands: create, unlock [user-id], recover [user-id], exit"
	helpUnlocked = "Available commands: sessions, terminate <id>, terminate-others, change-pin, set-decoy, clear-decoy, " +
		"recovery-generate, recovery-show, activity [category...], logout, exit"
)

// runREPL reads commands until EOF or exit. Handlers print their own
// errors, so the loop ignores what they return.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		printlnFn(fmt.Sprintf("pv (%s)> ", statusFn()))
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		switch cmd {
		case "help":
			if a.isUnlocked() {
				printlnFn(helpUnlocked)
			} else {
				printlnFn(helpLocked)
			}

		case "create":
			_ = a.Create(ctx)

		case "unlock":
			_ = a.Unlock(ctx, args)

		case "sessions":
			_ = a.Sessions(ctx)

		case "terminate":
			_ = a.Terminate(ctx, args)

		case "terminate-others":
			_ = a.TerminateOthers(ctx)

		case "change-pin":
			_ = a.ChangePIN(ctx)

		case "set-decoy":
			_ = a.SetDecoy(ctx)

		case "clear-decoy":
			_ = a.ClearDecoy(ctx)

		case "recovery-generate":
			_ = a.RecoveryGenerate(ctx)

		case "recovery-show":
			_ = a.RecoveryShow(ctx)

		case "recover":
			_ = a.Recover(ctx, args)

		case "activity":
			_ = a.Activity(ctx, args)

		case "logout":
			_ = a.Logout(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}

		if ctx.Err() != nil {
			return
		}
	}
}
