package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/pinvault/internal/common"
)

// Indirections over the interactive helpers so tests can feed input.
var getSimpleText = GetSimpleText
var getPIN = GetPIN

var errPINMismatch = errors.New("PINs do not match")

// readPIN prompts once and returns the PIN as a string; the raw bytes are
// wiped.
func (a *App) readPIN(prompt string) (string, error) {
	b, err := getPIN(a.out, prompt)
	if err != nil {
		return "", err
	}
	defer common.WipeByteArray(b)
	return string(b), nil
}

// readNewPIN asks twice.
func (a *App) readNewPIN(prompt string) (string, error) {
	first, err := a.readPIN(prompt)
	if err != nil {
		return "", err
	}
	second, err := a.readPIN("Repeat " + prompt)
	if err != nil {
		return "", err
	}
	if first != second {
		fmt.Fprintln(a.out, "PINs do not match.")
		return "", errPINMismatch
	}
	return first, nil
}

func (a *App) Create(ctx context.Context) error {
	pin, err := a.readNewPIN("new PIN")
	if err != nil {
		return err
	}

	ctx, cancel := a.call(ctx)
	defer cancel()

	id, err := a.svc.CreateAccount(ctx, pin)
	if err != nil {
		return a.report(err)
	}
	a.unlocked = false

	fmt.Fprintln(a.out, "Account created. User id:", id)
	fmt.Fprintln(a.out, "Keep the user id; it is needed to unlock from another device.")
	return nil
}

// Unlock accepts an optional user id, otherwise the stored one is used.
// The output is the same whichever PIN matched.
func (a *App) Unlock(ctx context.Context, args []string) error {
	var userID string
	if len(args) > 0 {
		userID = args[0]
	}

	pin, err := a.readPIN("PIN")
	if err != nil {
		return err
	}

	ctx, cancel := a.call(ctx)
	defer cancel()

	if err := a.svc.Unlock(ctx, userID, pin); err != nil {
		return a.report(err)
	}
	a.unlocked = true
	fmt.Fprintln(a.out, "Unlocked.")
	return nil
}

func (a *App) Logout(ctx context.Context) error {
	ctx, cancel := a.call(ctx)
	defer cancel()

	if err := a.svc.Logout(ctx); err != nil {
		return a.report(err)
	}
	a.unlocked = false
	fmt.Fprintln(a.out, "Logged out.")
	return nil
}

// Recover resets the primary PIN with a recovery key. Every session of the
// account ends, this one included.
func (a *App) Recover(ctx context.Context, args []string) error {
	var userID string
	if len(args) > 0 {
		userID = args[0]
	}

	key, err := getSimpleText(a.reader, "Recovery key", a.out)
	if err != nil {
		return err
	}
	pin, err := a.readNewPIN("new PIN")
	if err != nil {
		return err
	}

	ctx, cancel := a.call(ctx)
	defer cancel()

	if err := a.svc.Recover(ctx, userID, key, pin); err != nil {
		return a.report(err)
	}
	a.unlocked = false
	fmt.Fprintln(a.out, "PIN reset. All sessions were signed out and the decoy PIN was removed. Unlock with the new PIN.")
	return nil
}
