package cli

import (
	"context"
	"fmt"
)

func (a *App) ChangePIN(ctx context.Context) error {
	current, err := a.readPIN("current PIN")
	if err != nil {
		return err
	}
	next, err := a.readNewPIN("new PIN")
	if err != nil {
		return err
	}

	ctx, cancel := a.call(ctx)
	defer cancel()

	if err := a.svc.ChangePIN(ctx, current, next); err != nil {
		return a.report(err)
	}
	fmt.Fprintln(a.out, "PIN changed.")
	return nil
}

func (a *App) SetDecoy(ctx context.Context) error {
	current, err := a.readPIN("current PIN")
	if err != nil {
		return err
	}
	decoy, err := a.readNewPIN("decoy PIN")
	if err != nil {
		return err
	}

	ctx, cancel := a.call(ctx)
	defer cancel()

	if err := a.svc.SetDecoy(ctx, current, decoy); err != nil {
		return a.report(err)
	}
	fmt.Fprintln(a.out, "Decoy PIN set.")
	return nil
}

func (a *App) ClearDecoy(ctx context.Context) error {
	current, err := a.readPIN("current PIN")
	if err != nil {
		return err
	}

	ctx, cancel := a.call(ctx)
	defer cancel()

	if err := a.svc.ClearDecoy(ctx, current); err != nil {
		return a.report(err)
	}
	fmt.Fprintln(a.out, "Decoy PIN removed.")
	return nil
}
