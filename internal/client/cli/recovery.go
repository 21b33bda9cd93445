package cli

import (
	"context"
	"fmt"
)

func (a *App) RecoveryGenerate(ctx context.Context) error {
	current, err := a.readPIN("current PIN")
	if err != nil {
		return err
	}

	ctx, cancel := a.call(ctx)
	defer cancel()

	key, err := a.svc.GenerateRecoveryKey(ctx, current)
	if err != nil {
		return a.report(err)
	}
	fmt.Fprintln(a.out, "Recovery key:", key)
	fmt.Fprintln(a.out, "Store it offline. Any earlier recovery key no longer works.")
	return nil
}

func (a *App) RecoveryShow(ctx context.Context) error {
	ctx, cancel := a.call(ctx)
	defer cancel()

	key, err := a.svc.ShowRecoveryKey(ctx)
	if err != nil {
		return a.report(err)
	}
	fmt.Fprintln(a.out, "Recovery key:", key)
	return nil
}
