package cli

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/pinvault/internal/client/client"
	"github.com/dmitrijs2005/pinvault/internal/client/config"
	"github.com/dmitrijs2005/pinvault/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/pinvault/internal/client/services"
	"github.com/dmitrijs2005/pinvault/internal/filex"
)

type App struct {
	config   *config.Config
	svc      services.AccountService
	db       *sql.DB
	reader   *bufio.Reader
	out      io.Writer
	unlocked bool
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	if err := filex.EnsureParentDir(c.StatePath); err != nil {
		return nil, err
	}
	db, err := client.InitDatabase(ctx, c.StatePath)
	if err != nil {
		return nil, fmt.Errorf("open state file: %w", err)
	}

	apiClient, err := client.NewPinVaultClientService(c.ServerEndpointAddr)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	svc := services.NewAccountService(apiClient, metadata.NewSQLiteRepository(db))

	return &App{
		config: c,
		svc:    svc,
		db:     db,
		reader: bufio.NewReader(os.Stdin),
		out:    os.Stdout,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	defer a.close()

	ok, err := a.svc.Restore(ctx)
	if err != nil {
		return err
	}
	a.unlocked = ok

	fmt.Fprintln(a.out, "pinvault CLI (type 'help' for commands)")
	runREPL(ctx, a, a.getStatus, bufio.NewScanner(a.reader))
	return nil
}

func (a *App) close() {
	if err := a.svc.Close(); err != nil {
		fmt.Fprintln(a.out, "close client:", err)
	}
	if a.db != nil {
		_ = a.db.Close()
	}
}

func (a *App) isUnlocked() bool {
	return a.unlocked
}

func (a *App) getStatus() string {
	if a.unlocked {
		return "unlocked"
	}
	return "locked"
}

// call bounds one server round trip by the configured request timeout.
func (a *App) call(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.config == nil || a.config.RequestTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.config.RequestTimeout)
}

// report prints err in user terms and returns it unchanged. A rejected
// session flips the prompt back to locked.
func (a *App) report(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, client.ErrInvalidCredential):
		fmt.Fprintln(a.out, "Wrong PIN or recovery key.")
	case errors.Is(err, client.ErrUnauthorized):
		if a.unlocked {
			a.unlocked = false
			fmt.Fprintln(a.out, "Session is no longer valid, unlock again.")
		} else {
			fmt.Fprintln(a.out, "Not authorized.")
		}
	case errors.Is(err, client.ErrNotLoggedIn):
		fmt.Fprintln(a.out, "Unlock first.")
	case errors.Is(err, client.ErrThrottled):
		fmt.Fprintln(a.out, "Too many attempts. Try again later.")
	case errors.Is(err, client.ErrInvalidInput):
		fmt.Fprintln(a.out, "PIN has the wrong length or contains non-digits.")
	case errors.Is(err, client.ErrSamePIN):
		fmt.Fprintln(a.out, "The new PIN must differ from the PINs already in use.")
	case errors.Is(err, client.ErrNotFound):
		fmt.Fprintln(a.out, "Not found.")
	case errors.Is(err, client.ErrUnavailable):
		fmt.Fprintln(a.out, "Server unavailable.")
	case errors.Is(err, services.ErrNoAccount):
		fmt.Fprintln(a.out, services.ErrNoAccount.Error()+".")
	default:
		fmt.Fprintln(a.out, "Error:", err)
	}
	return err
}
