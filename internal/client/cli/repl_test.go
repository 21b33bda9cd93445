package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeExec struct {
	unlocked bool

	calls []string
}

func (f *fakeExec) rec(name string, args ...string) error {
	if len(args) > 0 {
		name += " " + strings.Join(args, " ")
	}
	f.calls = append(f.calls, name)
	return nil
}

func (f *fakeExec) isUnlocked() bool                   { return f.unlocked }
func (f *fakeExec) Create(context.Context) error       { return f.rec("create") }
func (f *fakeExec) Sessions(context.Context) error     { return f.rec("sessions") }
func (f *fakeExec) ChangePIN(context.Context) error    { return f.rec("change-pin") }
func (f *fakeExec) SetDecoy(context.Context) error     { return f.rec("set-decoy") }
func (f *fakeExec) ClearDecoy(context.Context) error   { return f.rec("clear-decoy") }
func (f *fakeExec) RecoveryShow(context.Context) error { return f.rec("recovery-show") }
func (f *fakeExec) TerminateOthers(context.Context) error {
	return f.rec("terminate-others")
}
func (f *fakeExec) RecoveryGenerate(context.Context) error {
	return f.rec("recovery-generate")
}
func (f *fakeExec) Unlock(_ context.Context, args []string) error {
	f.unlocked = true
	return f.rec("unlock", args...)
}
func (f *fakeExec) Terminate(_ context.Context, args []string) error {
	return f.rec("terminate", args...)
}
func (f *fakeExec) Recover(_ context.Context, args []string) error {
	return f.rec("recover", args...)
}
func (f *fakeExec) Activity(_ context.Context, args []string) error {
	return f.rec("activity", args...)
}
func (f *fakeExec) Logout(context.Context) error {
	f.unlocked = false
	return f.rec("logout")
}

func capturePrints(t *testing.T) *[]string {
	t.Helper()
	var lines []string
	orig := printlnFn
	printlnFn = func(a ...any) (int, error) {
		lines = append(lines, strings.TrimSuffix(fmt.Sprintln(a...), "\n"))
		return 0, nil
	}
	t.Cleanup(func() { printlnFn = orig })
	return &lines
}

func TestRunREPL_DispatchesEveryCommand(t *testing.T) {
	capturePrints(t)

	input := strings.NewReader(strings.Join([]string{
		"create",
		"unlock u-1",
		"sessions",
		"terminate s-2",
		"terminate-others",
		"change-pin",
		"set-decoy",
		"clear-decoy",
		"recovery-generate",
		"recovery-show",
		"activity auth session",
		"logout",
		"recover u-1",
		"",
		"exit",
		"sessions",
	}, "\n"))

	exec := &fakeExec{}
	runREPL(context.Background(), exec, func() string { return "s" }, bufio.NewScanner(input))

	assert.Equal(t, []string{
		"create",
		"unlock u-1",
		"sessions",
		"terminate s-2",
		"terminate-others",
		"change-pin",
		"set-decoy",
		"clear-decoy",
		"recovery-generate",
		"recovery-show",
		"activity auth session",
		"logout",
		"recover u-1",
	}, exec.calls)
}

func TestRunREPL_HelpFollowsLockState(t *testing.T) {
	lines := capturePrints(t)

	input := strings.NewReader("help\nunlock\nhelp\nfoobar\nquit\n")
	exec := &fakeExec{}
	runREPL(context.Background(), exec, func() string { return "s" }, bufio.NewScanner(input))

	assert.Contains(t, *lines, helpLocked)
	assert.Contains(t, *lines, helpUnlocked)
	assert.Contains(t, *lines, "Unknown command: foobar")
	assert.Contains(t, *lines, "Bye!")
}

func TestRunREPL_StopsOnEOFAndCancel(t *testing.T) {
	capturePrints(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	exec := &fakeExec{}
	runREPL(ctx, exec, func() string { return "s" }, bufio.NewScanner(strings.NewReader("sessions\nsessions\n")))

	assert.Equal(t, []string{"sessions"}, exec.calls)
}
