// Package cli provides the interactive pinvault command-line client.
//
// It wires configuration, the local state file and the server client into
// a REPL. PINs are read from the terminal without echo. The session token
// survives restarts in the state file, so an unlocked device stays
// unlocked until the session expires, is terminated or the user logs out.
//
// The REPL is started via App.Run, which blocks until the user exits.
package cli
