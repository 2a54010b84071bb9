// Package session implements the per-client session record and a
// concurrency-safe store keyed by the client's control-socket address.
package session

import (
	"net/netip"
	"time"
)

// DataMode selects which side of the data channel this session owns:
// the client's advertised endpoint (Active, via PORT) or a listener
// this server opened (Passive, via PASV).
type DataMode int

const (
	Active DataMode = iota
	Passive
)

// State is the authentication phase of a session.
type State int

const (
	LoginRequired State = iota
	StateActive
	Invalid
)

// ID is a session's stable key: the control socket's peer address. A
// fixed-size comparable struct, rather than a formatted "ip:port"
// string, so lookups don't pay string formatting/parsing on every
// access.
type ID struct {
	Addr netip.Addr
	Port uint16
}

// Sockets holds the session's data-channel disposition: only the Mode.
// The live data connection and passive listener are not stored here;
// the server's per-connection handler holds them as Go objects rather
// than raw descriptors.
type Sockets struct {
	Mode DataMode
}

// Session is a per-client record. Handlers work on a value snapshot
// obtained from Store.Get and persist mutations via Store.Update; the
// struct itself holds no synchronization.
type Session struct {
	ID         ID
	State      State
	Sockets    Sockets
	IP         string
	Port       int
	WorkingDir string // absolute; the root this session can never escape upward of
	Username   string
	Password   string
	CurrentDir string // relative to WorkingDir
	LastSeen   time.Time

	// ActiveHost/ActivePort record the client's PORT-advertised data
	// endpoint when Sockets.Mode == Active.
	ActiveHost string
	ActivePort int
}

// New creates a session in the LoginRequired state rooted at
// workingDir. workingDir must be non-empty; an empty or missing
// working directory produces an Invalid session.
func New(id ID, ip string, port int, workingDir string) Session {
	if workingDir == "" {
		return Session{ID: id, State: Invalid}
	}
	return Session{
		ID:         id,
		State:      LoginRequired,
		Sockets:    Sockets{Mode: Active},
		IP:         ip,
		Port:       port,
		WorkingDir: workingDir,
		LastSeen:   time.Now(),
	}
}
