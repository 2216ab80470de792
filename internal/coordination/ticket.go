// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package coordination

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ticketDescriptor is the JSON body written into each cross-process ticket
// file. It exists purely for observability: FIFO order is determined by
// the filename, never by this content.
type ticketDescriptor struct {
	PID        int       `json:"pid"`
	InstanceID string    `json:"instance_id"`
	ParentTool string    `json:"parent_tool"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// crossProcessTicket is a single outstanding entry in the queue directory.
type crossProcessTicket struct {
	name string // "<20-digit ns>-<pid>.ticket"
	path string
	pid  int
	ts   int64
}

const ticketSuffix = ".ticket"

// createTicket writes a new ticket file into dir whose name encodes the
// current time in nanoseconds and this process's pid, so lexicographic
// filename order equals FIFO enqueue order.
func createTicket(dir, instanceID, parentTool string) (*crossProcessTicket, error) {
	pid := os.Getpid()
	now := time.Now()
	name := fmt.Sprintf("%020d-%d%s", now.UnixNano(), pid, ticketSuffix)
	path := filepath.Join(dir, name)

	desc := ticketDescriptor{
		PID:        pid,
		InstanceID: instanceID,
		ParentTool: parentTool,
		EnqueuedAt: now,
	}
	if err := writeJSONAtomic(path, desc); err != nil {
		return nil, fmt.Errorf("create ticket: %w", err)
	}

	return &crossProcessTicket{name: name, path: path, pid: pid, ts: now.UnixNano()}, nil
}

// remove deletes the ticket file. Missing files are not an error: another
// process's reaper may have already removed it.
func (t *crossProcessTicket) remove() error {
	if err := os.Remove(t.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove ticket %s: %w", t.name, err)
	}
	return nil
}

// parseTicketName extracts the timestamp and pid encoded in a ticket
// filename of the form "<20-digit ns>-<pid>.ticket".
func parseTicketName(name string) (ts int64, pid int, err error) {
	if !strings.HasSuffix(name, ticketSuffix) {
		return 0, 0, ErrInvalidTicketName
	}
	base := strings.TrimSuffix(name, ticketSuffix)
	parts := strings.SplitN(base, "-", 2)
	if len(parts) != 2 {
		return 0, 0, ErrInvalidTicketName
	}
	ts, err = strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, 0, ErrInvalidTicketName
	}
	pid, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, ErrInvalidTicketName
	}
	return ts, pid, nil
}

// listTickets returns every well-formed ticket in dir sorted in FIFO order
// (lexicographic filename order, equivalent to (timestamp, pid) order).
// Entries that fail to parse are skipped rather than failing the whole scan.
func listTickets(dir string) ([]*crossProcessTicket, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read queue dir: %w", err)
	}

	tickets := make([]*crossProcessTicket, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ts, pid, err := parseTicketName(e.Name())
		if err != nil {
			continue
		}
		tickets = append(tickets, &crossProcessTicket{
			name: e.Name(),
			path: filepath.Join(dir, e.Name()),
			pid:  pid,
			ts:   ts,
		})
	}

	sort.Slice(tickets, func(i, j int) bool { return tickets[i].name < tickets[j].name })
	return tickets, nil
}

// reapStaleTickets removes any ticket in dir whose owning pid is dead or
// whose age exceeds maxAge. It is idempotent: a concurrent reaper racing on
// the same file simply sees its unlink fail with not-found, which is
// treated as success.
func reapStaleTickets(dir string, maxAge time.Duration) (int, error) {
	tickets, err := listTickets(dir)
	if err != nil {
		return 0, err
	}

	now := time.Now().UnixNano()
	reaped := 0
	for _, t := range tickets {
		age := time.Duration(now - t.ts)
		if age <= maxAge && pidAlive(t.pid) {
			continue
		}
		if err := t.remove(); err != nil {
			return reaped, err
		}
		reaped++
	}
	return reaped, nil
}

// position returns the 0-based index of ticket name within the sorted
// queue, or -1 if it is no longer present (e.g. it was reaped).
func position(tickets []*crossProcessTicket, name string) int {
	for i, t := range tickets {
		if t.name == name {
			return i
		}
	}
	return -1
}
