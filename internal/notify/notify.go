// Package notify delivers short user-facing success and error messages.
package notify

import (
	"fmt"
	"io"
	"sync"
)

// Notifier shows transient messages to the user.
type Notifier interface {
	Success(msg string)
	Error(msg string)
}

// Writer prints notifications as single lines.
type Writer struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriter creates a Writer printing to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Success prints a ✓ line.
func (n *Writer) Success(msg string) {
	n.print("✓", msg)
}

// Error prints a ✗ line.
func (n *Writer) Error(msg string) {
	n.print("✗", msg)
}

func (n *Writer) print(mark, msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	fmt.Fprintf(n.w, "%s %s\n", mark, msg)
}

// Kind classifies a recorded note.
type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
)

// Note is one recorded notification.
type Note struct {
	Kind    Kind
	Message string
}

// Recorder keeps notifications in memory.
type Recorder struct {
	mu    sync.Mutex
	notes []Note
}

// Success records a success note.
func (r *Recorder) Success(msg string) {
	r.add(KindSuccess, msg)
}

// Error records an error note.
func (r *Recorder) Error(msg string) {
	r.add(KindError, msg)
}

func (r *Recorder) add(kind Kind, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, Note{Kind: kind, Message: msg})
}

// Notes returns a copy of everything recorded so far.
func (r *Recorder) Notes() []Note {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Note, len(r.notes))
	copy(out, r.notes)
	return out
}

// Count returns how many notes of kind were recorded.
func (r *Recorder) Count(kind Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, note := range r.notes {
		if note.Kind == kind {
			n++
		}
	}
	return n
}

// Reset forgets all recorded notes.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = nil
}
