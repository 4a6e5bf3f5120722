package session

import (
	"sync"
	"time"
)

// Variant is the visual severity of a notification
type Variant string

const (
	VariantDefault     Variant = "default"
	VariantDestructive Variant = "destructive"
)

// Notification is a user-facing toast
type Notification struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Variant     Variant   `json:"variant"`
	At          time.Time `json:"at"`
}

// Notifier surfaces notifications to the user
type Notifier interface {
	Notify(n Notification)
}

// Navigator redirects the user to another route
type Navigator interface {
	Navigate(path string)
}

// Inbox buffers notifications and the last redirect for one session until the
// client collects them. It is both the Notifier and the Navigator of a monitor.
type Inbox struct {
	mu       sync.Mutex
	max      int
	items    []Notification
	redirect string
}

// NewInbox creates an inbox keeping at most max notifications
func NewInbox(max int) *Inbox {
	if max <= 0 {
		max = 20
	}
	return &Inbox{max: max}
}

// Notify implements Notifier; the oldest entry is dropped when full
func (i *Inbox) Notify(n Notification) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.items = append(i.items, n)
	if len(i.items) > i.max {
		i.items = i.items[len(i.items)-i.max:]
	}
}

// Navigate implements Navigator
func (i *Inbox) Navigate(path string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.redirect = path
}

// Drain returns and clears the buffered notifications and redirect
func (i *Inbox) Drain() ([]Notification, string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	items, redirect := i.items, i.redirect
	i.items, i.redirect = nil, ""
	return items, redirect
}

// Pending returns the number of buffered notifications
func (i *Inbox) Pending() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.items)
}
