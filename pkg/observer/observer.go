// Package observer provides the notification hook used by stores to publish
// committed state changes.
//
// Every store carries a Notifier. Stores built with observation enabled hold
// a *Subject that fans actions out to registered observers; all others hold
// the null notifier returned by Nop, which drops actions and rejects
// registration. Observers are invoked synchronously, in registration order,
// after the state change they describe has been committed. An observer can
// never change the outcome of the operation that produced the action.
package observer

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ActionType identifies the kind of state change an Action describes.
type ActionType string

const (
	ActionDefault ActionType = "DEFAULT"

	ActionStoreAdd      ActionType = "STORE_ADD_FILE"
	ActionStoreRemove   ActionType = "STORE_REMOVE_FILE"
	ActionStoreGet      ActionType = "STORE_GET_FILE"
	ActionStoreRestore  ActionType = "STORE_RESTORE_FILE"
	ActionStoreShutdown ActionType = "STORE_SHUTDOWN"

	ActionTenantCreate ActionType = "MSTORE_CREATE_TENANT"
	ActionTenantAdd    ActionType = "MSTORE_ADD_FILE"
	ActionTenantRemove ActionType = "MSTORE_REMOVE_TENANT"

	ActionMetaAdd      ActionType = "META_ADD_FILE"
	ActionMetaRemove   ActionType = "META_REMOVE_FILE"
	ActionMetaRestore  ActionType = "META_RESTORE_FILE"
	ActionMetaShutdown ActionType = "META_SHUTDOWN"

	ActionRemoteAdd      ActionType = "DAV_ADD_FILE"
	ActionRemoteGet      ActionType = "DAV_GET_FILE"
	ActionRemoteRemove   ActionType = "DAV_REMOVE_FILE"
	ActionRemoteShutdown ActionType = "DAV_SHUTDOWN"
)

// Action describes one committed state change.
type Action struct {
	// Type is the kind of change
	Type ActionType

	// Source names the emitting component (e.g. "filestore", "metadata")
	Source string

	// Objects lists the identifiers affected by the change (ids, paths, tenants)
	Objects []string

	// Message is a short human-readable description
	Message string

	// Time is when the action was emitted
	Time time.Time
}

func (a Action) String() string {
	return fmt.Sprintf("(ActionType) %s || (Source) %s || (Objects) %v || (Message) %s",
		a.Type, a.Source, a.Objects, a.Message)
}

// Observer receives actions from a Notifier.
type Observer interface {
	Notify(action Action)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(action Action)

// Notify calls f(action).
func (f ObserverFunc) Notify(action Action) {
	f(action)
}

// Handle identifies a registration. It is the only way to unregister.
type Handle uint64

var (
	// ErrNotObservable is returned by the null notifier on registration.
	ErrNotObservable = errors.New("notifier does not support observers")

	// ErrUnknownHandle is returned when unregistering a handle that is not registered.
	ErrUnknownHandle = errors.New("observer handle not registered")

	// ErrNilObserver is returned when registering a nil observer.
	ErrNilObserver = errors.New("observer is nil")
)

// Notifier is the capability every store holds for publishing actions.
type Notifier interface {
	// Register adds an observer and returns its handle.
	Register(o Observer) (Handle, error)

	// Unregister removes the observer registered under h.
	Unregister(h Handle) error

	// Inform delivers action to every registered observer.
	Inform(action Action)

	// Observable reports whether this notifier accepts observers.
	Observable() bool
}

type registration struct {
	handle   Handle
	observer Observer
}

// Subject is the observable Notifier implementation.
//
// Thread Safety:
// Safe for concurrent use. Inform takes a snapshot of the registrations, so
// observers may register or unregister from inside Notify.
type Subject struct {
	mu            sync.RWMutex
	next          Handle
	registrations []registration
}

// NewSubject creates an observable notifier with no observers.
func NewSubject() *Subject {
	return &Subject{}
}

// Register implements Notifier.
func (s *Subject) Register(o Observer) (Handle, error) {
	if o == nil {
		return 0, ErrNilObserver
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.next++
	s.registrations = append(s.registrations, registration{handle: s.next, observer: o})
	return s.next, nil
}

// Unregister implements Notifier.
func (s *Subject) Unregister(h Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, r := range s.registrations {
		if r.handle == h {
			s.registrations = append(s.registrations[:i], s.registrations[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("handle %d: %w", h, ErrUnknownHandle)
}

// Inform implements Notifier.
func (s *Subject) Inform(action Action) {
	if action.Time.IsZero() {
		action.Time = time.Now()
	}

	s.mu.RLock()
	snapshot := make([]registration, len(s.registrations))
	copy(snapshot, s.registrations)
	s.mu.RUnlock()

	for _, r := range snapshot {
		r.observer.Notify(action)
	}
}

// Observable implements Notifier.
func (s *Subject) Observable() bool { return true }

// Len returns the number of registered observers.
func (s *Subject) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.registrations)
}

type nopNotifier struct{}

func (nopNotifier) Register(Observer) (Handle, error) { return 0, ErrNotObservable }
func (nopNotifier) Unregister(Handle) error           { return ErrNotObservable }
func (nopNotifier) Inform(Action)                     {}
func (nopNotifier) Observable() bool                  { return false }

// Nop returns the null notifier.
func Nop() Notifier {
	return nopNotifier{}
}

// OrNop returns n, or the null notifier when n is nil.
func OrNop(n Notifier) Notifier {
	if n == nil {
		return Nop()
	}
	return n
}
