// Package mailstore abstracts the mail backend a harvest run reads from.
//
// A Store resolves well-known folders, enumerates their items in the
// store's native order, and may expose a directory capability that turns
// a display name into a resolved address-book entry. Items are a tagged
// variant: mail messages or address-book entries.
package mailstore

import (
	"context"
	"errors"
)

// FolderID identifies a well-known folder independent of the backend's
// naming scheme.
type FolderID string

const (
	FolderSentItems    FolderID = "sent"
	FolderInbox        FolderID = "inbox"
	FolderDeletedItems FolderID = "deleted"
	FolderDrafts       FolderID = "drafts"
	FolderOutbox       FolderID = "outbox"
	FolderJunk         FolderID = "junk"
	FolderArchive      FolderID = "archive"
	FolderContacts     FolderID = "contacts"
)

// DefaultScanOrder is the folder traversal order of a full harvest.
// Aggregation is first-match-wins, so this order acts as an implicit
// source priority.
var DefaultScanOrder = []FolderID{
	FolderSentItems,
	FolderInbox,
	FolderDeletedItems,
	FolderDrafts,
	FolderOutbox,
	FolderJunk,
	FolderArchive,
}

var (
	// ErrFolderNotFound is returned when a backend has no folder for the
	// requested identifier. Scans treat it as a per-folder skip.
	ErrFolderNotFound = errors.New("mailstore: folder not found")
	// ErrUnavailable is returned when the backend cannot be reached at
	// all. It is fatal for a run.
	ErrUnavailable = errors.New("mailstore: backend unavailable")
)

// Store is a connected mail backend.
type Store interface {
	// Folder resolves a well-known folder. Returns ErrFolderNotFound if
	// the backend has no such folder.
	Folder(ctx context.Context, id FolderID) (Folder, error)

	// List returns the names of all folders the backend exposes.
	List(ctx context.Context) ([]string, error)

	// Directory returns the backend's directory capability, or nil when
	// the backend has none.
	Directory() Directory

	Close() error
}

// Folder is one mail folder open for enumeration.
type Folder interface {
	// Name is the backend's display name for the folder.
	Name() string

	// Items calls fn for each item in the store's native enumeration
	// order. An error from fn aborts the iteration and is returned.
	Items(ctx context.Context, fn func(Item) error) error
}

// ItemKind discriminates the Item variant.
type ItemKind int

const (
	KindMessage ItemKind = iota
	KindContact
)

// Item is a tagged variant: exactly one of Message or Contact is set,
// according to Kind.
type Item struct {
	Kind    ItemKind
	Message *Message
	Contact *ContactEntry
}

// Message is a mail item as seen by the scanner.
type Message struct {
	Sender     Handle
	Recipients []Handle
	// Body is the message text, possibly HTML markup.
	Body string
}

// ContactEntry is an address-book item.
type ContactEntry struct {
	FullName  string
	FirstName string
	LastName  string
	Email     string
	JobTitle  string
	Company   string
}

// PropertyTag names a well-known handle property.
type PropertyTag string

const (
	// PropSMTPAddress is the resolved SMTP address of a handle.
	PropSMTPAddress PropertyTag = "smtp_address"
	// PropTitle is the job title attached to a handle.
	PropTitle PropertyTag = "title"
)

// Handle is a raw sender or recipient reference on a message.
type Handle interface {
	// DisplayName is the human-readable name, which may itself embed an
	// email address.
	DisplayName() string

	// Address is the backend's raw address for the handle. It may be a
	// directory-style path rather than an SMTP address.
	Address() string

	// Property looks up a well-known property. ok is false when the
	// backend does not carry the property for this handle.
	Property(tag PropertyTag) (value string, ok bool)
}

// Directory resolves display names against the backend's address book.
type Directory interface {
	// Resolve returns the entry for a display name, or an error when the
	// name does not resolve.
	Resolve(ctx context.Context, displayName string) (*DirectoryEntry, error)
}

// DirectoryEntry is a resolved address-book entry.
type DirectoryEntry struct {
	PrimarySMTP string
	JobTitle    string
}

// Address is the plain Handle used by backends whose senders and
// recipients are already RFC 5322 addresses.
type Address struct {
	Name string
	Addr string
}

func (a Address) DisplayName() string { return a.Name }

func (a Address) Address() string { return a.Addr }

func (a Address) Property(tag PropertyTag) (string, bool) {
	if tag == PropSMTPAddress && a.Addr != "" {
		return a.Addr, true
	}
	return "", false
}
