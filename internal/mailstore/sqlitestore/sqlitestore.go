// Package sqlitestore reads contacts from a mail archive snapshotted
// into an SQLite database.
//
// The archive layout is one row per message with its sender columns,
// a recipients table keyed by message, an optional contacts table for
// the address book, and an optional directory table mirroring the
// organization's address list. The directory table, when present,
// backs the store's directory capability.
package sqlitestore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/contactkit/mailharvest/internal/logging"
	"github.com/contactkit/mailharvest/internal/mailstore"
)

// folderNames maps well-known folder ids to the names archives use.
var folderNames = map[mailstore.FolderID][]string{
	mailstore.FolderInbox:        {"Inbox", "INBOX"},
	mailstore.FolderSentItems:    {"Sent Items", "Sent"},
	mailstore.FolderDeletedItems: {"Deleted Items", "Trash"},
	mailstore.FolderDrafts:       {"Drafts"},
	mailstore.FolderOutbox:       {"Outbox"},
	mailstore.FolderJunk:         {"Junk Email", "Junk", "Spam"},
	mailstore.FolderArchive:      {"Archive", "Archives"},
}

// Store is an open archive database.
type Store struct {
	db           *sql.DB
	log          *logging.Logger
	hasContacts  bool
	hasDirectory bool
}

// Open opens the archive read-only and verifies its schema. A missing
// or malformed archive is a backend-unavailable condition.
func Open(path string, log *logging.Logger) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?mode=ro&_busy_timeout=5000", path)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: opening archive: %v", mailstore.ErrUnavailable, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: opening archive %s: %v", mailstore.ErrUnavailable, path, err)
	}

	s := &Store{db: db, log: log.Store()}

	for _, required := range []string{"folders", "messages", "recipients"} {
		ok, err := s.hasTable(required)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("%w: inspecting archive: %v", mailstore.ErrUnavailable, err)
		}
		if !ok {
			db.Close()
			return nil, fmt.Errorf("%w: archive %s has no %s table", mailstore.ErrUnavailable, path, required)
		}
	}
	s.hasContacts, _ = s.hasTable("contacts")
	s.hasDirectory, _ = s.hasTable("directory")

	return s, nil
}

func (s *Store) hasTable(name string) (bool, error) {
	var count int
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", name,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Folder resolves a well-known folder against the archive's folder
// names. The contacts folder maps to the contacts table when present.
func (s *Store) Folder(ctx context.Context, id mailstore.FolderID) (mailstore.Folder, error) {
	if id == mailstore.FolderContacts {
		if !s.hasContacts {
			return nil, fmt.Errorf("%w: %s", mailstore.ErrFolderNotFound, id)
		}
		return &contactsFolder{store: s}, nil
	}

	for _, name := range folderNames[id] {
		var folderID int64
		err := s.db.QueryRowContext(ctx,
			"SELECT id FROM folders WHERE name = ?", name,
		).Scan(&folderID)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return nil, err
		}
		return &messageFolder{store: s, id: folderID, name: name}, nil
	}
	return nil, fmt.Errorf("%w: %s", mailstore.ErrFolderNotFound, id)
}

// List returns the archive's folder names in stored order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name FROM folders ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	if s.hasContacts {
		names = append(names, "Contacts")
	}
	return names, rows.Err()
}

// Directory returns the archive-backed directory, or nil when the
// archive carries no directory table.
func (s *Store) Directory() mailstore.Directory {
	if !s.hasDirectory {
		return nil
	}
	return &directory{db: s.db}
}

func (s *Store) Close() error { return s.db.Close() }

// handle carries the archive's per-participant columns, including the
// optional resolved SMTP address and title.
type handle struct {
	name  string
	addr  string
	smtp  string
	title string
}

func (h handle) DisplayName() string { return h.name }

func (h handle) Address() string { return h.addr }

func (h handle) Property(tag mailstore.PropertyTag) (string, bool) {
	switch tag {
	case mailstore.PropSMTPAddress:
		if h.smtp != "" {
			return h.smtp, true
		}
	case mailstore.PropTitle:
		if h.title != "" {
			return h.title, true
		}
	}
	return "", false
}

type messageFolder struct {
	store *Store
	id    int64
	name  string
}

func (f *messageFolder) Name() string { return f.name }

// Items streams messages in archive order, attaching each message's
// recipients. A message whose recipients fail to load is emitted with
// none rather than dropped.
func (f *messageFolder) Items(ctx context.Context, fn func(mailstore.Item) error) error {
	rows, err := f.store.db.QueryContext(ctx, `
		SELECT id, sender_name, sender_address, COALESCE(sender_smtp, ''), COALESCE(body, '')
		FROM messages WHERE folder_id = ? ORDER BY id`, f.id)
	if err != nil {
		return fmt.Errorf("querying %s: %w", f.name, err)
	}
	defer rows.Close()

	for rows.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}

		var msgID int64
		var senderName, senderAddr, senderSMTP, body string
		if err := rows.Scan(&msgID, &senderName, &senderAddr, &senderSMTP, &body); err != nil {
			f.store.log.Debug("skipping unreadable message row", "folder", f.name, "reason", err.Error())
			continue
		}

		msg := &mailstore.Message{Body: body}
		if strings.TrimSpace(senderName) != "" || senderAddr != "" {
			msg.Sender = handle{name: senderName, addr: senderAddr, smtp: senderSMTP}
		}
		msg.Recipients = f.recipients(ctx, msgID)

		if err := fn(mailstore.Item{Kind: mailstore.KindMessage, Message: msg}); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (f *messageFolder) recipients(ctx context.Context, msgID int64) []mailstore.Handle {
	rows, err := f.store.db.QueryContext(ctx, `
		SELECT name, address, COALESCE(smtp, ''), COALESCE(title, '')
		FROM recipients WHERE message_id = ? ORDER BY rowid`, msgID)
	if err != nil {
		return nil
	}
	defer rows.Close()

	var handles []mailstore.Handle
	for rows.Next() {
		var h handle
		if err := rows.Scan(&h.name, &h.addr, &h.smtp, &h.title); err != nil {
			continue
		}
		handles = append(handles, h)
	}
	return handles
}

type contactsFolder struct {
	store *Store
}

func (f *contactsFolder) Name() string { return "Contacts" }

func (f *contactsFolder) Items(ctx context.Context, fn func(mailstore.Item) error) error {
	rows, err := f.store.db.QueryContext(ctx, `
		SELECT COALESCE(full_name, ''), COALESCE(first_name, ''), COALESCE(last_name, ''),
		       COALESCE(email, ''), COALESCE(job_title, ''), COALESCE(company, '')
		FROM contacts ORDER BY id`)
	if err != nil {
		return fmt.Errorf("querying contacts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}

		entry := &mailstore.ContactEntry{}
		if err := rows.Scan(&entry.FullName, &entry.FirstName, &entry.LastName,
			&entry.Email, &entry.JobTitle, &entry.Company); err != nil {
			continue
		}
		if err := fn(mailstore.Item{Kind: mailstore.KindContact, Contact: entry}); err != nil {
			return err
		}
	}
	return rows.Err()
}

type directory struct {
	db *sql.DB
}

// Resolve looks a display name up in the archived directory table.
func (d *directory) Resolve(ctx context.Context, displayName string) (*mailstore.DirectoryEntry, error) {
	var entry mailstore.DirectoryEntry
	err := d.db.QueryRowContext(ctx, `
		SELECT COALESCE(smtp_address, ''), COALESCE(job_title, '')
		FROM directory WHERE display_name = ?`, displayName,
	).Scan(&entry.PrimarySMTP, &entry.JobTitle)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}
