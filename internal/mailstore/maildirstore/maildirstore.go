// Package maildirstore reads contacts out of a tree of Maildir folders.
package maildirstore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/emersion/go-maildir"

	"github.com/contactkit/mailharvest/internal/logging"
	"github.com/contactkit/mailharvest/internal/mailstore"
)

// folderCandidates maps well-known folder ids to the directory names
// backends commonly use. The first existing maildir wins. An empty
// candidate means the root itself.
var folderCandidates = map[mailstore.FolderID][]string{
	mailstore.FolderInbox:        {"INBOX", "Inbox", ""},
	mailstore.FolderSentItems:    {"Sent", "Sent Items", ".Sent"},
	mailstore.FolderDeletedItems: {"Trash", "Deleted Items", ".Trash"},
	mailstore.FolderDrafts:       {"Drafts", ".Drafts"},
	mailstore.FolderOutbox:       {"Outbox", ".Outbox"},
	mailstore.FolderJunk:         {"Junk", "Spam", "Junk Email", ".Junk", ".Spam"},
	mailstore.FolderArchive:      {"Archive", "Archives", ".Archive"},
}

// Store is a mail store rooted at a directory of maildirs.
type Store struct {
	root string
	log  *logging.Logger
}

// Open validates the root and returns a Store. A missing or unreadable
// root is a backend-unavailable condition, fatal for the run.
func Open(root string, log *logging.Logger) (*Store, error) {
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: maildir root %s", mailstore.ErrUnavailable, root)
	}
	return &Store{root: root, log: log.Store()}, nil
}

// Folder resolves a well-known folder to the first matching maildir.
func (s *Store) Folder(_ context.Context, id mailstore.FolderID) (mailstore.Folder, error) {
	candidates, ok := folderCandidates[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", mailstore.ErrFolderNotFound, id)
	}
	for _, name := range candidates {
		path := s.root
		if name != "" {
			path = filepath.Join(s.root, name)
		}
		if isMaildir(path) {
			return &folder{name: displayName(id), dir: maildir.Dir(path), log: s.log}, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", mailstore.ErrFolderNotFound, id)
}

// List returns the maildir subdirectories of the root, plus the root
// itself when it is a maildir.
func (s *Store) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, err
	}
	var names []string
	if isMaildir(s.root) {
		names = append(names, "INBOX")
	}
	for _, e := range entries {
		if e.IsDir() && isMaildir(filepath.Join(s.root, e.Name())) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Directory returns nil: a maildir tree carries no address book.
func (s *Store) Directory() mailstore.Directory { return nil }

func (s *Store) Close() error { return nil }

func isMaildir(path string) bool {
	for _, sub := range []string{"cur", "new"} {
		info, err := os.Stat(filepath.Join(path, sub))
		if err != nil || !info.IsDir() {
			return false
		}
	}
	return true
}

func displayName(id mailstore.FolderID) string {
	switch id {
	case mailstore.FolderInbox:
		return "Inbox"
	case mailstore.FolderSentItems:
		return "Sent Items"
	case mailstore.FolderDeletedItems:
		return "Deleted Items"
	case mailstore.FolderDrafts:
		return "Drafts"
	case mailstore.FolderOutbox:
		return "Outbox"
	case mailstore.FolderJunk:
		return "Junk Email"
	case mailstore.FolderArchive:
		return "Archive"
	}
	return string(id)
}

type folder struct {
	name string
	dir  maildir.Dir
	log  *logging.Logger
}

func (f *folder) Name() string { return f.name }

// Items walks cur and new, parsing each message. A message that cannot
// be opened or parsed is skipped; it never aborts the folder.
func (f *folder) Items(ctx context.Context, fn func(mailstore.Item) error) error {
	msgs, err := f.dir.Messages()
	if err != nil {
		return fmt.Errorf("listing %s: %w", f.name, err)
	}

	for _, m := range msgs {
		if err := ctx.Err(); err != nil {
			return err
		}
		rc, err := m.Open()
		if err != nil {
			f.log.Debug("skipping unreadable message", "folder", f.name, "key", m.Key())
			continue
		}
		msg, perr := parseMessage(rc)
		rc.Close()
		if perr != nil {
			f.log.Debug("skipping unparsable message", "folder", f.name, "key", m.Key())
			continue
		}
		item := mailstore.Item{Kind: mailstore.KindMessage, Message: msg}
		if err := fn(item); err != nil {
			return err
		}
	}
	return nil
}

// parseMessage reads one RFC 5322 message into the scanner's shape:
// sender and recipient handles plus a body suitable for signature
// mining (text/plain preferred, text/html kept with its markup).
func parseMessage(r io.Reader) (*mailstore.Message, error) {
	env, err := readEnvelope(r)
	if err != nil {
		return nil, err
	}

	msg := &mailstore.Message{Body: env.body}
	if env.from != nil {
		msg.Sender = mailstore.Address{Name: handleName(env.from.name, env.from.addr), Addr: env.from.addr}
	}
	for _, rcpt := range env.recipients {
		msg.Recipients = append(msg.Recipients, mailstore.Address{
			Name: handleName(rcpt.name, rcpt.addr),
			Addr: rcpt.addr,
		})
	}
	return msg, nil
}

// handleName falls back to the address when a participant has no
// display name, matching how mail clients render bare addresses.
func handleName(name, addr string) string {
	if strings.TrimSpace(name) != "" {
		return name
	}
	return addr
}
