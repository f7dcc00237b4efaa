// Package imapstore reads contacts from a live mailbox over IMAP.
package imapstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"github.com/contactkit/mailharvest/internal/logging"
	"github.com/contactkit/mailharvest/internal/mailstore"
)

// Config holds the connection settings.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	TLS      bool
}

// specialUse maps well-known folder ids to IMAP SPECIAL-USE attributes.
var specialUse = map[mailstore.FolderID]imap.MailboxAttr{
	mailstore.FolderSentItems:    imap.MailboxAttrSent,
	mailstore.FolderDeletedItems: imap.MailboxAttrTrash,
	mailstore.FolderDrafts:       imap.MailboxAttrDrafts,
	mailstore.FolderJunk:         imap.MailboxAttrJunk,
	mailstore.FolderArchive:      imap.MailboxAttrArchive,
}

// nameFallbacks are tried when the server advertises no SPECIAL-USE
// attribute for a folder.
var nameFallbacks = map[mailstore.FolderID][]string{
	mailstore.FolderSentItems:    {"Sent", "Sent Items", "Sent Messages", "[Gmail]/Sent Mail"},
	mailstore.FolderDeletedItems: {"Trash", "Deleted Items", "[Gmail]/Trash"},
	mailstore.FolderDrafts:       {"Drafts", "[Gmail]/Drafts"},
	mailstore.FolderOutbox:       {"Outbox"},
	mailstore.FolderJunk:         {"Junk", "Spam", "Junk Email", "[Gmail]/Spam"},
	mailstore.FolderArchive:      {"Archive", "Archives", "[Gmail]/All Mail"},
}

// Store is a connected IMAP session. Folder enumeration is sequential;
// the single scan worker selects one mailbox at a time.
type Store struct {
	client    *imapclient.Client
	mailboxes []*imap.ListData
	log       *logging.Logger
}

// Dial connects, authenticates, and lists the account's mailboxes.
// Any failure here means the backend is unreachable, which is fatal for
// the run.
func Dial(_ context.Context, cfg Config, log *logging.Logger) (*Store, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	var client *imapclient.Client
	var err error
	if cfg.TLS {
		client, err = imapclient.DialTLS(addr, nil)
	} else {
		client, err = imapclient.DialStartTLS(addr, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: connecting to %s: %v", mailstore.ErrUnavailable, addr, err)
	}

	if err := client.Login(cfg.Username, cfg.Password).Wait(); err != nil {
		_ = client.Logout().Wait()
		return nil, fmt.Errorf("%w: authentication failed for %s: %v", mailstore.ErrUnavailable, cfg.Username, err)
	}

	mailboxes, err := client.List("", "*", nil).Collect()
	if err != nil {
		_ = client.Logout().Wait()
		return nil, fmt.Errorf("%w: listing mailboxes: %v", mailstore.ErrUnavailable, err)
	}

	return &Store{client: client, mailboxes: mailboxes, log: log.Store()}, nil
}

// Folder resolves a well-known folder via SPECIAL-USE attributes, then
// by common mailbox names.
func (s *Store) Folder(_ context.Context, id mailstore.FolderID) (mailstore.Folder, error) {
	if id == mailstore.FolderInbox {
		return &folder{store: s, mailbox: "INBOX", name: "Inbox"}, nil
	}
	if id == mailstore.FolderContacts {
		return nil, fmt.Errorf("%w: %s", mailstore.ErrFolderNotFound, id)
	}

	if attr, ok := specialUse[id]; ok {
		for _, mb := range s.mailboxes {
			for _, a := range mb.Attrs {
				if a == attr {
					return &folder{store: s, mailbox: mb.Mailbox, name: mb.Mailbox}, nil
				}
			}
		}
	}

	for _, want := range nameFallbacks[id] {
		for _, mb := range s.mailboxes {
			if strings.EqualFold(mb.Mailbox, want) {
				return &folder{store: s, mailbox: mb.Mailbox, name: mb.Mailbox}, nil
			}
		}
	}

	return nil, fmt.Errorf("%w: %s", mailstore.ErrFolderNotFound, id)
}

// List returns every mailbox the server advertises.
func (s *Store) List(_ context.Context) ([]string, error) {
	names := make([]string, 0, len(s.mailboxes))
	for _, mb := range s.mailboxes {
		names = append(names, mb.Mailbox)
	}
	return names, nil
}

// Directory returns nil: plain IMAP exposes no directory capability.
func (s *Store) Directory() mailstore.Directory { return nil }

func (s *Store) Close() error {
	return s.client.Logout().Wait()
}

type folder struct {
	store   *Store
	mailbox string
	name    string
}

func (f *folder) Name() string { return f.name }

// Items selects the mailbox read-only and fetches every message with
// its envelope and body. Messages that fail to collect are skipped
// individually.
func (f *folder) Items(ctx context.Context, fn func(mailstore.Item) error) error {
	selectData, err := f.store.client.Select(f.mailbox, &imap.SelectOptions{ReadOnly: true}).Wait()
	if err != nil {
		return fmt.Errorf("selecting %s: %w", f.mailbox, err)
	}
	if selectData.NumMessages == 0 {
		return nil
	}

	var seqSet imap.SeqSet
	seqSet.AddRange(1, selectData.NumMessages)

	bodySection := &imap.FetchItemBodySection{Peek: true}
	fetchCmd := f.store.client.Fetch(seqSet, &imap.FetchOptions{
		Envelope:    true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	})
	defer fetchCmd.Close()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		msg := fetchCmd.Next()
		if msg == nil {
			break
		}
		buf, err := msg.Collect()
		if err != nil {
			continue
		}

		item := mailstore.Item{
			Kind:    mailstore.KindMessage,
			Message: messageFromBuffer(buf, bodySection),
		}
		if err := fn(item); err != nil {
			return err
		}
	}

	return fetchCmd.Close()
}

// messageFromBuffer converts a fetched message into the scanner's shape.
func messageFromBuffer(buf *imapclient.FetchMessageBuffer, section *imap.FetchItemBodySection) *mailstore.Message {
	msg := &mailstore.Message{}

	if buf.Envelope != nil {
		if len(buf.Envelope.From) > 0 {
			msg.Sender = handleFromAddress(buf.Envelope.From[0])
		}
		for _, a := range buf.Envelope.To {
			msg.Recipients = append(msg.Recipients, handleFromAddress(a))
		}
		for _, a := range buf.Envelope.Cc {
			msg.Recipients = append(msg.Recipients, handleFromAddress(a))
		}
	}

	if raw := buf.FindBodySection(section); raw != nil {
		msg.Body = extractBody(raw)
	}
	return msg
}

func handleFromAddress(a imap.Address) mailstore.Address {
	name := a.Name
	if strings.TrimSpace(name) == "" {
		name = a.Addr()
	}
	return mailstore.Address{Name: name, Addr: a.Addr()}
}
