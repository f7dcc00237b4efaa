// Package scan walks mail-store folders and emits raw contact records.
package scan

import (
	"context"

	"github.com/contactkit/mailharvest/internal/contact"
	"github.com/contactkit/mailharvest/internal/logging"
	"github.com/contactkit/mailharvest/internal/mailstore"
	"github.com/contactkit/mailharvest/internal/metrics"
	"github.com/contactkit/mailharvest/internal/resolve"
	"github.com/contactkit/mailharvest/internal/role"
)

// folderLabels are the display names used in record source tags.
var folderLabels = map[mailstore.FolderID]string{
	mailstore.FolderSentItems:    "Sent Items",
	mailstore.FolderInbox:        "Inbox",
	mailstore.FolderDeletedItems: "Deleted Items",
	mailstore.FolderDrafts:       "Drafts",
	mailstore.FolderOutbox:       "Outbox",
	mailstore.FolderJunk:         "Junk Email",
	mailstore.FolderArchive:      "Archive",
}

// Label returns the display name for a well-known folder id.
func Label(id mailstore.FolderID) string {
	if l, ok := folderLabels[id]; ok {
		return l
	}
	return string(id)
}

// Config controls a scan pass.
type Config struct {
	// Folders is the traversal order. The aggregator's first-match-wins
	// rule makes this an implicit source priority.
	Folders []mailstore.FolderID
	// IncludeContacts also scans the address book after the mail folders.
	IncludeContacts bool
}

// Stats summarizes one scan pass.
type Stats struct {
	Items          int // mail items visited
	FoldersScanned int
	FoldersSkipped int
}

// Scanner walks folders, resolving every sender and recipient it sees.
// One Scanner serves one scan pass: the role extractor's cache is scoped
// to it and discarded with it.
type Scanner struct {
	store    mailstore.Store
	resolver *resolve.Resolver
	roles    *role.Extractor
	log      *logging.Logger
	cfg      Config
}

// New builds a Scanner over an open store.
func New(store mailstore.Store, resolver *resolve.Resolver, roles *role.Extractor, log *logging.Logger, cfg Config) *Scanner {
	return &Scanner{
		store:    store,
		resolver: resolver,
		roles:    roles,
		log:      log.Scan(),
		cfg:      cfg,
	}
}

// Scan visits every configured folder in order and calls emit for each
// raw record, in encounter order. A folder that cannot be opened or
// enumerated is skipped; per-item failures drop only that candidate.
// progressFn, if non-nil, receives the percentage band covered by folder
// traversal. Cancellation is honored between folders only, so a folder's
// records are all-or-nothing.
func (s *Scanner) Scan(ctx context.Context, emit func(contact.Record), progressFn func(pct int, phase string)) (Stats, error) {
	var stats Stats

	total := len(s.cfg.Folders)
	for i, id := range s.cfg.Folders {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		label := Label(id)
		if progressFn != nil {
			// Folder traversal occupies the 10-80% band.
			progressFn(10+(i+1)*70/max(total, 1), "Scanning "+label+"...")
		}

		folder, err := s.store.Folder(ctx, id)
		if err != nil {
			stats.FoldersSkipped++
			metrics.FoldersSkipped.Inc()
			s.log.WarnContext(ctx, "skipping folder", "folder", label, "reason", err.Error())
			continue
		}

		if err := s.scanFolder(ctx, id, folder, emit, &stats); err != nil {
			stats.FoldersSkipped++
			metrics.FoldersSkipped.Inc()
			s.log.WarnContext(ctx, "folder enumeration failed", "folder", label, "reason", err.Error())
			continue
		}
		stats.FoldersScanned++
	}

	if s.cfg.IncludeContacts {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if progressFn != nil {
			progressFn(80, "Scanning Contacts folder...")
		}
		s.scanContacts(ctx, emit, &stats)
	}

	return stats, nil
}

func (s *Scanner) scanFolder(ctx context.Context, id mailstore.FolderID, folder mailstore.Folder, emit func(contact.Record), stats *Stats) error {
	label := Label(id)
	return folder.Items(ctx, func(item mailstore.Item) error {
		if item.Kind != mailstore.KindMessage || item.Message == nil {
			return nil
		}
		stats.Items++
		metrics.RecordItem(label)
		s.scanMessage(ctx, id, label, item.Message, emit)
		return nil
	})
}

// scanMessage emits up to one sender record and one record per
// recipient. Each candidate fails independently.
func (s *Scanner) scanMessage(ctx context.Context, id mailstore.FolderID, label string, msg *mailstore.Message, emit func(contact.Record)) {
	if msg.Sender != nil && msg.Sender.DisplayName() != "" {
		s.emitSender(ctx, id, label, msg, emit)
	}

	for _, h := range msg.Recipients {
		s.emitRecipient(ctx, id, label, msg, h, emit)
	}
}

func (s *Scanner) emitSender(ctx context.Context, id mailstore.FolderID, label string, msg *mailstore.Message, emit func(contact.Record)) {
	h := msg.Sender
	res, ok := s.resolver.Resolve(ctx, h)
	if !ok {
		metrics.RecordResolution("failed")
		metrics.RecordDrop("unresolved_sender")
		return
	}
	recordResolution(res)

	roleStr := res.Role
	if roleStr != "" {
		metrics.RecordRole("directory")
	}
	// Signature mining is skipped in the sent folder: the sender there
	// is the mailbox owner, and the footer would be misread as their
	// role.
	if roleStr == "" && id != mailstore.FolderSentItems {
		if sig := s.roles.Extract(res.Email, h.DisplayName(), msg.Body); sig != "" {
			roleStr = sig
			metrics.RecordRole("signature")
		}
	}

	rec := contact.NewRecord(h.DisplayName(), res.Email, roleStr, label+" (Sender)")
	rec.Guessed = res.Guessed
	metrics.RecordEmit("sender")
	emit(rec)
}

func (s *Scanner) emitRecipient(ctx context.Context, id mailstore.FolderID, label string, msg *mailstore.Message, h mailstore.Handle, emit func(contact.Record)) {
	if h == nil {
		return
	}
	res, ok := s.resolver.Resolve(ctx, h)
	if !ok {
		metrics.RecordResolution("failed")
		metrics.RecordDrop("unresolved_recipient")
		return
	}
	recordResolution(res)

	// Directory metadata first: a title on the handle, then the
	// resolver's side channel.
	roleStr, _ := h.Property(mailstore.PropTitle)
	if roleStr == "" {
		roleStr = res.Role
	}
	if roleStr != "" {
		metrics.RecordRole("directory")
	}
	// The inbox is where other parties' signatures appear.
	if roleStr == "" && id == mailstore.FolderInbox {
		if sig := s.roles.Extract(res.Email, h.DisplayName(), msg.Body); sig != "" {
			roleStr = sig
			metrics.RecordRole("signature")
		}
	}

	rec := contact.NewRecord(h.DisplayName(), res.Email, roleStr, label+" (Recipient)")
	rec.Guessed = res.Guessed
	metrics.RecordEmit("recipient")
	emit(rec)
}

// scanContacts walks the address book. Absence of a contacts folder is
// not an error; the scan simply moves on.
func (s *Scanner) scanContacts(ctx context.Context, emit func(contact.Record), stats *Stats) {
	folder, err := s.store.Folder(ctx, mailstore.FolderContacts)
	if err != nil {
		s.log.DebugContext(ctx, "no contacts folder", "reason", err.Error())
		return
	}

	err = folder.Items(ctx, func(item mailstore.Item) error {
		if item.Kind != mailstore.KindContact || item.Contact == nil {
			return nil
		}
		entry := item.Contact
		if !contact.ValidEmail(entry.Email) {
			metrics.RecordDrop("invalid_contact_email")
			return nil
		}

		roleStr := entry.JobTitle
		if roleStr == "" {
			roleStr = entry.Company
		}
		if roleStr != "" {
			metrics.RecordRole("contact_item")
		}

		rec := contact.NewRecord(entry.FullName, entry.Email, roleStr, "Contacts Folder")
		if entry.FirstName != "" {
			rec.FirstName = entry.FirstName
		}
		if entry.LastName != "" {
			rec.LastName = entry.LastName
		}
		metrics.RecordEmit("contact")
		emit(rec)
		return nil
	})
	if err != nil {
		s.log.WarnContext(ctx, "contacts enumeration failed", "reason", err.Error())
		return
	}
	stats.FoldersScanned++
}

func recordResolution(res resolve.Resolution) {
	if res.Guessed {
		metrics.RecordResolution("guessed")
	} else {
		metrics.RecordResolution("resolved")
	}
}
