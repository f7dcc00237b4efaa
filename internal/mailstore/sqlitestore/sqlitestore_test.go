package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/contactkit/mailharvest/internal/logging"
	"github.com/contactkit/mailharvest/internal/mailstore"
)

func testLogger() *logging.Logger {
	return &logging.Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

const archiveSchema = `
CREATE TABLE folders (
	id INTEGER PRIMARY KEY,
	name TEXT NOT NULL
);
CREATE TABLE messages (
	id INTEGER PRIMARY KEY,
	folder_id INTEGER NOT NULL,
	sender_name TEXT NOT NULL DEFAULT '',
	sender_address TEXT NOT NULL DEFAULT '',
	sender_smtp TEXT,
	body TEXT
);
CREATE TABLE recipients (
	message_id INTEGER NOT NULL,
	name TEXT NOT NULL DEFAULT '',
	address TEXT NOT NULL DEFAULT '',
	smtp TEXT,
	title TEXT
);
CREATE TABLE contacts (
	id INTEGER PRIMARY KEY,
	full_name TEXT,
	first_name TEXT,
	last_name TEXT,
	email TEXT,
	job_title TEXT,
	company TEXT
);
CREATE TABLE directory (
	display_name TEXT NOT NULL,
	smtp_address TEXT,
	job_title TEXT
);
`

// setupArchive builds a populated archive fixture and returns its path.
func setupArchive(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "archive.db")

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("creating fixture: %v", err)
	}
	defer db.Close()

	if _, err := db.Exec(archiveSchema); err != nil {
		t.Fatalf("applying schema: %v", err)
	}

	stmts := []string{
		`INSERT INTO folders (id, name) VALUES (1, 'Inbox'), (2, 'Sent Items'), (3, 'Trash')`,
		`INSERT INTO messages (id, folder_id, sender_name, sender_address, sender_smtp, body) VALUES
			(1, 1, 'Jane Doe', '/o=Corp/cn=jdoe', 'jane@example.com', 'regards,' || char(10) || 'Marketing Manager at Contoso'),
			(2, 1, '', '', NULL, 'no sender on this one'),
			(3, 2, 'Me Myself', 'me@example.com', NULL, '')`,
		`INSERT INTO recipients (message_id, name, address, smtp, title) VALUES
			(1, 'Bob Jones', 'bob@example.com', NULL, NULL),
			(3, 'Carol King', '/o=Corp/cn=cking', 'carol@example.com', 'Staff Accountant')`,
		`INSERT INTO contacts (id, full_name, first_name, last_name, email, job_title, company) VALUES
			(1, 'Dana Fox', 'Dana', 'Fox', 'dana@example.com', 'Auditor', NULL),
			(2, 'Eli Gray', NULL, NULL, 'eli@example.com', NULL, 'Gray Holdings')`,
		`INSERT INTO directory (display_name, smtp_address, job_title) VALUES
			('Jane Doe', 'jane@example.com', 'Director of Operations')`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("populating fixture: %v", err)
		}
	}
	return path
}

func openArchive(t *testing.T) *Store {
	t.Helper()
	s, err := Open(setupArchive(t), testLogger())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen_MissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nope.db"), testLogger())
	if !errors.Is(err, mailstore.ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
}

func TestOpen_MissingTables(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.db")
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(`CREATE TABLE unrelated (id INTEGER)`); err != nil {
		t.Fatal(err)
	}
	db.Close()

	if _, err := Open(path, testLogger()); !errors.Is(err, mailstore.ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
}

func TestStore_Folder(t *testing.T) {
	s := openArchive(t)
	ctx := context.Background()

	tests := []struct {
		id       mailstore.FolderID
		wantName string
		wantErr  error
	}{
		{id: mailstore.FolderInbox, wantName: "Inbox"},
		{id: mailstore.FolderSentItems, wantName: "Sent Items"},
		{id: mailstore.FolderDeletedItems, wantName: "Trash"},
		{id: mailstore.FolderContacts, wantName: "Contacts"},
		{id: mailstore.FolderDrafts, wantErr: mailstore.ErrFolderNotFound},
	}
	for _, tt := range tests {
		t.Run(string(tt.id), func(t *testing.T) {
			f, err := s.Folder(ctx, tt.id)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Folder() error = %v", err)
			}
			if f.Name() != tt.wantName {
				t.Errorf("Name() = %q, want %q", f.Name(), tt.wantName)
			}
		})
	}
}

func TestStore_List(t *testing.T) {
	s := openArchive(t)

	names, err := s.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	want := []string{"Inbox", "Sent Items", "Trash", "Contacts"}
	if len(names) != len(want) {
		t.Fatalf("names = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("names[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}

func TestFolder_Items(t *testing.T) {
	s := openArchive(t)
	folder, err := s.Folder(context.Background(), mailstore.FolderInbox)
	if err != nil {
		t.Fatal(err)
	}

	var msgs []*mailstore.Message
	err = folder.Items(context.Background(), func(item mailstore.Item) error {
		if item.Kind != mailstore.KindMessage {
			t.Errorf("Kind = %v, want message", item.Kind)
		}
		msgs = append(msgs, item.Message)
		return nil
	})
	if err != nil {
		t.Fatalf("Items() error = %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("len(msgs) = %d, want 2", len(msgs))
	}

	first := msgs[0]
	if first.Sender == nil {
		t.Fatal("first message should carry a sender")
	}
	if first.Sender.DisplayName() != "Jane Doe" {
		t.Errorf("DisplayName = %q", first.Sender.DisplayName())
	}
	if first.Sender.Address() != "/o=Corp/cn=jdoe" {
		t.Errorf("Address = %q", first.Sender.Address())
	}
	if smtp, ok := first.Sender.Property(mailstore.PropSMTPAddress); !ok || smtp != "jane@example.com" {
		t.Errorf("SMTP property = %q, %v", smtp, ok)
	}
	if len(first.Recipients) != 1 || first.Recipients[0].Address() != "bob@example.com" {
		t.Errorf("Recipients = %+v", first.Recipients)
	}

	if msgs[1].Sender != nil {
		t.Error("second message has no sender columns and should carry none")
	}
}

func TestFolder_RecipientTitle(t *testing.T) {
	s := openArchive(t)
	folder, err := s.Folder(context.Background(), mailstore.FolderSentItems)
	if err != nil {
		t.Fatal(err)
	}

	var msgs []*mailstore.Message
	err = folder.Items(context.Background(), func(item mailstore.Item) error {
		msgs = append(msgs, item.Message)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 || len(msgs[0].Recipients) != 1 {
		t.Fatalf("msgs = %+v", msgs)
	}

	rcpt := msgs[0].Recipients[0]
	if title, ok := rcpt.Property(mailstore.PropTitle); !ok || title != "Staff Accountant" {
		t.Errorf("title = %q, %v", title, ok)
	}
	if smtp, ok := rcpt.Property(mailstore.PropSMTPAddress); !ok || smtp != "carol@example.com" {
		t.Errorf("smtp = %q, %v", smtp, ok)
	}
}

func TestContactsFolder_Items(t *testing.T) {
	s := openArchive(t)
	folder, err := s.Folder(context.Background(), mailstore.FolderContacts)
	if err != nil {
		t.Fatal(err)
	}

	var entries []*mailstore.ContactEntry
	err = folder.Items(context.Background(), func(item mailstore.Item) error {
		if item.Kind != mailstore.KindContact {
			t.Errorf("Kind = %v, want contact", item.Kind)
		}
		entries = append(entries, item.Contact)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(entries))
	}
	if entries[0].FullName != "Dana Fox" || entries[0].JobTitle != "Auditor" {
		t.Errorf("entries[0] = %+v", entries[0])
	}
	if entries[1].Company != "Gray Holdings" || entries[1].JobTitle != "" {
		t.Errorf("entries[1] = %+v", entries[1])
	}
}

func TestStore_Directory(t *testing.T) {
	s := openArchive(t)

	dir := s.Directory()
	if dir == nil {
		t.Fatal("archive has a directory table; Directory() should not be nil")
	}

	entry, err := dir.Resolve(context.Background(), "Jane Doe")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if entry.PrimarySMTP != "jane@example.com" || entry.JobTitle != "Director of Operations" {
		t.Errorf("entry = %+v", entry)
	}

	if _, err := dir.Resolve(context.Background(), "Stranger"); err == nil {
		t.Error("unknown display name should not resolve")
	}
}

func TestStore_NoOptionalTables(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bare.db")
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatal(err)
	}
	core := `
CREATE TABLE folders (id INTEGER PRIMARY KEY, name TEXT NOT NULL);
CREATE TABLE messages (id INTEGER PRIMARY KEY, folder_id INTEGER, sender_name TEXT DEFAULT '', sender_address TEXT DEFAULT '', sender_smtp TEXT, body TEXT);
CREATE TABLE recipients (message_id INTEGER, name TEXT DEFAULT '', address TEXT DEFAULT '', smtp TEXT, title TEXT);
`
	if _, err := db.Exec(core); err != nil {
		t.Fatal(err)
	}
	db.Close()

	s, err := Open(path, testLogger())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer s.Close()

	if s.Directory() != nil {
		t.Error("Directory() should be nil without a directory table")
	}
	if _, err := s.Folder(context.Background(), mailstore.FolderContacts); !errors.Is(err, mailstore.ErrFolderNotFound) {
		t.Errorf("contacts folder err = %v, want ErrFolderNotFound", err)
	}
}
