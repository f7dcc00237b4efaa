package maildirstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/contactkit/mailharvest/internal/logging"
	"github.com/contactkit/mailharvest/internal/mailstore"
)

func testLogger() *logging.Logger {
	return &logging.Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

// makeMaildir creates the cur/new/tmp layout under path.
func makeMaildir(t *testing.T, path string) {
	t.Helper()
	for _, sub := range []string{"cur", "new", "tmp"} {
		if err := os.MkdirAll(filepath.Join(path, sub), 0750); err != nil {
			t.Fatal(err)
		}
	}
}

var msgSeq int

// deliver writes one message into the maildir's cur directory.
func deliver(t *testing.T, path, content string) {
	t.Helper()
	msgSeq++
	name := fmt.Sprintf("17000000%02d.m%d.test:2,S", msgSeq, msgSeq)
	if err := os.WriteFile(filepath.Join(path, "cur", name), []byte(content), 0640); err != nil {
		t.Fatal(err)
	}
}

const plainMessage = "From: Jane Doe <jane@example.com>\r\n" +
	"To: Bob Jones <bob@example.com>, carol@example.com\r\n" +
	"Cc: Dana Fox <dana@example.com>\r\n" +
	"Subject: quarterly numbers\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"thanks,\r\n" +
	"Marketing Manager at Contoso\r\n"

const htmlMessage = "From: Eli Gray <eli@example.com>\r\n" +
	"To: jane@example.com\r\n" +
	"Subject: hello\r\n" +
	"Content-Type: text/html; charset=utf-8\r\n" +
	"\r\n" +
	"<html><body><p>hi there</p></body></html>\r\n"

func TestOpen(t *testing.T) {
	t.Run("valid root", func(t *testing.T) {
		root := t.TempDir()
		if _, err := Open(root, testLogger()); err != nil {
			t.Errorf("Open() error = %v", err)
		}
	})

	t.Run("missing root", func(t *testing.T) {
		_, err := Open(filepath.Join(t.TempDir(), "nope"), testLogger())
		if !errors.Is(err, mailstore.ErrUnavailable) {
			t.Errorf("err = %v, want ErrUnavailable", err)
		}
	})

	t.Run("root is a file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "mail")
		if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
		_, err := Open(path, testLogger())
		if !errors.Is(err, mailstore.ErrUnavailable) {
			t.Errorf("err = %v, want ErrUnavailable", err)
		}
	})
}

func TestStore_Folder(t *testing.T) {
	root := t.TempDir()
	makeMaildir(t, root) // the root doubles as INBOX
	makeMaildir(t, filepath.Join(root, "Sent"))
	makeMaildir(t, filepath.Join(root, ".Trash"))

	s, err := Open(root, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	tests := []struct {
		id       mailstore.FolderID
		wantName string
		wantErr  error
	}{
		{id: mailstore.FolderInbox, wantName: "Inbox"},
		{id: mailstore.FolderSentItems, wantName: "Sent Items"},
		{id: mailstore.FolderDeletedItems, wantName: "Deleted Items"},
		{id: mailstore.FolderJunk, wantErr: mailstore.ErrFolderNotFound},
		{id: mailstore.FolderContacts, wantErr: mailstore.ErrFolderNotFound},
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
	root := t.TempDir()
	makeMaildir(t, root)
	makeMaildir(t, filepath.Join(root, "Sent"))
	makeMaildir(t, filepath.Join(root, "Drafts"))
	// A plain subdirectory is not a folder.
	if err := os.MkdirAll(filepath.Join(root, "attachments"), 0750); err != nil {
		t.Fatal(err)
	}

	s, err := Open(root, testLogger())
	if err != nil {
		t.Fatal(err)
	}

	names, err := s.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	want := []string{"Drafts", "INBOX", "Sent"}
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
	root := t.TempDir()
	sent := filepath.Join(root, "Sent")
	makeMaildir(t, sent)
	deliver(t, sent, plainMessage)

	s, err := Open(root, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	folder, err := s.Folder(context.Background(), mailstore.FolderSentItems)
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
	if len(msgs) != 1 {
		t.Fatalf("len(msgs) = %d, want 1", len(msgs))
	}

	msg := msgs[0]
	if msg.Sender == nil || msg.Sender.DisplayName() != "Jane Doe" || msg.Sender.Address() != "jane@example.com" {
		t.Errorf("Sender = %+v", msg.Sender)
	}
	if len(msg.Recipients) != 3 {
		t.Fatalf("Recipients = %d, want To x2 plus Cc", len(msg.Recipients))
	}
	if msg.Recipients[0].DisplayName() != "Bob Jones" {
		t.Errorf("Recipients[0] = %q", msg.Recipients[0].DisplayName())
	}
	// A bare address gets itself as display name.
	if msg.Recipients[1].DisplayName() != "carol@example.com" {
		t.Errorf("Recipients[1] = %q", msg.Recipients[1].DisplayName())
	}
	if msg.Recipients[2].Address() != "dana@example.com" {
		t.Errorf("Recipients[2] = %q", msg.Recipients[2].Address())
	}
	if !strings.Contains(msg.Body, "Marketing Manager at Contoso") {
		t.Errorf("Body = %q", msg.Body)
	}
}

func TestFolder_HTMLBodyKeepsMarkup(t *testing.T) {
	root := t.TempDir()
	makeMaildir(t, root)
	deliver(t, root, htmlMessage)

	s, err := Open(root, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	folder, err := s.Folder(context.Background(), mailstore.FolderInbox)
	if err != nil {
		t.Fatal(err)
	}

	var bodies []string
	err = folder.Items(context.Background(), func(item mailstore.Item) error {
		bodies = append(bodies, item.Message.Body)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(bodies) != 1 {
		t.Fatalf("len(bodies) = %d, want 1", len(bodies))
	}
	if !strings.Contains(bodies[0], "<body>") {
		t.Errorf("Body = %q, want markup preserved for the signature stripper", bodies[0])
	}
}

func TestFolder_Cancellation(t *testing.T) {
	root := t.TempDir()
	makeMaildir(t, root)
	deliver(t, root, plainMessage)

	s, err := Open(root, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	folder, err := s.Folder(context.Background(), mailstore.FolderInbox)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = folder.Items(ctx, func(mailstore.Item) error {
		t.Error("no items should be delivered after cancellation")
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestStore_Directory(t *testing.T) {
	root := t.TempDir()
	s, err := Open(root, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	if s.Directory() != nil {
		t.Error("maildir stores carry no directory capability")
	}
}
