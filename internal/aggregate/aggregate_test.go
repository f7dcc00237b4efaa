package aggregate

import (
	"reflect"
	"testing"

	"github.com/contactkit/mailharvest/internal/contact"
)

func rec(first, last, email, role, source string) contact.Record {
	return contact.Record{
		FirstName: first,
		LastName:  last,
		FullName:  first + " " + last,
		Email:     email,
		Role:      role,
		Source:    source,
	}
}

func TestAggregate_Dedupe(t *testing.T) {
	records := []contact.Record{
		rec("John", "Smith", "john@example.com", "", "Sent Items (Recipient)"),
		rec("John", "Smith", "john@example.com", "", "Inbox (Sender)"),
		rec("Jane", "Doe", "jane@example.com", "", "Inbox (Sender)"),
	}

	got := Aggregate(records)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	// First occurrence wins when no record in the group carries a role.
	if got[0].Source != "Inbox (Sender)" || got[0].Email != "jane@example.com" {
		t.Errorf("got[0] = %+v, want Jane's first record", got[0])
	}
	if got[1].Source != "Sent Items (Recipient)" {
		t.Errorf("got[1].Source = %q, want the first-seen record", got[1].Source)
	}
}

func TestAggregate_CaseInsensitiveGrouping(t *testing.T) {
	records := []contact.Record{
		rec("John", "Smith", "John.Smith@Example.com", "", "Sent Items (Recipient)"),
		rec("John", "Smith", "john.smith@example.com", "Engineer", "Inbox (Sender)"),
	}

	got := Aggregate(records)
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1: addresses differ only by case", len(got))
	}
	if got[0].Role != "Engineer" {
		t.Errorf("Role = %q, want the role-bearing record to win", got[0].Role)
	}
}

func TestAggregate_RolePreference(t *testing.T) {
	tests := []struct {
		name       string
		records    []contact.Record
		wantRole   string
		wantSource string
	}{
		{
			name: "first record with role wins",
			records: []contact.Record{
				rec("John", "Smith", "john@example.com", "", "Sent Items (Recipient)"),
				rec("John", "Smith", "john@example.com", "Engineer", "Inbox (Sender)"),
				rec("John", "Smith", "john@example.com", "Manager", "Archive (Sender)"),
			},
			wantRole:   "Engineer",
			wantSource: "Inbox (Sender)",
		},
		{
			name: "no role anywhere falls back to first record",
			records: []contact.Record{
				rec("John", "Smith", "john@example.com", "", "Sent Items (Recipient)"),
				rec("John", "Smith", "john@example.com", "", "Inbox (Sender)"),
			},
			wantRole:   "",
			wantSource: "Sent Items (Recipient)",
		},
		{
			name: "role on the first record",
			records: []contact.Record{
				rec("John", "Smith", "john@example.com", "Engineer", "Contacts Folder"),
				rec("John", "Smith", "john@example.com", "Manager", "Inbox (Sender)"),
			},
			wantRole:   "Engineer",
			wantSource: "Contacts Folder",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Aggregate(tt.records)
			if len(got) != 1 {
				t.Fatalf("len = %d, want 1", len(got))
			}
			if got[0].Role != tt.wantRole {
				t.Errorf("Role = %q, want %q", got[0].Role, tt.wantRole)
			}
			if got[0].Source != tt.wantSource {
				t.Errorf("Source = %q, want %q", got[0].Source, tt.wantSource)
			}
		})
	}
}

func TestAggregate_SkipsInvalidEmails(t *testing.T) {
	records := []contact.Record{
		rec("No", "Email", "", "Engineer", "Inbox (Sender)"),
		rec("Bad", "Email", "not-an-address", "Engineer", "Inbox (Sender)"),
		rec("Jane", "Doe", "jane@example.com", "", "Inbox (Sender)"),
	}

	got := Aggregate(records)
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	if got[0].Email != "jane@example.com" {
		t.Errorf("Email = %q, want jane@example.com", got[0].Email)
	}
}

func TestAggregate_SortOrder(t *testing.T) {
	records := []contact.Record{
		rec("Zoe", "Young", "zoe@example.com", "", "Inbox (Sender)"),
		rec("Adam", "Young", "adam@example.com", "", "Inbox (Sender)"),
		rec("Jane", "Albright", "jane@example.com", "", "Inbox (Sender)"),
		rec("", "", "noname@example.com", "", "Inbox (Sender)"),
	}

	got := Aggregate(records)
	wantEmails := []string{"noname@example.com", "jane@example.com", "adam@example.com", "zoe@example.com"}
	if len(got) != len(wantEmails) {
		t.Fatalf("len = %d, want %d", len(got), len(wantEmails))
	}
	for i, want := range wantEmails {
		if got[i].Email != want {
			t.Errorf("got[%d].Email = %q, want %q", i, got[i].Email, want)
		}
	}
}

func TestAggregate_Idempotent(t *testing.T) {
	records := []contact.Record{
		rec("John", "Smith", "john@example.com", "", "Sent Items (Recipient)"),
		rec("John", "Smith", "john@example.com", "Engineer", "Inbox (Sender)"),
		rec("Jane", "Doe", "jane@example.com", "", "Inbox (Sender)"),
		rec("Jane", "Doe", "JANE@example.com", "Director", "Archive (Recipient)"),
	}

	once := Aggregate(records)
	twice := Aggregate(once)
	if !reflect.DeepEqual(once, twice) {
		t.Errorf("Aggregate is not idempotent:\nonce:  %+v\ntwice: %+v", once, twice)
	}
}

func TestAggregate_Empty(t *testing.T) {
	if got := Aggregate(nil); len(got) != 0 {
		t.Errorf("Aggregate(nil) = %v, want empty", got)
	}
}
