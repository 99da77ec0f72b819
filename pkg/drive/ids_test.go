package drive

import (
	"strings"
	"testing"
)

func TestIssueIDFresh(t *testing.T) {
	env := newTestTenant(t)

	id, err := env.tenant.IssueID(string(PrefixFile), "")
	if err != nil {
		t.Fatalf("IssueID: %v", err)
	}
	if !strings.HasPrefix(id, string(PrefixFile)) {
		t.Fatalf("id = %q lacks prefix", id)
	}
	if err := ValidateID(id); err != nil {
		t.Fatalf("minted id fails validation: %v", err)
	}
	if !env.tenant.IsClaimed(id) {
		t.Fatal("minted id not claimed")
	}

	before := env.tenant.State().NonceUUID
	if _, err := env.tenant.IssueID(string(PrefixFolder), ""); err != nil {
		t.Fatalf("second mint: %v", err)
	}
	if env.tenant.State().NonceUUID != before+1 {
		t.Fatal("nonce did not advance")
	}
}

func TestIssueIDSuggested(t *testing.T) {
	env := newTestTenant(t)
	const suggested = "FileID_0b9e7c3a-1d2f-4b5a-9c8d-7e6f5a4b3c2d"

	id, err := env.tenant.IssueID(string(PrefixFile), suggested)
	if err != nil {
		t.Fatalf("IssueID(suggested): %v", err)
	}
	if id != suggested {
		t.Fatalf("id = %q, want the suggestion back", id)
	}

	// The same suggestion can never be claimed twice.
	if _, err := env.tenant.IssueID(string(PrefixFile), suggested); errCode(err) != ErrAlreadyClaimed {
		t.Fatalf("reclaim: err = %v, want already_claimed", err)
	}
}

func TestIssueIDBadFormat(t *testing.T) {
	env := newTestTenant(t)

	tests := []struct {
		name      string
		prefix    string
		suggested string
	}{
		{"wrong prefix", string(PrefixFile), "FolderID_0b9e7c3a-1d2f-4b5a-9c8d-7e6f5a4b3c2d"},
		{"no prefix", string(PrefixFile), "0b9e7c3a-1d2f-4b5a-9c8d-7e6f5a4b3c2d"},
		{"not a uuid", string(PrefixFile), "FileID_not-a-uuid"},
		{"uuid v1", string(PrefixFile), "FileID_f47ac10b-58cc-1372-8567-0e02b2c3d479"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := env.tenant.IssueID(tt.prefix, tt.suggested); errCode(err) != ErrBadRequest {
				t.Errorf("IssueID(%q) err = %v, want bad_request", tt.suggested, err)
			}
		})
	}
}

func TestRebindExternalID(t *testing.T) {
	env := newTestTenant(t)
	internal := "FileID_0b9e7c3a-1d2f-4b5a-9c8d-7e6f5a4b3c2d"

	env.tenant.RebindExternalID("", "crm-42", internal)
	ids, ok := env.tenant.LookupExternalID("crm-42")
	if !ok || len(ids) != 1 || ids[0] != internal {
		t.Fatalf("lookup = (%v, %v)", ids, ok)
	}

	env.tenant.RebindExternalID("crm-42", "crm-99", internal)
	if _, ok := env.tenant.LookupExternalID("crm-42"); ok {
		t.Fatal("old binding survived")
	}
	ids, ok = env.tenant.LookupExternalID("crm-99")
	if !ok || len(ids) != 1 || ids[0] != internal {
		t.Fatalf("new lookup = (%v, %v)", ids, ok)
	}

	// Rebinding to the same target twice changes nothing.
	env.tenant.RebindExternalID("crm-42", "crm-99", internal)
	ids, _ = env.tenant.LookupExternalID("crm-99")
	if len(ids) != 1 {
		t.Fatalf("idempotent rebind duplicated the entry: %v", ids)
	}
}

func TestExternalIDSharedByManyInternals(t *testing.T) {
	env := newTestTenant(t)
	a := "FileID_0b9e7c3a-1d2f-4b5a-9c8d-7e6f5a4b3c2d"
	b := "FolderID_1c8d6b2a-3e4f-4a5b-8c7d-6e5f4a3b2c1d"

	env.tenant.RebindExternalID("", "shared", a)
	env.tenant.RebindExternalID("", "shared", b)

	ids, ok := env.tenant.LookupExternalID("shared")
	if !ok || len(ids) != 2 {
		t.Fatalf("lookup = (%v, %v), want both internals", ids, ok)
	}

	env.tenant.RebindExternalID("shared", "", a)
	ids, ok = env.tenant.LookupExternalID("shared")
	if !ok || len(ids) != 1 || ids[0] != b {
		t.Fatalf("after unbind = (%v, %v)", ids, ok)
	}
}
