package drive

import (
	"strings"
	"testing"
)

func TestPrincipalTextCanonicalForm(t *testing.T) {
	// The empty body encodes to the well-known management principal.
	if got := PrincipalText(nil); got != "aaaaa-aa" {
		t.Fatalf("PrincipalText(nil) = %q, want aaaaa-aa", got)
	}

	text := PrincipalText([]byte("alice"))
	if err := validatePrincipal(text); err != nil {
		t.Fatalf("canonical text rejected: %v", err)
	}
}

func TestCreateContactRejectsMalformedPrincipal(t *testing.T) {
	valid := PrincipalText([]byte("alice"))

	tests := []struct {
		name      string
		principal string
	}{
		{"not base32", "principal-alice"},
		{"uppercase", strings.ToUpper(valid)},
		{"wrong grouping", strings.ReplaceAll(valid, "-", "")},
		{"bad checksum", "b" + valid[1:]},
		{"empty groups", "-----"},
		{"body too long", PrincipalText(make([]byte, 29)) + "-aaaaa"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestTenant(t)
			_, err := env.tenant.CreateContact(ContactInput{
				Name:         "alice",
				ICPPrincipal: tt.principal,
			})
			if errCode(err) != ErrBadRequest {
				t.Errorf("CreateContact(%q) err = %v, want bad_request", tt.principal, err)
			}
		})
	}
}

func TestCreateContactStoresValidPrincipal(t *testing.T) {
	env := newTestTenant(t)
	principal := PrincipalText([]byte("alice"))

	contact, err := env.tenant.CreateContact(ContactInput{
		Name:         "alice",
		ICPPrincipal: principal,
	})
	if err != nil {
		t.Fatalf("CreateContact: %v", err)
	}

	byPrincipal, err := env.tenant.GetContactByICP(principal)
	if err != nil {
		t.Fatalf("GetContactByICP: %v", err)
	}
	if byPrincipal.ID != contact.ID {
		t.Fatalf("principal resolves to %s, want %s", byPrincipal.ID, contact.ID)
	}

	// A second contact cannot reuse the principal.
	_, err = env.tenant.CreateContact(ContactInput{
		Name:         "impostor",
		ICPPrincipal: principal,
	})
	if errCode(err) != ErrAlreadyExists {
		t.Fatalf("duplicate principal: err = %v, want already_exists", err)
	}
}
