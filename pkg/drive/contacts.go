package drive

import (
	"encoding/base32"
	"encoding/binary"
	"hash/crc32"
	"regexp"
	"strings"
)

const (
	maxNameLen       = 256
	maxNoteLen       = 8192
	maxURLLen        = 4096
	maxExternalIDLen = 256
	maxPayloadLen    = 8192
	maxFiltersLen    = 256
)

var evmAddressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// maxPrincipalBodyLen is the longest raw principal an ICP text encodes.
const maxPrincipalBodyLen = 29

var principalEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// validatePrincipal checks an ICP principal text: lowercase base32 in
// dash-separated groups of five, a big-endian CRC-32 over the body in the
// first four bytes, body at most 29 bytes. Re-encoding must reproduce the
// input exactly, which rejects wrong grouping and mixed case.
func validatePrincipal(text string) error {
	bad := BadRequest("icp_principal", "icp_principal is not a valid principal")
	ungrouped := strings.ReplaceAll(text, "-", "")
	raw, err := principalEncoding.DecodeString(strings.ToUpper(ungrouped))
	if err != nil || len(raw) < 4 || len(raw) > 4+maxPrincipalBodyLen {
		return bad
	}
	body := raw[4:]
	if binary.BigEndian.Uint32(raw[:4]) != crc32.ChecksumIEEE(body) {
		return bad
	}
	if PrincipalText(body) != text {
		return bad
	}
	return nil
}

// PrincipalText renders a raw principal in its canonical text form.
func PrincipalText(body []byte) string {
	framed := make([]byte, 4, 4+len(body))
	binary.BigEndian.PutUint32(framed, crc32.ChecksumIEEE(body))
	framed = append(framed, body...)
	enc := strings.ToLower(principalEncoding.EncodeToString(framed))

	var b strings.Builder
	for i := 0; i < len(enc); i++ {
		if i > 0 && i%5 == 0 {
			b.WriteByte('-')
		}
		b.WriteByte(enc[i])
	}
	return b.String()
}

func validateName(name string) error {
	if name == "" {
		return BadRequest("name", "name is required")
	}
	if len(name) > maxNameLen {
		return BadRequest("name", "name exceeds 256 characters")
	}
	return nil
}

func validateNote(field, note string) error {
	if len(note) > maxNoteLen {
		return BadRequest(field, field+" exceeds 8192 characters")
	}
	return nil
}

func validateURL(field, raw string) error {
	if raw == "" {
		return nil
	}
	if len(raw) > maxURLLen {
		return BadRequest(field, field+" exceeds 4096 characters")
	}
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		return BadRequest(field, field+" must start with http:// or https://")
	}
	return nil
}

func validateExternalID(external string) error {
	if len(external) > maxExternalIDLen {
		return BadRequest("external_id", "external_id exceeds 256 characters")
	}
	return nil
}

// ContactInput carries the fields of a new or updated contact.
type ContactInput struct {
	ID           string
	Name         string
	AvatarURL    string
	PublicNote   string
	PrivateNote  string
	ICPPrincipal string
	EVMAddress   string
	ExternalID   string
}

func validateContactInput(in ContactInput) error {
	if err := validateName(in.Name); err != nil {
		return err
	}
	if err := validateURL("avatar_url", in.AvatarURL); err != nil {
		return err
	}
	if err := validateNote("public_note", in.PublicNote); err != nil {
		return err
	}
	if err := validateNote("private_note", in.PrivateNote); err != nil {
		return err
	}
	if in.EVMAddress != "" && !evmAddressPattern.MatchString(in.EVMAddress) {
		return BadRequest("evm_address", "evm_address must be 0x followed by 40 hex characters")
	}
	if in.ICPPrincipal != "" {
		if err := validatePrincipal(in.ICPPrincipal); err != nil {
			return err
		}
	}
	return validateExternalID(in.ExternalID)
}

// GetContact returns the contact record for id.
func (t *Tenant) GetContact(id UserID) (Contact, error) {
	contact, ok := t.contacts.Get(id)
	if !ok {
		return Contact{}, NotFound("contact")
	}
	return contact, nil
}

// GetContactByICP resolves an ICP principal to its contact.
func (t *Tenant) GetContactByICP(principal string) (Contact, error) {
	id, ok := t.icpIndex.Get(principal)
	if !ok {
		return Contact{}, NotFound("contact")
	}
	return t.GetContact(id)
}

// Contacts returns every contact in insertion order.
func (t *Tenant) Contacts() []Contact {
	ids := t.contactList.Items()
	out := make([]Contact, 0, len(ids))
	for _, id := range ids {
		if contact, ok := t.contacts.Get(id); ok {
			out = append(out, contact)
		}
	}
	return out
}

// CreateContact registers a user record. The ICP principal, when present,
// must be unique across the tenant.
func (t *Tenant) CreateContact(in ContactInput) (Contact, error) {
	if err := validateContactInput(in); err != nil {
		return Contact{}, err
	}
	if in.ICPPrincipal != "" {
		if _, taken := t.icpIndex.Get(in.ICPPrincipal); taken {
			return Contact{}, &Error{Code: ErrAlreadyExists, Message: "a contact with this principal already exists", Field: "icp_principal"}
		}
	}

	id, err := t.IssueID(string(PrefixUser), in.ID)
	if err != nil {
		return Contact{}, err
	}
	contact := Contact{
		ID:           UserID(id),
		Name:         in.Name,
		AvatarURL:    in.AvatarURL,
		PublicNote:   in.PublicNote,
		PrivateNote:  in.PrivateNote,
		ICPPrincipal: in.ICPPrincipal,
		EVMAddress:   in.EVMAddress,
		ExternalID:   in.ExternalID,
		CreatedAtMS:  t.nowMS(),
	}
	t.contacts.Insert(contact.ID, contact)
	t.contactList.Append(contact.ID)
	if in.ICPPrincipal != "" {
		t.icpIndex.Insert(in.ICPPrincipal, contact.ID)
	}
	if in.ExternalID != "" {
		t.RebindExternalID("", in.ExternalID, id)
	}
	return contact, nil
}

// UpdateContact edits a contact. Changing the ICP principal re-keys the
// principal index; changing the external ID rebinds it.
func (t *Tenant) UpdateContact(id UserID, in ContactInput) (Contact, error) {
	existing, ok := t.contacts.Get(id)
	if !ok {
		return Contact{}, NotFound("contact")
	}
	if in.Name == "" {
		in.Name = existing.Name
	}
	if err := validateContactInput(in); err != nil {
		return Contact{}, err
	}
	if in.ICPPrincipal != "" && in.ICPPrincipal != existing.ICPPrincipal {
		if _, taken := t.icpIndex.Get(in.ICPPrincipal); taken {
			return Contact{}, &Error{Code: ErrAlreadyExists, Message: "a contact with this principal already exists", Field: "icp_principal"}
		}
	}

	t.contacts.Update(id, func(c *Contact) {
		c.Name = in.Name
		if in.AvatarURL != "" {
			c.AvatarURL = in.AvatarURL
		}
		if in.PublicNote != "" {
			c.PublicNote = in.PublicNote
		}
		if in.PrivateNote != "" {
			c.PrivateNote = in.PrivateNote
		}
		if in.EVMAddress != "" {
			c.EVMAddress = in.EVMAddress
		}
		if in.ICPPrincipal != "" {
			c.ICPPrincipal = in.ICPPrincipal
		}
		if in.ExternalID != "" {
			c.ExternalID = in.ExternalID
		}
	})
	if in.ICPPrincipal != "" && in.ICPPrincipal != existing.ICPPrincipal {
		if existing.ICPPrincipal != "" {
			t.icpIndex.Remove(existing.ICPPrincipal)
		}
		t.icpIndex.Insert(in.ICPPrincipal, id)
	}
	if in.ExternalID != "" && in.ExternalID != existing.ExternalID {
		t.RebindExternalID(existing.ExternalID, in.ExternalID, string(id))
	}

	updated, _ := t.contacts.Get(id)
	return updated, nil
}

// DeleteContact removes a contact and its index entries.
func (t *Tenant) DeleteContact(id UserID) error {
	contact, ok := t.contacts.Get(id)
	if !ok {
		return NotFound("contact")
	}
	t.contacts.Remove(id)
	t.contactList.Retain(func(c UserID) bool { return c != id })
	if contact.ICPPrincipal != "" {
		t.icpIndex.Remove(contact.ICPPrincipal)
	}
	if contact.ExternalID != "" {
		t.RebindExternalID(contact.ExternalID, "", string(id))
	}
	return nil
}

// TouchContact records activity for presence.
func (t *Tenant) TouchContact(id UserID) {
	t.contacts.Update(id, func(c *Contact) {
		c.LastOnlineMS = t.nowMS()
	})
}
