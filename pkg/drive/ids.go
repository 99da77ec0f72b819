package drive

import (
	"strings"

	"github.com/google/uuid"
)

// idPrefixes is the closed set of prefixes the ID grammar accepts.
var idPrefixes = []string{
	string(PrefixFile),
	string(PrefixFolder),
	string(PrefixUser),
	string(PrefixGroup),
	string(PrefixDisk),
	string(PrefixDrive),
	string(PrefixAPIKey),
	string(PrefixWebhook),
	string(PrefixInvite),
	string(PrefixLabel),
	string(PrefixDiff),
	string(PrefixPlaceholder),
	string(PrefixDirectoryPermission),
	string(PrefixSystemPermission),
}

// ValidateID checks the full ID grammar: a known prefix followed by a
// well-formed UUIDv4.
func ValidateID(id string) error {
	for _, prefix := range idPrefixes {
		if strings.HasPrefix(id, prefix) {
			return validateSuffix(id, prefix)
		}
	}
	return BadRequest("id", "unknown ID prefix: "+id)
}

// ValidateIDAs checks that id carries exactly the given prefix.
func ValidateIDAs(id, prefix string) error {
	if !strings.HasPrefix(id, prefix) {
		return BadRequest("id", "expected "+prefix+" prefix: "+id)
	}
	return validateSuffix(id, prefix)
}

func validateSuffix(id, prefix string) error {
	raw := strings.TrimPrefix(id, prefix)
	parsed, err := uuid.Parse(raw)
	if err != nil || parsed.Version() != 4 {
		return BadRequest("id", "malformed UUID in "+id)
	}
	return nil
}

// IssueID issues a prefixed ID, either minting a fresh UUIDv4 or accepting
// a caller-suggested full ID. Suggested IDs must carry the stated prefix
// and a proper UUIDv4, and must not collide with the claimed set. Issued
// IDs go into the claimed set before returning; the set only grows, so IDs
// are never recycled.
func (t *Tenant) IssueID(prefix string, suggested string) (string, error) {
	var id string
	if suggested != "" {
		if err := ValidateIDAs(suggested, prefix); err != nil {
			return "", err
		}
		if t.claimedUUIDs.Contains(suggested) {
			return "", &Error{Code: ErrAlreadyClaimed, Message: "ID already claimed: " + suggested}
		}
		id = suggested
	} else {
		// Fresh UUIDs collide only if the generator misbehaves; loop a
		// few times before declaring the space exhausted.
		for attempt := 0; ; attempt++ {
			id = prefix + uuid.NewString()
			if !t.claimedUUIDs.Contains(id) {
				break
			}
			if attempt >= 8 {
				return "", Internal("unable to mint an unclaimed UUID")
			}
		}
	}

	t.claimedUUIDs.Insert(id, true)

	state := t.driveState.Get()
	state.NonceUUID++
	t.driveState.Set(state)

	return id, nil
}

// IsClaimed reports whether id has ever been issued.
func (t *Tenant) IsClaimed(id string) bool {
	return t.claimedUUIDs.Contains(id)
}
