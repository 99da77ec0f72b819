package drive

import (
	"crypto/rand"
	"encoding/hex"
)

// APIKeyInput carries the fields of a new API key.
type APIKeyInput struct {
	ID          string
	Name        string
	UserID      UserID
	ExpiresAtMS int64
	ExternalID  string
}

// GetAPIKey returns the key record for id.
func (t *Tenant) GetAPIKey(id APIKeyID) (APIKeyRecord, error) {
	key, ok := t.apiKeys.Get(id)
	if !ok {
		return APIKeyRecord{}, NotFound("api key")
	}
	return key, nil
}

// LookupAPIKey resolves a raw key value to its record. Revoked and expired
// keys do not resolve.
func (t *Tenant) LookupAPIKey(value string) (APIKeyRecord, error) {
	id, ok := t.apiKeysByValue.Get(value)
	if !ok {
		return APIKeyRecord{}, NotFound("api key")
	}
	key, ok := t.apiKeys.Get(id)
	if !ok {
		return APIKeyRecord{}, NotFound("api key")
	}
	if key.Revoked {
		return APIKeyRecord{}, Unauthorized("api key has been revoked")
	}
	if key.ExpiresAtMS > 0 && key.ExpiresAtMS <= t.nowMS() {
		return APIKeyRecord{}, Unauthorized("api key has expired")
	}
	return key, nil
}

// APIKeysFor lists a user's keys in creation order.
func (t *Tenant) APIKeysFor(user UserID) []APIKeyRecord {
	ids, _ := t.userAPIKeys.Get(user)
	out := make([]APIKeyRecord, 0, len(ids))
	for _, id := range ids {
		if key, ok := t.apiKeys.Get(id); ok {
			out = append(out, key)
		}
	}
	return out
}

// CreateAPIKey mints a key for a user. The key value is random and
// returned exactly once through the record.
func (t *Tenant) CreateAPIKey(in APIKeyInput) (APIKeyRecord, error) {
	if err := validateName(in.Name); err != nil {
		return APIKeyRecord{}, err
	}
	if err := ValidateIDAs(string(in.UserID), string(PrefixUser)); err != nil {
		return APIKeyRecord{}, err
	}
	if err := validateExternalID(in.ExternalID); err != nil {
		return APIKeyRecord{}, err
	}

	id, err := t.IssueID(string(PrefixAPIKey), in.ID)
	if err != nil {
		return APIKeyRecord{}, err
	}

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return APIKeyRecord{}, Internal("unable to generate key material")
	}
	value := hex.EncodeToString(raw)

	key := APIKeyRecord{
		ID:          APIKeyID(id),
		Value:       value,
		UserID:      in.UserID,
		Name:        in.Name,
		CreatedAtMS: t.nowMS(),
		ExpiresAtMS: in.ExpiresAtMS,
		ExternalID:  in.ExternalID,
	}
	t.apiKeys.Insert(key.ID, key)
	t.apiKeysByValue.Insert(value, key.ID)
	t.userAPIKeys.Upsert(in.UserID, func(list *[]APIKeyID) {
		*list = append(*list, key.ID)
	})
	if in.ExternalID != "" {
		t.RebindExternalID("", in.ExternalID, id)
	}
	return key, nil
}

// RevokeAPIKey marks a key revoked. The record stays for audit; the value
// index entry is dropped so the key can never authenticate again.
func (t *Tenant) RevokeAPIKey(id APIKeyID) error {
	key, ok := t.apiKeys.Get(id)
	if !ok {
		return NotFound("api key")
	}
	if key.Revoked {
		return nil
	}
	t.apiKeys.Update(id, func(k *APIKeyRecord) {
		k.Revoked = true
	})
	t.apiKeysByValue.Remove(key.Value)
	return nil
}

// DeleteAPIKey removes a key record entirely.
func (t *Tenant) DeleteAPIKey(id APIKeyID) error {
	key, ok := t.apiKeys.Get(id)
	if !ok {
		return NotFound("api key")
	}
	t.apiKeys.Remove(id)
	t.apiKeysByValue.Remove(key.Value)
	t.userAPIKeys.Update(key.UserID, func(list *[]APIKeyID) {
		*list = removeAPIKeyID(*list, id)
	})
	if key.ExternalID != "" {
		t.RebindExternalID(key.ExternalID, "", string(id))
	}
	return nil
}

func removeAPIKeyID(ids []APIKeyID, id APIKeyID) []APIKeyID {
	out := make([]APIKeyID, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
