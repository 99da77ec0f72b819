package drive

// RebindExternalID moves internal between the reverse-index sets of two
// external IDs. Empty old/new mean "no previous binding" / "remove the
// binding". Idempotent: rebinding with identical arguments is a no-op.
func (t *Tenant) RebindExternalID(old, new string, internal string) {
	if old == new && old != "" {
		if ids, ok := t.externalIDs.Get(old); ok && contains(ids, internal) {
			return
		}
	}
	if old != "" {
		if ids, ok := t.externalIDs.Get(old); ok {
			ids = remove(ids, internal)
			if len(ids) == 0 {
				t.externalIDs.Remove(old)
			} else {
				t.externalIDs.Insert(old, ids)
			}
		}
	}
	if new != "" {
		ids, _ := t.externalIDs.Get(new)
		if !contains(ids, internal) {
			ids = append(ids, internal)
			t.externalIDs.Insert(new, ids)
		}
	}
}

// LookupExternalID returns the internal IDs bound to external, in binding
// order. The second return is false when no binding exists.
func (t *Tenant) LookupExternalID(external string) ([]string, bool) {
	ids, ok := t.externalIDs.Get(external)
	return ids, ok
}

// ExternalIDKeys returns every bound external ID in ascending order, for
// the listing endpoint.
func (t *Tenant) ExternalIDKeys() []string {
	return t.externalIDs.Keys()
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func remove(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
