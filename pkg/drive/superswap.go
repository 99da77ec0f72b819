package drive

// SuperswapResult reports how many references a superswap rewrote.
type SuperswapResult struct {
	OldUserID UserID `json:"old_user_id"`
	NewUserID UserID `json:"new_user_id"`
	Rewritten int    `json:"rewritten"`
}

// SuperswapUser rewrites every reference to oldID so it points at newID:
// the contact record and its indices, directory record creators, both
// permission planes, group ownership, invites, API key ownership, webhook
// alt indices, and drive ownership. The old identity is appended to the
// contact's past user IDs and the mapping is recorded so the swap can be
// audited. Swapping an unknown old ID rewrites nothing.
func (t *Tenant) SuperswapUser(oldID, newID UserID) (SuperswapResult, error) {
	if err := ValidateIDAs(string(oldID), string(PrefixUser)); err != nil {
		return SuperswapResult{}, err
	}
	if err := ValidateIDAs(string(newID), string(PrefixUser)); err != nil {
		return SuperswapResult{}, err
	}
	if oldID == newID {
		return SuperswapResult{OldUserID: oldID, NewUserID: newID}, nil
	}
	if _, taken := t.contacts.Get(newID); taken {
		return SuperswapResult{}, Conflict("target user ID is already in use")
	}

	result := SuperswapResult{OldUserID: oldID, NewUserID: newID}

	// Contact record and indices.
	if contact, ok := t.contacts.Get(oldID); ok {
		contact.PastUserIDs = append(contact.PastUserIDs, oldID)
		contact.ID = newID
		t.contacts.Remove(oldID)
		t.contacts.Insert(newID, contact)
		t.contactList.Retain(func(c UserID) bool { return c != oldID })
		t.contactList.Append(newID)
		if contact.ICPPrincipal != "" {
			t.icpIndex.Insert(contact.ICPPrincipal, newID)
		}
		result.Rewritten++
	}

	// Directory creators.
	for _, key := range t.files.Keys() {
		if file, ok := t.files.Get(key); ok && file.CreatedBy == oldID {
			t.files.Update(key, func(f *FileRecord) { f.CreatedBy = newID })
			result.Rewritten++
		}
	}
	for _, key := range t.folders.Keys() {
		if folder, ok := t.folders.Get(key); ok && folder.CreatedBy == oldID {
			t.folders.Update(key, func(f *FolderRecord) { f.CreatedBy = newID })
			result.Rewritten++
		}
	}

	// Both permission planes: grantee and granter sides.
	oldGrantee := UserGrantee(oldID)
	for _, id := range t.dirPermList.Items() {
		perm, ok := t.dirPerms.Get(id)
		if !ok {
			continue
		}
		if perm.GrantedTo == oldGrantee || perm.GrantedBy == oldID {
			t.dirPerms.Update(id, func(p *DirectoryPermission) {
				if p.GrantedTo == oldGrantee {
					p.GrantedTo = UserGrantee(newID)
				}
				if p.GrantedBy == oldID {
					p.GrantedBy = newID
				}
				p.LastModifiedMS = t.nowMS()
			})
			result.Rewritten++
		}
	}
	for _, id := range t.sysPermList.Items() {
		perm, ok := t.sysPerms.Get(id)
		if !ok {
			continue
		}
		if perm.GrantedTo == oldGrantee || perm.GrantedBy == oldID {
			t.sysPerms.Update(id, func(p *SystemPermission) {
				if p.GrantedTo == oldGrantee {
					p.GrantedTo = UserGrantee(newID)
				}
				if p.GrantedBy == oldID {
					p.GrantedBy = newID
				}
				p.LastModifiedMS = t.nowMS()
			})
			result.Rewritten++
		}
	}

	// Group ownership and invites.
	for _, id := range t.groupList.Items() {
		if group, ok := t.groups.Get(id); ok && group.Owner == oldID {
			t.groups.Update(id, func(g *Group) { g.Owner = newID })
			result.Rewritten++
		}
	}
	if invites, ok := t.userInvites.Get(string(oldID)); ok {
		for _, inviteID := range invites {
			t.invites.Update(inviteID, func(i *GroupInvite) {
				if i.InviteeID == string(oldID) {
					i.InviteeID = string(newID)
				}
			})
			result.Rewritten++
		}
		t.userInvites.Remove(string(oldID))
		t.userInvites.Upsert(string(newID), func(list *[]InviteID) {
			*list = append(*list, invites...)
		})
	}
	for _, key := range t.invites.Keys() {
		if invite, ok := t.invites.Get(key); ok && invite.InviterID == oldID {
			t.invites.Update(key, func(i *GroupInvite) { i.InviterID = newID })
			result.Rewritten++
		}
	}

	// API key ownership.
	if keys, ok := t.userAPIKeys.Get(oldID); ok {
		for _, keyID := range keys {
			t.apiKeys.Update(keyID, func(k *APIKeyRecord) { k.UserID = newID })
			result.Rewritten++
		}
		t.userAPIKeys.Remove(oldID)
		t.userAPIKeys.Upsert(newID, func(list *[]APIKeyID) {
			*list = append(*list, keys...)
		})
	}

	// Webhooks subscribed to the old identity.
	for _, id := range t.webhookList.Items() {
		hook, ok := t.webhooks.Get(id)
		if !ok || hook.AltIndex != string(oldID) {
			continue
		}
		oldKey := altIndexKey(hook.Event, hook.AltIndex)
		t.webhooks.Update(id, func(h *Webhook) { h.AltIndex = string(newID) })
		t.webhooksByAlt.Update(oldKey, func(list *[]WebhookID) {
			*list = removeWebhookID(*list, id)
		})
		if ids, ok := t.webhooksByAlt.Get(oldKey); ok && len(ids) == 0 {
			t.webhooksByAlt.Remove(oldKey)
		}
		t.webhooksByAlt.Upsert(altIndexKey(hook.Event, string(newID)), func(list *[]WebhookID) {
			*list = append(*list, id)
		})
		result.Rewritten++
	}

	// Drive ownership.
	state := t.driveState.Get()
	if state.OwnerID == oldID {
		state.OwnerID = newID
		t.driveState.Set(state)
		result.Rewritten++
	}

	t.superswapHist.Insert(oldID, newID)
	return result, nil
}
