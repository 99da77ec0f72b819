package drive

// Projection: records leave the engine shaped for the requesting viewer.
// The owner sees everything. Admin-only fields (private notes, storage
// credentials) need Edit on the owning system table; labels are filtered
// per value through the labels-table grants.

// hasTableRight reports whether the viewer holds a right on a system
// table, owner included.
func (t *Tenant) hasTableRight(viewer UserID, table SystemTable, right SystemRight) bool {
	if t.IsOwner(viewer) {
		return true
	}
	return t.CheckSystemPermissions(TableResource(table), viewer).Has(right)
}

// RedactDisk projects a disk for viewer. Credentials and the private note
// need Edit on the disks table.
func (t *Tenant) RedactDisk(viewer UserID, disk Disk) Disk {
	if !t.hasTableRight(viewer, TableDisks, SystemEdit) {
		disk.AuthJSON = ""
		disk.PrivateNote = ""
	}
	disk.Labels = t.RedactLabels(viewer, disk.Labels)
	return disk
}

// RedactContact projects a contact for viewer. The private note needs Edit
// on the contacts table unless the contact is the viewer themself.
func (t *Tenant) RedactContact(viewer UserID, contact Contact) Contact {
	if contact.ID != viewer && !t.hasTableRight(viewer, TableContacts, SystemEdit) {
		contact.PrivateNote = ""
	}
	contact.Labels = t.RedactLabels(viewer, contact.Labels)
	return contact
}

// RedactGroup projects a group for viewer. Non-members get a preview with
// the private note and invite lists withheld; the owner and admins see
// everything.
func (t *Tenant) RedactGroup(viewer UserID, group Group) Group {
	if t.IsOwner(viewer) || t.IsGroupAdmin(viewer, group.ID) {
		group.Labels = t.RedactLabels(viewer, group.Labels)
		return group
	}
	if !t.IsUserInLocalGroup(viewer, group.ID) {
		group.PrivateNote = ""
		group.AdminInvites = []InviteID{}
		group.MemberInvites = []InviteID{}
	}
	group.Labels = t.RedactLabels(viewer, group.Labels)
	return group
}

// RedactFile projects a file record for viewer: only the label filter
// applies, visibility itself is decided by the permission resolver before
// the record is handed out.
func (t *Tenant) RedactFile(viewer UserID, file FileRecord) FileRecord {
	file.Labels = t.RedactLabels(viewer, file.Labels)
	return file
}

// RedactFolder projects a folder record for viewer.
func (t *Tenant) RedactFolder(viewer UserID, folder FolderRecord) FolderRecord {
	folder.Labels = t.RedactLabels(viewer, folder.Labels)
	return folder
}

// RedactLabel projects a label record for viewer, or reports that the
// viewer may not see it at all.
func (t *Tenant) RedactLabel(viewer UserID, label Label) (Label, bool) {
	if t.IsOwner(viewer) {
		return label, true
	}
	if !t.CanViewLabel(viewer, label.Value) {
		return Label{}, false
	}
	if !t.hasTableRight(viewer, TableLabels, SystemEdit) {
		label.PrivateNote = ""
	}
	return label, true
}

// RedactWebhook projects a webhook for viewer. The signing secret needs
// Edit on the webhooks table.
func (t *Tenant) RedactWebhook(viewer UserID, hook Webhook) Webhook {
	if !t.hasTableRight(viewer, TableWebhooks, SystemEdit) {
		hook.Signature = ""
	}
	hook.Labels = t.RedactLabels(viewer, hook.Labels)
	return hook
}

// RedactAPIKey projects a key record for viewer. The key value is only
// ever shown to its own user.
func (t *Tenant) RedactAPIKey(viewer UserID, key APIKeyRecord) APIKeyRecord {
	if key.UserID != viewer && !t.IsOwner(viewer) {
		key.Value = ""
	}
	return key
}
