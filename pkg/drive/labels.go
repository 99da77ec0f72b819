package drive

import (
	"regexp"
	"sort"
	"strings"
)

var (
	labelValuePattern = regexp.MustCompile(`^[a-z0-9_]{1,64}$`)
	labelColorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)
)

// ValidateLabelValue enforces the canonical label form: 1-64 chars of
// lowercase a-z, digits, and underscore.
func ValidateLabelValue(value string) error {
	if value != strings.ToLower(value) {
		return BadRequest("value", "label value must be lowercase")
	}
	if !labelValuePattern.MatchString(value) {
		return BadRequest("value", "label value must match [a-z0-9_]{1,64}")
	}
	return nil
}

// GetLabel returns the label record for id.
func (t *Tenant) GetLabel(id LabelID) (Label, error) {
	label, ok := t.labels.Get(id)
	if !ok {
		return Label{}, NotFound("label")
	}
	return label, nil
}

// GetLabelByValue resolves a label value to its record.
func (t *Tenant) GetLabelByValue(value string) (Label, error) {
	id, ok := t.labelValues.Get(value)
	if !ok {
		return Label{}, NotFound("label")
	}
	return t.GetLabel(id)
}

// Labels returns every registered label in insertion order.
func (t *Tenant) Labels() []Label {
	ids := t.labelList.Items()
	out := make([]Label, 0, len(ids))
	for _, id := range ids {
		if label, ok := t.labels.Get(id); ok {
			out = append(out, label)
		}
	}
	return out
}

// findOrCreateLabel interns a validated value, minting a new label record
// on first use.
func (t *Tenant) findOrCreateLabel(value, color string, creator UserID) (Label, error) {
	if id, ok := t.labelValues.Get(value); ok {
		label, _ := t.labels.Get(id)
		return label, nil
	}
	if color == "" {
		color = "#888888"
	}
	if !labelColorPattern.MatchString(color) {
		return Label{}, BadRequest("color", "color must be #RRGGBB")
	}

	minted, err := t.IssueID(string(PrefixLabel), "")
	if err != nil {
		return Label{}, err
	}
	id := LabelID(minted)
	label := Label{
		ID:          id,
		Value:       value,
		Color:       color,
		CreatedBy:   creator,
		Resources:   []string{},
		CreatedAtMS: t.nowMS(),
		UpdatedAtMS: t.nowMS(),
	}
	t.labels.Insert(id, label)
	t.labelValues.Insert(value, id)
	t.labelList.Append(id)
	return label, nil
}

// purgeLabel drops a label whose last attachment was removed.
func (t *Tenant) purgeLabel(label Label) {
	t.labels.Remove(label.ID)
	t.labelValues.Remove(label.Value)
	t.labelList.Retain(func(id LabelID) bool { return id != label.ID })
	if label.ExternalID != "" {
		t.RebindExternalID(label.ExternalID, "", string(label.ID))
	}
}

// resourceLabels reads the label-value list of any labelable resource,
// dispatching on the ID prefix. The second return is false when the ID
// names no known resource.
func (t *Tenant) resourceLabels(resourceID string) ([]string, bool) {
	switch {
	case strings.HasPrefix(resourceID, string(PrefixFile)):
		r, ok := t.files.Get(FileID(resourceID))
		return r.Labels, ok
	case strings.HasPrefix(resourceID, string(PrefixFolder)):
		r, ok := t.folders.Get(FolderID(resourceID))
		return r.Labels, ok
	case strings.HasPrefix(resourceID, string(PrefixUser)):
		r, ok := t.contacts.Get(UserID(resourceID))
		return r.Labels, ok
	case strings.HasPrefix(resourceID, string(PrefixGroup)):
		r, ok := t.groups.Get(GroupID(resourceID))
		return r.Labels, ok
	case strings.HasPrefix(resourceID, string(PrefixInvite)):
		r, ok := t.invites.Get(InviteID(resourceID))
		return r.Labels, ok
	case strings.HasPrefix(resourceID, string(PrefixDisk)):
		r, ok := t.disks.Get(DiskID(resourceID))
		return r.Labels, ok
	case strings.HasPrefix(resourceID, string(PrefixWebhook)):
		r, ok := t.webhooks.Get(WebhookID(resourceID))
		return r.Labels, ok
	case strings.HasPrefix(resourceID, string(PrefixDirectoryPermission)):
		r, ok := t.dirPerms.Get(DirectoryPermissionID(resourceID))
		return r.Labels, ok
	case strings.HasPrefix(resourceID, string(PrefixSystemPermission)):
		r, ok := t.sysPerms.Get(SystemPermissionID(resourceID))
		return r.Labels, ok
	}
	return nil, false
}

// setResourceLabels writes back a resource's label-value list.
func (t *Tenant) setResourceLabels(resourceID string, labels []string) bool {
	sort.Strings(labels)
	switch {
	case strings.HasPrefix(resourceID, string(PrefixFile)):
		return t.files.Update(FileID(resourceID), func(r *FileRecord) { r.Labels = labels; r.LastUpdatedMS = t.nowMS() })
	case strings.HasPrefix(resourceID, string(PrefixFolder)):
		return t.folders.Update(FolderID(resourceID), func(r *FolderRecord) { r.Labels = labels; r.LastUpdatedMS = t.nowMS() })
	case strings.HasPrefix(resourceID, string(PrefixUser)):
		return t.contacts.Update(UserID(resourceID), func(r *Contact) { r.Labels = labels })
	case strings.HasPrefix(resourceID, string(PrefixGroup)):
		return t.groups.Update(GroupID(resourceID), func(r *Group) { r.Labels = labels; r.LastUpdatedMS = t.nowMS() })
	case strings.HasPrefix(resourceID, string(PrefixInvite)):
		return t.invites.Update(InviteID(resourceID), func(r *GroupInvite) { r.Labels = labels; r.LastModifiedMS = t.nowMS() })
	case strings.HasPrefix(resourceID, string(PrefixDisk)):
		return t.disks.Update(DiskID(resourceID), func(r *Disk) { r.Labels = labels })
	case strings.HasPrefix(resourceID, string(PrefixWebhook)):
		return t.webhooks.Update(WebhookID(resourceID), func(r *Webhook) { r.Labels = labels })
	case strings.HasPrefix(resourceID, string(PrefixDirectoryPermission)):
		return t.dirPerms.Update(DirectoryPermissionID(resourceID), func(r *DirectoryPermission) { r.Labels = labels; r.LastModifiedMS = t.nowMS() })
	case strings.HasPrefix(resourceID, string(PrefixSystemPermission)):
		return t.sysPerms.Update(SystemPermissionID(resourceID), func(r *SystemPermission) { r.Labels = labels; r.LastModifiedMS = t.nowMS() })
	}
	return false
}

// AttachLabel links a label value to a resource in both directions,
// interning the value on first use. Attaching an already attached label is
// a no-op that still returns the label.
func (t *Tenant) AttachLabel(resourceID, value, color string, actor UserID) (Label, error) {
	if err := ValidateLabelValue(value); err != nil {
		return Label{}, err
	}
	current, ok := t.resourceLabels(resourceID)
	if !ok {
		return Label{}, NotFound("resource")
	}
	label, err := t.findOrCreateLabel(value, color, actor)
	if err != nil {
		return Label{}, err
	}

	if !containsString(current, value) {
		t.setResourceLabels(resourceID, append(current, value))
	}
	t.labels.Update(label.ID, func(l *Label) {
		if !containsString(l.Resources, resourceID) {
			l.Resources = append(l.Resources, resourceID)
			sort.Strings(l.Resources)
		}
		l.UpdatedAtMS = t.nowMS()
	})
	updated, _ := t.labels.Get(label.ID)
	return updated, nil
}

// DetachLabel unlinks a label value from a resource. When the last link is
// removed the label record itself is garbage-collected. Detaching a label
// that is not attached is a no-op.
func (t *Tenant) DetachLabel(resourceID, value string) error {
	if err := ValidateLabelValue(value); err != nil {
		return err
	}
	current, ok := t.resourceLabels(resourceID)
	if !ok {
		return NotFound("resource")
	}
	if containsString(current, value) {
		t.setResourceLabels(resourceID, removeString(current, value))
	}

	id, ok := t.labelValues.Get(value)
	if !ok {
		return nil
	}
	t.labels.Update(id, func(l *Label) {
		l.Resources = removeString(l.Resources, resourceID)
		l.UpdatedAtMS = t.nowMS()
	})
	if label, ok := t.labels.Get(id); ok && len(label.Resources) == 0 {
		t.purgeLabel(label)
	}
	return nil
}

// RenameLabel changes a label's value and rewrites the value on every
// resource that carries it. The new value must be free.
func (t *Tenant) RenameLabel(id LabelID, newValue string) (Label, error) {
	label, ok := t.labels.Get(id)
	if !ok {
		return Label{}, NotFound("label")
	}
	if err := ValidateLabelValue(newValue); err != nil {
		return Label{}, err
	}
	if newValue == label.Value {
		return label, nil
	}
	if _, taken := t.labelValues.Get(newValue); taken {
		return Label{}, &Error{Code: ErrAlreadyExists, Message: "label value already in use", Field: "value"}
	}

	for _, resourceID := range label.Resources {
		if current, ok := t.resourceLabels(resourceID); ok {
			t.setResourceLabels(resourceID, append(removeString(current, label.Value), newValue))
		}
	}
	t.labelValues.Remove(label.Value)
	t.labelValues.Insert(newValue, id)
	t.labels.Update(id, func(l *Label) {
		l.Value = newValue
		l.UpdatedAtMS = t.nowMS()
	})

	updated, _ := t.labels.Get(id)
	return updated, nil
}

// UpdateLabel edits a label's cosmetic fields.
func (t *Tenant) UpdateLabel(id LabelID, color, publicNote, privateNote *string, externalID *string) (Label, error) {
	if _, ok := t.labels.Get(id); !ok {
		return Label{}, NotFound("label")
	}
	if color != nil && !labelColorPattern.MatchString(*color) {
		return Label{}, BadRequest("color", "color must be #RRGGBB")
	}
	var oldExternal string
	t.labels.Update(id, func(l *Label) {
		if color != nil {
			l.Color = *color
		}
		if publicNote != nil {
			l.PublicNote = *publicNote
		}
		if privateNote != nil {
			l.PrivateNote = *privateNote
		}
		if externalID != nil {
			oldExternal = l.ExternalID
			l.ExternalID = *externalID
		}
		l.UpdatedAtMS = t.nowMS()
	})
	if externalID != nil {
		t.RebindExternalID(oldExternal, *externalID, string(id))
	}
	updated, _ := t.labels.Get(id)
	return updated, nil
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func removeString(list []string, v string) []string {
	out := make([]string, 0, len(list))
	for _, s := range list {
		if s != v {
			out = append(out, s)
		}
	}
	return out
}
