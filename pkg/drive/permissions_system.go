package drive

import "strings"

// CheckSystemPermissions resolves the rights user holds on a system table
// or record: the union of every active grant addressed to the user
// directly, to the public, or to a group the user is a local member of.
// Table and record targets are independent; a table grant never implies a
// record grant or vice versa. The drive owner bypasses resolution.
func (t *Tenant) CheckSystemPermissions(resource SystemResource, user UserID) RightSet[SystemRight] {
	if t.IsOwner(user) {
		return AllSystemRights()
	}

	rights := RightSet[SystemRight]{}
	now := t.nowMS()
	ids, _ := t.sysPermsByRes.Get(resource.Key())
	for _, id := range ids {
		perm, ok := t.sysPerms.Get(id)
		if !ok {
			continue
		}
		if !permissionActive(perm.BeginDateMS, perm.ExpiryDateMS, now) {
			continue
		}
		if !t.granteeMatchesUser(perm.GrantedTo, user) {
			continue
		}
		rights.Union(perm.Rights)
	}
	return rights
}

// CheckSystemPermissionsWithLabels resolves rights on a system resource in
// the context of one label value: grants carrying a label prefix only
// count when the lowercased label value starts with that prefix. Grants
// without a prefix always count.
func (t *Tenant) CheckSystemPermissionsWithLabels(resource SystemResource, user UserID, labelValue string) RightSet[SystemRight] {
	if t.IsOwner(user) {
		return AllSystemRights()
	}

	rights := RightSet[SystemRight]{}
	now := t.nowMS()
	needle := strings.ToLower(labelValue)
	ids, _ := t.sysPermsByRes.Get(resource.Key())
	for _, id := range ids {
		perm, ok := t.sysPerms.Get(id)
		if !ok {
			continue
		}
		if !permissionActive(perm.BeginDateMS, perm.ExpiryDateMS, now) {
			continue
		}
		if !t.granteeMatchesUser(perm.GrantedTo, user) {
			continue
		}
		if perm.LabelPrefix != "" && !strings.HasPrefix(needle, strings.ToLower(perm.LabelPrefix)) {
			continue
		}
		rights.Union(perm.Rights)
	}
	return rights
}

// CanViewLabel reports whether viewer may see a label value: the owner
// always can, everyone else needs View on the labels table in the context
// of that value.
func (t *Tenant) CanViewLabel(viewer UserID, labelValue string) bool {
	if t.IsOwner(viewer) {
		return true
	}
	return t.CheckSystemPermissionsWithLabels(TableResource(TableLabels), viewer, labelValue).Has(SystemView)
}

// RedactLabels filters a resource's label values down to the ones viewer
// may see.
func (t *Tenant) RedactLabels(viewer UserID, labels []string) []string {
	if t.IsOwner(viewer) {
		return labels
	}
	out := make([]string, 0, len(labels))
	for _, value := range labels {
		if t.CanViewLabel(viewer, value) {
			out = append(out, value)
		}
	}
	return out
}

// CanUserAccessSystemPermission reports whether user may read a system
// grant record: its granter, its grantee, or anyone with Manage or Invite
// on the same resource.
func (t *Tenant) CanUserAccessSystemPermission(user UserID, perm SystemPermission) bool {
	if t.IsOwner(user) || perm.GrantedBy == user {
		return true
	}
	if t.granteeMatchesUser(perm.GrantedTo, user) {
		return true
	}
	rights := t.CheckSystemPermissions(perm.Resource, user)
	return rights.Has(SystemInvite) || rights.Has(SystemManage)
}

// SystemPermissionInput carries the fields of a new system grant.
type SystemPermissionInput struct {
	ID           string
	Resource     SystemResource
	GrantedTo    Grantee
	Rights       []SystemRight
	BeginDateMS  int64
	ExpiryDateMS int64
	LabelPrefix  string
	Note         string
	ExternalID   string
}

func validSystemResource(r SystemResource) error {
	switch r.Kind {
	case SystemResourceTable:
		switch r.Table {
		case TableAPIKeys, TableContacts, TableDrives, TableDisks,
			TableGroups, TableWebhooks, TablePermissions, TableLabels:
			return nil
		}
		return BadRequest("resource", "unknown system table")
	case SystemResourceRecord:
		if r.Record == "" {
			return BadRequest("resource", "record resource needs an ID")
		}
		return ValidateID(r.Record)
	}
	return BadRequest("resource", "resource kind must be table or record")
}

// CreateSystemPermission adds a system grant. Only the owner or a holder
// of Manage on the target resource may grant.
func (t *Tenant) CreateSystemPermission(granter UserID, in SystemPermissionInput) (SystemPermission, error) {
	if err := validSystemResource(in.Resource); err != nil {
		return SystemPermission{}, err
	}
	if !t.IsOwner(granter) && !t.CheckSystemPermissions(in.Resource, granter).Has(SystemManage) {
		return SystemPermission{}, Unauthorized("no permission to grant on this resource")
	}

	grantee := in.GrantedTo
	if grantee.Kind == "" {
		placeholder, err := t.IssueID(string(PrefixPlaceholder), "")
		if err != nil {
			return SystemPermission{}, err
		}
		grantee = PlaceholderGrantee(PlaceholderID(placeholder))
	}
	if err := validGrantee(grantee); err != nil {
		return SystemPermission{}, err
	}
	if len(in.Rights) == 0 {
		return SystemPermission{}, BadRequest("rights", "at least one right is required")
	}

	id, err := t.IssueID(string(PrefixSystemPermission), in.ID)
	if err != nil {
		return SystemPermission{}, err
	}

	rights := RightSet[SystemRight]{}
	for _, r := range in.Rights {
		rights.Add(r)
	}
	perm := SystemPermission{
		ID:             SystemPermissionID(id),
		Resource:       in.Resource,
		GrantedTo:      grantee,
		GrantedBy:      granter,
		Rights:         rights,
		BeginDateMS:    in.BeginDateMS,
		ExpiryDateMS:   in.ExpiryDateMS,
		LabelPrefix:    in.LabelPrefix,
		Note:           in.Note,
		ExternalID:     in.ExternalID,
		CreatedAtMS:    t.nowMS(),
		LastModifiedMS: t.nowMS(),
	}
	t.sysPerms.Insert(perm.ID, perm)
	t.sysPermsByRes.Upsert(in.Resource.Key(), func(list *[]SystemPermissionID) {
		*list = append(*list, perm.ID)
	})
	t.sysPermList.Append(perm.ID)
	if in.ExternalID != "" {
		t.RebindExternalID("", in.ExternalID, id)
	}
	return perm, nil
}

// UpdateSystemPermission edits a system grant.
func (t *Tenant) UpdateSystemPermission(actor UserID, id SystemPermissionID, rights []SystemRight, beginMS, expiryMS *int64, labelPrefix, note *string) (SystemPermission, error) {
	perm, ok := t.sysPerms.Get(id)
	if !ok {
		return SystemPermission{}, NotFound("permission")
	}
	if !t.IsOwner(actor) && perm.GrantedBy != actor && !t.CheckSystemPermissions(perm.Resource, actor).Has(SystemManage) {
		return SystemPermission{}, Unauthorized("no permission to edit this grant")
	}

	t.sysPerms.Update(id, func(p *SystemPermission) {
		if rights != nil {
			next := RightSet[SystemRight]{}
			for _, r := range rights {
				next.Add(r)
			}
			p.Rights = next
		}
		if beginMS != nil {
			p.BeginDateMS = *beginMS
		}
		if expiryMS != nil {
			p.ExpiryDateMS = *expiryMS
		}
		if labelPrefix != nil {
			p.LabelPrefix = *labelPrefix
		}
		if note != nil {
			p.Note = *note
		}
		p.LastModifiedMS = t.nowMS()
	})
	updated, _ := t.sysPerms.Get(id)
	return updated, nil
}

// DeleteSystemPermission removes a system grant and its index entries.
func (t *Tenant) DeleteSystemPermission(actor UserID, id SystemPermissionID) error {
	perm, ok := t.sysPerms.Get(id)
	if !ok {
		return NotFound("permission")
	}
	if !t.IsOwner(actor) && perm.GrantedBy != actor && !t.CheckSystemPermissions(perm.Resource, actor).Has(SystemManage) {
		return Unauthorized("no permission to remove this grant")
	}

	t.sysPerms.Remove(id)
	t.sysPermsByRes.Update(perm.Resource.Key(), func(list *[]SystemPermissionID) {
		*list = removeSysPermID(*list, id)
	})
	if ids, ok := t.sysPermsByRes.Get(perm.Resource.Key()); ok && len(ids) == 0 {
		t.sysPermsByRes.Remove(perm.Resource.Key())
	}
	t.sysPermList.Retain(func(p SystemPermissionID) bool { return p != id })
	if perm.ExternalID != "" {
		t.RebindExternalID(perm.ExternalID, "", string(id))
	}
	return nil
}

// GetSystemPermission returns the grant record for id.
func (t *Tenant) GetSystemPermission(id SystemPermissionID) (SystemPermission, error) {
	perm, ok := t.sysPerms.Get(id)
	if !ok {
		return SystemPermission{}, NotFound("permission")
	}
	return perm, nil
}

// PermissionsForSystemResource lists the grants on a system resource the
// requester is allowed to see.
func (t *Tenant) PermissionsForSystemResource(requester UserID, resource SystemResource) []SystemPermission {
	ids, _ := t.sysPermsByRes.Get(resource.Key())
	out := make([]SystemPermission, 0, len(ids))
	for _, id := range ids {
		perm, ok := t.sysPerms.Get(id)
		if !ok {
			continue
		}
		if t.CanUserAccessSystemPermission(requester, perm) {
			out = append(out, perm)
		}
	}
	return out
}

func removeSysPermID(ids []SystemPermissionID, id SystemPermissionID) []SystemPermissionID {
	out := make([]SystemPermissionID, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
