package drive

// permissionActive reports whether a time window covers now. A positive
// expiry at or before now disables the grant; a positive begin after now
// means it has not started yet.
func permissionActive(beginMS, expiryMS, nowMS int64) bool {
	if expiryMS > 0 && expiryMS <= nowMS {
		return false
	}
	if beginMS > 0 && beginMS > nowMS {
		return false
	}
	return true
}

// granteeMatchesUser reports whether a grant addressed to grantee applies
// to user. Public matches everyone; group grants resolve through local
// membership; placeholder grants match nobody until redeemed.
func (t *Tenant) granteeMatchesUser(grantee Grantee, user UserID) bool {
	switch grantee.Kind {
	case GranteePublic:
		return true
	case GranteeUser:
		return grantee.ID == string(user)
	case GranteeGroup:
		return t.IsUserInLocalGroup(user, GroupID(grantee.ID))
	default:
		return false
	}
}

// directoryAncestry returns the permission lookup chain for a resource:
// the resource itself, then each parent folder upward. The walk stops at,
// and includes, the first sovereign folder; grants above a sovereign
// boundary never reach inside it.
func (t *Tenant) directoryAncestry(resource DirectoryResource) []DirectoryResource {
	chain := []DirectoryResource{resource}

	var parent FolderID
	switch resource.Kind {
	case ResourceFile:
		file, ok := t.files.Get(FileID(resource.ID))
		if !ok {
			return chain
		}
		if file.Sovereign {
			return chain
		}
		parent = file.ParentFolder
	case ResourceFolder:
		folder, ok := t.folders.Get(FolderID(resource.ID))
		if !ok {
			return chain
		}
		if folder.Sovereign {
			return chain
		}
		parent = folder.ParentFolder
	}

	for parent != "" {
		folder, ok := t.folders.Get(parent)
		if !ok {
			break
		}
		chain = append(chain, FolderResource(folder.ID))
		if folder.Sovereign {
			break
		}
		parent = folder.ParentFolder
	}
	return chain
}

// CheckDirectoryPermissions resolves the rights user holds on a file or
// folder: the union of every active grant on the resource itself plus
// every active inheritable grant on its ancestors up to the sovereign
// boundary. The drive owner bypasses resolution with all rights.
func (t *Tenant) CheckDirectoryPermissions(resource DirectoryResource, user UserID) RightSet[DirectoryRight] {
	if t.IsOwner(user) {
		return AllDirectoryRights()
	}

	rights := RightSet[DirectoryRight]{}
	now := t.nowMS()
	for i, node := range t.directoryAncestry(resource) {
		ids, _ := t.dirPermsByRes.Get(node.ID)
		for _, id := range ids {
			perm, ok := t.dirPerms.Get(id)
			if !ok {
				continue
			}
			if !permissionActive(perm.BeginDateMS, perm.ExpiryDateMS, now) {
				continue
			}
			if i > 0 && !perm.Inheritable {
				continue
			}
			if !t.granteeMatchesUser(perm.GrantedTo, user) {
				continue
			}
			rights.Union(perm.Rights)
		}
	}
	return rights
}

// CheckDirectoryPermissionsForGrantee resolves rights for an exact grantee
// identity without membership expansion. Used for placeholder previews.
func (t *Tenant) CheckDirectoryPermissionsForGrantee(resource DirectoryResource, grantee Grantee) RightSet[DirectoryRight] {
	rights := RightSet[DirectoryRight]{}
	now := t.nowMS()
	for i, node := range t.directoryAncestry(resource) {
		ids, _ := t.dirPermsByRes.Get(node.ID)
		for _, id := range ids {
			perm, ok := t.dirPerms.Get(id)
			if !ok {
				continue
			}
			if !permissionActive(perm.BeginDateMS, perm.ExpiryDateMS, now) {
				continue
			}
			if i > 0 && !perm.Inheritable {
				continue
			}
			if perm.GrantedTo != grantee && perm.GrantedTo.Kind != GranteePublic {
				continue
			}
			rights.Union(perm.Rights)
		}
	}
	return rights
}

// HasDirectoryManagePermission reports whether user can administer grants
// on the resource: the owner, or anyone holding Invite or Manage.
func (t *Tenant) HasDirectoryManagePermission(resource DirectoryResource, user UserID) bool {
	rights := t.CheckDirectoryPermissions(resource, user)
	return rights.Has(DirectoryInvite) || rights.Has(DirectoryManage)
}

// Breadcrumb is one visible step of a resource's ancestor path.
type Breadcrumb struct {
	ID   FolderID `json:"id"`
	Name string   `json:"name"`
}

// DeriveBreadcrumbs walks from the resource's parent toward the root and
// returns, root first, the ancestors the user can View. The walk stops at
// the first folder the user cannot see, so a viewer deep inside a shared
// subtree never learns the path above the share point.
func (t *Tenant) DeriveBreadcrumbs(resource DirectoryResource, user UserID) []Breadcrumb {
	var parent FolderID
	switch resource.Kind {
	case ResourceFile:
		if file, ok := t.files.Get(FileID(resource.ID)); ok {
			parent = file.ParentFolder
		}
	case ResourceFolder:
		if folder, ok := t.folders.Get(FolderID(resource.ID)); ok {
			parent = folder.ParentFolder
		}
	}

	var crumbs []Breadcrumb
	for parent != "" {
		folder, ok := t.folders.Get(parent)
		if !ok {
			break
		}
		if !t.CheckDirectoryPermissions(FolderResource(folder.ID), user).Has(DirectoryView) {
			break
		}
		crumbs = append([]Breadcrumb{{ID: folder.ID, Name: folder.Name}}, crumbs...)
		parent = folder.ParentFolder
	}
	return crumbs
}

// CanUserAccessDirectoryPermission reports whether user may read a grant
// record: its granter, its direct grantee (including through group
// membership), and anyone who can manage grants on the resource.
func (t *Tenant) CanUserAccessDirectoryPermission(user UserID, perm DirectoryPermission) bool {
	if t.IsOwner(user) || perm.GrantedBy == user {
		return true
	}
	if t.granteeMatchesUser(perm.GrantedTo, user) {
		return true
	}
	return t.HasDirectoryManagePermission(perm.Resource, user)
}

// DirectoryPermissionInput carries the fields of a new or updated grant.
type DirectoryPermissionInput struct {
	ID          string
	Resource    DirectoryResource
	GrantedTo   Grantee
	Rights      []DirectoryRight
	BeginDateMS int64
	ExpiryDateMS int64
	Inheritable bool
	Note        string
	ExternalID  string
}

func validDirectoryResource(r DirectoryResource) error {
	switch r.Kind {
	case ResourceFile:
		return ValidateIDAs(r.ID, string(PrefixFile))
	case ResourceFolder:
		return ValidateIDAs(r.ID, string(PrefixFolder))
	}
	return BadRequest("resource", "resource kind must be file or folder")
}

func validGrantee(g Grantee) error {
	switch g.Kind {
	case GranteePublic:
		return nil
	case GranteeUser:
		return ValidateIDAs(g.ID, string(PrefixUser))
	case GranteeGroup:
		return ValidateIDAs(g.ID, string(PrefixGroup))
	case GranteePlaceholder:
		return ValidateIDAs(g.ID, string(PrefixPlaceholder))
	}
	return BadRequest("granted_to", "unknown grantee kind")
}

// CreateDirectoryPermission adds a grant. The granter needs Invite on the
// resource; a grantee left empty mints a redeemable placeholder.
func (t *Tenant) CreateDirectoryPermission(granter UserID, in DirectoryPermissionInput) (DirectoryPermission, error) {
	if err := validDirectoryResource(in.Resource); err != nil {
		return DirectoryPermission{}, err
	}
	if !t.IsOwner(granter) && !t.HasDirectoryManagePermission(in.Resource, granter) {
		return DirectoryPermission{}, Unauthorized("no permission to share this resource")
	}

	grantee := in.GrantedTo
	if grantee.Kind == "" {
		placeholder, err := t.IssueID(string(PrefixPlaceholder), "")
		if err != nil {
			return DirectoryPermission{}, err
		}
		grantee = PlaceholderGrantee(PlaceholderID(placeholder))
	}
	if err := validGrantee(grantee); err != nil {
		return DirectoryPermission{}, err
	}
	if len(in.Rights) == 0 {
		return DirectoryPermission{}, BadRequest("rights", "at least one right is required")
	}

	id, err := t.IssueID(string(PrefixDirectoryPermission), in.ID)
	if err != nil {
		return DirectoryPermission{}, err
	}

	rights := RightSet[DirectoryRight]{}
	for _, r := range in.Rights {
		rights.Add(r)
	}
	perm := DirectoryPermission{
		ID:             DirectoryPermissionID(id),
		Resource:       in.Resource,
		GrantedTo:      grantee,
		GrantedBy:      granter,
		Rights:         rights,
		BeginDateMS:    in.BeginDateMS,
		ExpiryDateMS:   in.ExpiryDateMS,
		Inheritable:    in.Inheritable,
		Note:           in.Note,
		ExternalID:     in.ExternalID,
		CreatedAtMS:    t.nowMS(),
		LastModifiedMS: t.nowMS(),
	}
	t.dirPerms.Insert(perm.ID, perm)
	t.dirPermsByRes.Upsert(in.Resource.ID, func(list *[]DirectoryPermissionID) {
		*list = append(*list, perm.ID)
	})
	t.dirPermList.Append(perm.ID)
	if in.ExternalID != "" {
		t.RebindExternalID("", in.ExternalID, id)
	}
	return perm, nil
}

// UpdateDirectoryPermission edits a grant's rights, window, or
// inheritability. Only someone who can manage grants on the resource (or
// the granter) may edit.
func (t *Tenant) UpdateDirectoryPermission(actor UserID, id DirectoryPermissionID, rights []DirectoryRight, beginMS, expiryMS *int64, inheritable *bool, note *string) (DirectoryPermission, error) {
	perm, ok := t.dirPerms.Get(id)
	if !ok {
		return DirectoryPermission{}, NotFound("permission")
	}
	if !t.IsOwner(actor) && perm.GrantedBy != actor && !t.HasDirectoryManagePermission(perm.Resource, actor) {
		return DirectoryPermission{}, Unauthorized("no permission to edit this grant")
	}

	t.dirPerms.Update(id, func(p *DirectoryPermission) {
		if rights != nil {
			next := RightSet[DirectoryRight]{}
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
		if inheritable != nil {
			p.Inheritable = *inheritable
		}
		if note != nil {
			p.Note = *note
		}
		p.LastModifiedMS = t.nowMS()
	})
	updated, _ := t.dirPerms.Get(id)
	return updated, nil
}

// DeleteDirectoryPermission removes a grant and its index entries.
func (t *Tenant) DeleteDirectoryPermission(actor UserID, id DirectoryPermissionID) error {
	perm, ok := t.dirPerms.Get(id)
	if !ok {
		return NotFound("permission")
	}
	if !t.IsOwner(actor) && perm.GrantedBy != actor && !t.HasDirectoryManagePermission(perm.Resource, actor) {
		return Unauthorized("no permission to remove this grant")
	}

	t.dirPerms.Remove(id)
	t.dirPermsByRes.Update(perm.Resource.ID, func(list *[]DirectoryPermissionID) {
		*list = removeDirPermID(*list, id)
	})
	if ids, ok := t.dirPermsByRes.Get(perm.Resource.ID); ok && len(ids) == 0 {
		t.dirPermsByRes.Remove(perm.Resource.ID)
	}
	t.dirPermList.Retain(func(p DirectoryPermissionID) bool { return p != id })
	if perm.ExternalID != "" {
		t.RebindExternalID(perm.ExternalID, "", string(id))
	}
	return nil
}

// GetDirectoryPermission returns the grant record for id.
func (t *Tenant) GetDirectoryPermission(id DirectoryPermissionID) (DirectoryPermission, error) {
	perm, ok := t.dirPerms.Get(id)
	if !ok {
		return DirectoryPermission{}, NotFound("permission")
	}
	return perm, nil
}

// PermissionsForDirectoryResource lists the grants on a resource the
// requester is allowed to see.
func (t *Tenant) PermissionsForDirectoryResource(requester UserID, resource DirectoryResource) []DirectoryPermission {
	ids, _ := t.dirPermsByRes.Get(resource.ID)
	out := make([]DirectoryPermission, 0, len(ids))
	for _, id := range ids {
		perm, ok := t.dirPerms.Get(id)
		if !ok {
			continue
		}
		if t.CanUserAccessDirectoryPermission(requester, perm) {
			out = append(out, perm)
		}
	}
	return out
}

// redeemPlaceholderPermissions rewrites every grant addressed to a
// placeholder so it targets the redeeming user, preserving the original
// placeholder for audit.
func (t *Tenant) redeemPlaceholderPermissions(placeholder PlaceholderID, user UserID) {
	target := PlaceholderGrantee(placeholder)
	for _, id := range t.dirPermList.Items() {
		perm, ok := t.dirPerms.Get(id)
		if !ok || perm.GrantedTo != target {
			continue
		}
		t.dirPerms.Update(id, func(p *DirectoryPermission) {
			p.GrantedTo = UserGrantee(user)
			p.FromPlaceholder = placeholder
			p.LastModifiedMS = t.nowMS()
		})
	}
	for _, id := range t.sysPermList.Items() {
		perm, ok := t.sysPerms.Get(id)
		if !ok || perm.GrantedTo != target {
			continue
		}
		t.sysPerms.Update(id, func(p *SystemPermission) {
			p.GrantedTo = UserGrantee(user)
			p.FromPlaceholder = placeholder
			p.LastModifiedMS = t.nowMS()
		})
	}
}

func removeDirPermID(ids []DirectoryPermissionID, id DirectoryPermissionID) []DirectoryPermissionID {
	out := make([]DirectoryPermissionID, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
