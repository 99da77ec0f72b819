package drive

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/drivelab/orgdrive/internal/logger"
)

// validatorTimeout bounds one cross-tenant membership call.
const validatorTimeout = 10 * time.Second

// CreateGroupInput carries the fields of a new group.
type CreateGroupInput struct {
	ID         string
	Name       string
	Owner      UserID
	AvatarURL  string
	PublicNote string
	Endpoint   string
	ExternalID string
}

// GetGroup returns the group record for id.
func (t *Tenant) GetGroup(id GroupID) (Group, error) {
	group, ok := t.groups.Get(id)
	if !ok {
		return Group{}, NotFound("group")
	}
	return group, nil
}

// Groups returns every group in insertion order.
func (t *Tenant) Groups() []Group {
	ids := t.groupList.Items()
	out := make([]Group, 0, len(ids))
	for _, id := range ids {
		if group, ok := t.groups.Get(id); ok {
			out = append(out, group)
		}
	}
	return out
}

// CreateGroup registers a group owned by in.Owner. The endpoint defaults
// to this tenant's own endpoint.
func (t *Tenant) CreateGroup(in CreateGroupInput) (Group, error) {
	if in.Name == "" {
		return Group{}, BadRequest("name", "group name is required")
	}
	owner := in.Owner
	if owner == "" {
		owner = t.OwnerID()
	}

	id, err := t.IssueID(string(PrefixGroup), in.ID)
	if err != nil {
		return Group{}, err
	}
	state := t.driveState.Get()
	endpoint := in.Endpoint
	if endpoint == "" {
		endpoint = state.Endpoint
	}

	group := Group{
		ID:            GroupID(id),
		Name:          in.Name,
		Owner:         owner,
		AvatarURL:     in.AvatarURL,
		PublicNote:    in.PublicNote,
		AdminInvites:  []InviteID{},
		MemberInvites: []InviteID{},
		DriveID:       state.DriveID,
		Endpoint:      endpoint,
		ExternalID:    in.ExternalID,
		CreatedAtMS:   t.nowMS(),
		LastUpdatedMS: t.nowMS(),
	}
	t.groups.Insert(group.ID, group)
	t.groupList.Append(group.ID)
	if in.ExternalID != "" {
		t.RebindExternalID("", in.ExternalID, id)
	}
	return group, nil
}

// DeleteGroup removes a group and all of its invites.
func (t *Tenant) DeleteGroup(id GroupID) error {
	group, ok := t.groups.Get(id)
	if !ok {
		return NotFound("group")
	}
	for _, inviteID := range group.MemberInvites {
		t.removeInviteRecord(inviteID)
	}
	for _, inviteID := range group.AdminInvites {
		t.removeInviteRecord(inviteID)
	}
	t.groups.Remove(id)
	t.groupList.Retain(func(g GroupID) bool { return g != id })
	if group.ExternalID != "" {
		t.RebindExternalID(group.ExternalID, "", string(id))
	}
	return nil
}

func (t *Tenant) removeInviteRecord(id InviteID) {
	invite, ok := t.invites.Get(id)
	if !ok {
		return
	}
	t.invites.Remove(id)
	t.userInvites.Update(invite.InviteeID, func(list *[]InviteID) {
		*list = removeInviteID(*list, id)
	})
}

// InviteInput carries the fields of a new group invite. Leaving InviteeID
// empty creates a redeemable placeholder invitee.
type InviteInput struct {
	GroupID      GroupID
	InviteeID    string
	Role         GroupRole
	ActiveFromMS int64
	ExpiresAtMS  int64
	Note         string
	ExternalID   string
}

// CreateGroupInvite adds an invite to a group. Only the group owner or an
// active admin may invite. An admin invite also appears in the member list
// since admin implies member.
func (t *Tenant) CreateGroupInvite(actor UserID, in InviteInput) (GroupInvite, error) {
	group, ok := t.groups.Get(in.GroupID)
	if !ok {
		return GroupInvite{}, NotFound("group")
	}
	if !t.IsGroupAdmin(actor, in.GroupID) {
		return GroupInvite{}, Unauthorized("only the group owner or an admin can invite")
	}

	role := in.Role
	if role == "" {
		role = RoleMember
	}
	if role != RoleMember && role != RoleAdmin {
		return GroupInvite{}, BadRequest("role", "role must be MEMBER or ADMIN")
	}

	kind := InviteeUser
	inviteeID := in.InviteeID
	if inviteeID == "" {
		placeholder, err := t.IssueID(string(PrefixPlaceholder), "")
		if err != nil {
			return GroupInvite{}, err
		}
		kind = InviteePlaceholder
		inviteeID = placeholder
	} else if err := ValidateIDAs(inviteeID, string(PrefixUser)); err != nil {
		return GroupInvite{}, err
	}

	id, err := t.IssueID(string(PrefixInvite), "")
	if err != nil {
		return GroupInvite{}, err
	}
	invite := GroupInvite{
		ID:             InviteID(id),
		GroupID:        group.ID,
		InviterID:      actor,
		InviteeKind:    kind,
		InviteeID:      inviteeID,
		Role:           role,
		ActiveFromMS:   in.ActiveFromMS,
		ExpiresAtMS:    in.ExpiresAtMS,
		Note:           in.Note,
		ExternalID:     in.ExternalID,
		CreatedAtMS:    t.nowMS(),
		LastModifiedMS: t.nowMS(),
	}
	t.invites.Insert(invite.ID, invite)
	t.groups.Update(group.ID, func(g *Group) {
		g.MemberInvites = append(g.MemberInvites, invite.ID)
		if role == RoleAdmin {
			g.AdminInvites = append(g.AdminInvites, invite.ID)
		}
		g.LastUpdatedMS = t.nowMS()
	})
	t.userInvites.Upsert(inviteeID, func(list *[]InviteID) {
		*list = append(*list, invite.ID)
	})
	if in.ExternalID != "" {
		t.RebindExternalID("", in.ExternalID, id)
	}
	return invite, nil
}

// GetInvite returns the invite record for id.
func (t *Tenant) GetInvite(id InviteID) (GroupInvite, error) {
	invite, ok := t.invites.Get(id)
	if !ok {
		return GroupInvite{}, NotFound("invite")
	}
	return invite, nil
}

// InvitesFor lists every invite addressed to an invitee ID, user or
// placeholder.
func (t *Tenant) InvitesFor(inviteeID string) []GroupInvite {
	ids, _ := t.userInvites.Get(inviteeID)
	out := make([]GroupInvite, 0, len(ids))
	for _, id := range ids {
		if invite, ok := t.invites.Get(id); ok {
			out = append(out, invite)
		}
	}
	return out
}

// RedeemGroupInvite swaps a placeholder invitee for a concrete user. The
// original placeholder is preserved in from_placeholder so the redemption
// stays auditable. Redeeming an invite that already names a user fails
// with Conflict.
func (t *Tenant) RedeemGroupInvite(inviteID InviteID, placeholder PlaceholderID, user UserID) (GroupInvite, error) {
	invite, ok := t.invites.Get(inviteID)
	if !ok {
		return GroupInvite{}, NotFound("invite")
	}
	if invite.InviteeKind != InviteePlaceholder {
		return GroupInvite{}, Conflict("invite has already been redeemed")
	}
	if invite.InviteeID != string(placeholder) {
		return GroupInvite{}, Unauthorized("placeholder does not match this invite")
	}
	if err := ValidateIDAs(string(user), string(PrefixUser)); err != nil {
		return GroupInvite{}, err
	}

	oldInvitee := invite.InviteeID
	t.invites.Update(inviteID, func(i *GroupInvite) {
		i.InviteeKind = InviteeUser
		i.InviteeID = string(user)
		i.FromPlaceholder = placeholder
		i.LastModifiedMS = t.nowMS()
	})
	t.userInvites.Update(oldInvitee, func(list *[]InviteID) {
		*list = removeInviteID(*list, inviteID)
	})
	if empty, ok := t.userInvites.Get(oldInvitee); ok && len(empty) == 0 {
		t.userInvites.Remove(oldInvitee)
	}
	t.userInvites.Upsert(string(user), func(list *[]InviteID) {
		*list = append(*list, inviteID)
	})

	t.redeemPlaceholderPermissions(placeholder, user)

	updated, _ := t.invites.Get(inviteID)
	return updated, nil
}

// UpdateGroupInvite edits an invite's role, window, or note. Role changes
// move the invite between the group's member and admin lists.
func (t *Tenant) UpdateGroupInvite(actor UserID, id InviteID, role *GroupRole, activeFromMS, expiresAtMS *int64, note *string) (GroupInvite, error) {
	invite, ok := t.invites.Get(id)
	if !ok {
		return GroupInvite{}, NotFound("invite")
	}
	if !t.IsGroupAdmin(actor, invite.GroupID) {
		return GroupInvite{}, Unauthorized("only the group owner or an admin can edit invites")
	}
	if role != nil && *role != RoleMember && *role != RoleAdmin {
		return GroupInvite{}, BadRequest("role", "role must be MEMBER or ADMIN")
	}

	t.invites.Update(id, func(i *GroupInvite) {
		if role != nil {
			i.Role = *role
		}
		if activeFromMS != nil {
			i.ActiveFromMS = *activeFromMS
		}
		if expiresAtMS != nil {
			i.ExpiresAtMS = *expiresAtMS
		}
		if note != nil {
			i.Note = *note
		}
		i.LastModifiedMS = t.nowMS()
	})
	if role != nil {
		t.groups.Update(invite.GroupID, func(g *Group) {
			g.AdminInvites = removeInviteID(g.AdminInvites, id)
			if *role == RoleAdmin {
				g.AdminInvites = append(g.AdminInvites, id)
			}
			g.LastUpdatedMS = t.nowMS()
		})
	}

	updated, _ := t.invites.Get(id)
	return updated, nil
}

// DeleteGroupInvite removes an invite from its group and invitee index.
func (t *Tenant) DeleteGroupInvite(actor UserID, id InviteID) error {
	invite, ok := t.invites.Get(id)
	if !ok {
		return NotFound("invite")
	}
	if !t.IsGroupAdmin(actor, invite.GroupID) && invite.InviteeID != string(actor) {
		return Unauthorized("only the group owner, an admin, or the invitee can remove an invite")
	}
	t.groups.Update(invite.GroupID, func(g *Group) {
		g.MemberInvites = removeInviteID(g.MemberInvites, id)
		g.AdminInvites = removeInviteID(g.AdminInvites, id)
		g.LastUpdatedMS = t.nowMS()
	})
	t.removeInviteRecord(id)
	if invite.ExternalID != "" {
		t.RebindExternalID(invite.ExternalID, "", string(id))
	}
	return nil
}

// inviteActive reports whether an invite's window covers now: a positive
// expiry at or before now disables it, as does a positive begin after now.
func inviteActive(invite GroupInvite, nowMS int64) bool {
	if invite.ExpiresAtMS > 0 && invite.ExpiresAtMS <= nowMS {
		return false
	}
	if invite.ActiveFromMS > 0 && invite.ActiveFromMS > nowMS {
		return false
	}
	return true
}

// IsUserInLocalGroup checks membership against this tenant's own records:
// the group owner is always a member, otherwise the user needs an active
// user-kind invite in the group's member list.
func (t *Tenant) IsUserInLocalGroup(user UserID, groupID GroupID) bool {
	group, ok := t.groups.Get(groupID)
	if !ok {
		return false
	}
	if group.Owner == user {
		return true
	}
	now := t.nowMS()
	for _, inviteID := range group.MemberInvites {
		invite, ok := t.invites.Get(inviteID)
		if !ok {
			continue
		}
		if invite.InviteeKind == InviteeUser && invite.InviteeID == string(user) && inviteActive(invite, now) {
			return true
		}
	}
	return false
}

// IsGroupAdmin reports whether the user is the group owner or holds an
// active admin invite.
func (t *Tenant) IsGroupAdmin(user UserID, groupID GroupID) bool {
	group, ok := t.groups.Get(groupID)
	if !ok {
		return false
	}
	if group.Owner == user {
		return true
	}
	now := t.nowMS()
	for _, inviteID := range group.AdminInvites {
		invite, ok := t.invites.Get(inviteID)
		if !ok {
			continue
		}
		if invite.InviteeKind == InviteeUser && invite.InviteeID == string(user) && inviteActive(invite, now) {
			return true
		}
	}
	return false
}

// IsUserInGroup resolves membership for any group. A group homed on this
// tenant is answered locally; a foreign group is delegated to its own
// endpoint through the validator, and any transport failure denies.
func (t *Tenant) IsUserInGroup(ctx context.Context, user UserID, groupID GroupID) bool {
	group, ok := t.groups.Get(groupID)
	if !ok {
		return false
	}
	state := t.driveState.Get()
	if group.Endpoint == "" || group.Endpoint == state.Endpoint {
		return t.isUserInGroupRecord(user, group)
	}

	ctx, cancel := context.WithTimeout(ctx, validatorTimeout)
	defer cancel()
	member, err := t.validator.IsMember(ctx, group.Endpoint, user, groupID)
	if err != nil {
		var de *Error
		if errors.As(err, &de) && de.Code == ErrUnreachable {
			logger.Warn("group validator unreachable for %s: %v", group.Endpoint, err)
		} else {
			logger.Warn("group validation against %s failed: %v", group.Endpoint, err)
		}
		return false
	}
	return member
}

func (t *Tenant) isUserInGroupRecord(user UserID, group Group) bool {
	if group.Owner == user {
		return true
	}
	now := t.nowMS()
	for _, inviteID := range group.MemberInvites {
		invite, ok := t.invites.Get(inviteID)
		if !ok {
			continue
		}
		if invite.InviteeKind == InviteeUser && invite.InviteeID == string(user) && inviteActive(invite, now) {
			return true
		}
	}
	return false
}

// ValidateMembership answers a cross-tenant membership query addressed to
// this tenant. Only user and group IDs with well-formed prefixes are
// considered at all.
func (t *Tenant) ValidateMembership(user UserID, groupID GroupID) (bool, error) {
	if err := ValidateIDAs(string(user), string(PrefixUser)); err != nil {
		return false, err
	}
	if !strings.HasPrefix(string(groupID), string(PrefixGroup)) {
		return false, BadRequest("group_id", "malformed group ID")
	}
	return t.IsUserInLocalGroup(user, groupID), nil
}

func removeInviteID(ids []InviteID, id InviteID) []InviteID {
	out := make([]InviteID, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
