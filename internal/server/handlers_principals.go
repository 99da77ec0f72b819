package server

import (
	"net/http"

	"github.com/drivelab/orgdrive/pkg/drive"
)

// requireTableRight checks the caller holds one system right on a table.
// The drive owner always passes.
func (s *Server) requireTableRight(user drive.UserID, table drive.SystemTable, right drive.SystemRight) error {
	if s.tenant.IsOwner(user) {
		return nil
	}
	if !s.tenant.CheckSystemPermissions(drive.TableResource(table), user).Has(right) {
		return drive.Unauthorized("missing " + string(right) + " permission on " + string(table))
	}
	return nil
}

// Contacts

type contactRequest struct {
	ID           string `json:"id,omitempty"`
	Name         string `json:"name"`
	AvatarURL    string `json:"avatar_url,omitempty"`
	PublicNote   string `json:"public_note,omitempty"`
	PrivateNote  string `json:"private_note,omitempty"`
	ICPPrincipal string `json:"icp_principal"`
	EVMAddress   string `json:"evm_address,omitempty"`
	ExternalID   string `json:"external_id,omitempty"`
}

func (c contactRequest) input() drive.ContactInput {
	return drive.ContactInput{
		ID:           c.ID,
		Name:         c.Name,
		AvatarURL:    c.AvatarURL,
		PublicNote:   c.PublicNote,
		PrivateNote:  c.PrivateNote,
		ICPPrincipal: c.ICPPrincipal,
		EVMAddress:   c.EVMAddress,
		ExternalID:   c.ExternalID,
	}
}

func (s *Server) handleListContacts(r *http.Request, user drive.UserID) (any, error) {
	var contacts []drive.Contact
	err := s.tenant.Run(func() error {
		if err := s.requireTableRight(user, drive.TableContacts, drive.SystemView); err != nil {
			return err
		}
		contacts = s.tenant.Contacts()
		for i := range contacts {
			contacts[i] = s.tenant.RedactContact(user, contacts[i])
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return listPayload{Items: contacts, PageSize: len(contacts), Total: len(contacts)}, nil
}

func (s *Server) handleCreateContact(r *http.Request, user drive.UserID) (any, error) {
	var req contactRequest
	if err := decode(r, &req); err != nil {
		return nil, err
	}

	var contact drive.Contact
	_, err := s.tenant.Mutate("create_contact", func() error {
		if err := s.requireTableRight(user, drive.TableContacts, drive.SystemCreate); err != nil {
			return err
		}
		var err error
		if contact, err = s.tenant.CreateContact(req.input()); err != nil {
			return err
		}
		contact = s.tenant.RedactContact(user, contact)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return contact, nil
}

func (s *Server) handleGetContact(r *http.Request, user drive.UserID) (any, error) {
	id := drive.UserID(r.PathValue("id"))

	var contact drive.Contact
	err := s.tenant.Run(func() error {
		var err error
		if contact, err = s.tenant.GetContact(id); err != nil {
			return err
		}
		contact = s.tenant.RedactContact(user, contact)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return contact, nil
}

func (s *Server) handleUpdateContact(r *http.Request, user drive.UserID) (any, error) {
	id := drive.UserID(r.PathValue("id"))
	var req contactRequest
	if err := decode(r, &req); err != nil {
		return nil, err
	}

	var contact drive.Contact
	_, err := s.tenant.Mutate("update_contact "+string(id), func() error {
		if user != id {
			if err := s.requireTableRight(user, drive.TableContacts, drive.SystemEdit); err != nil {
				return err
			}
		}
		var err error
		if contact, err = s.tenant.UpdateContact(id, req.input()); err != nil {
			return err
		}
		contact = s.tenant.RedactContact(user, contact)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return contact, nil
}

func (s *Server) handleDeleteContact(r *http.Request, user drive.UserID) (any, error) {
	id := drive.UserID(r.PathValue("id"))

	_, err := s.tenant.Mutate("delete_contact "+string(id), func() error {
		if err := s.requireTableRight(user, drive.TableContacts, drive.SystemDelete); err != nil {
			return err
		}
		return s.tenant.DeleteContact(id)
	})
	if err != nil {
		return nil, err
	}
	return map[string]bool{"deleted": true}, nil
}

// Groups

type groupRequest struct {
	ID         string `json:"id,omitempty"`
	Name       string `json:"name"`
	AvatarURL  string `json:"avatar_url,omitempty"`
	PublicNote string `json:"public_note,omitempty"`
	Endpoint   string `json:"endpoint,omitempty"`
	ExternalID string `json:"external_id,omitempty"`
}

func (s *Server) handleListGroups(r *http.Request, user drive.UserID) (any, error) {
	var groups []drive.Group
	err := s.tenant.Run(func() error {
		if err := s.requireTableRight(user, drive.TableGroups, drive.SystemView); err != nil {
			return err
		}
		groups = s.tenant.Groups()
		for i := range groups {
			groups[i] = s.tenant.RedactGroup(user, groups[i])
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return listPayload{Items: groups, PageSize: len(groups), Total: len(groups)}, nil
}

func (s *Server) handleCreateGroup(r *http.Request, user drive.UserID) (any, error) {
	var req groupRequest
	if err := decode(r, &req); err != nil {
		return nil, err
	}

	var group drive.Group
	_, err := s.tenant.Mutate("create_group", func() error {
		var err error
		group, err = s.tenant.CreateGroup(drive.CreateGroupInput{
			ID:         req.ID,
			Name:       req.Name,
			Owner:      user,
			AvatarURL:  req.AvatarURL,
			PublicNote: req.PublicNote,
			Endpoint:   req.Endpoint,
			ExternalID: req.ExternalID,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return group, nil
}

func (s *Server) handleGetGroup(r *http.Request, user drive.UserID) (any, error) {
	id := drive.GroupID(r.PathValue("id"))

	var group drive.Group
	err := s.tenant.Run(func() error {
		var err error
		if group, err = s.tenant.GetGroup(id); err != nil {
			return err
		}
		group = s.tenant.RedactGroup(user, group)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return group, nil
}

func (s *Server) handleDeleteGroup(r *http.Request, user drive.UserID) (any, error) {
	id := drive.GroupID(r.PathValue("id"))

	_, err := s.tenant.Mutate("delete_group "+string(id), func() error {
		group, err := s.tenant.GetGroup(id)
		if err != nil {
			return err
		}
		if group.Owner != user {
			if err := s.requireTableRight(user, drive.TableGroups, drive.SystemDelete); err != nil {
				return err
			}
		}
		return s.tenant.DeleteGroup(id)
	})
	if err != nil {
		return nil, err
	}
	return map[string]bool{"deleted": true}, nil
}

type validateMembershipRequest struct {
	UserID  drive.UserID  `json:"user_id"`
	GroupID drive.GroupID `json:"group_id"`
}

type validateMembershipResponse struct {
	IsMember bool          `json:"is_member"`
	GroupID  drive.GroupID `json:"group_id"`
	UserID   drive.UserID  `json:"user_id"`
}

// handleValidateMembership serves the cross-tenant membership query other
// drives call for groups that live here.
func (s *Server) handleValidateMembership(r *http.Request, _ drive.UserID) (any, error) {
	var req validateMembershipRequest
	if err := decode(r, &req); err != nil {
		return nil, err
	}

	var member bool
	err := s.tenant.Run(func() error {
		var err error
		member, err = s.tenant.ValidateMembership(req.UserID, req.GroupID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return validateMembershipResponse{IsMember: member, GroupID: req.GroupID, UserID: req.UserID}, nil
}

// Invites

type inviteRequest struct {
	GroupID      drive.GroupID   `json:"group_id"`
	InviteeID    string          `json:"invitee_id,omitempty"`
	Role         drive.GroupRole `json:"role"`
	ActiveFromMS int64           `json:"active_from_ms,omitempty"`
	ExpiresAtMS  int64           `json:"expires_at_ms,omitempty"`
	Note         string          `json:"note,omitempty"`
	ExternalID   string          `json:"external_id,omitempty"`
}

func (s *Server) handleCreateInvite(r *http.Request, user drive.UserID) (any, error) {
	var req inviteRequest
	if err := decode(r, &req); err != nil {
		return nil, err
	}

	var invite drive.GroupInvite
	_, err := s.tenant.Mutate("create_invite", func() error {
		var err error
		invite, err = s.tenant.CreateGroupInvite(user, drive.InviteInput{
			GroupID:      req.GroupID,
			InviteeID:    req.InviteeID,
			Role:         req.Role,
			ActiveFromMS: req.ActiveFromMS,
			ExpiresAtMS:  req.ExpiresAtMS,
			Note:         req.Note,
			ExternalID:   req.ExternalID,
		})
		if err != nil {
			return err
		}
		s.tenant.FireWebhooks(r.Context(), drive.EventGroupInviteCreated, string(invite.ID), nil, invite, "")
		return nil
	})
	if err != nil {
		return nil, err
	}
	return invite, nil
}

func (s *Server) handleListInvites(r *http.Request, user drive.UserID) (any, error) {
	invitee := r.URL.Query().Get("invitee")
	if invitee == "" {
		invitee = string(user)
	}

	var invites []drive.GroupInvite
	err := s.tenant.Run(func() error {
		if invitee != string(user) {
			if err := s.requireTableRight(user, drive.TableGroups, drive.SystemView); err != nil {
				return err
			}
		}
		invites = s.tenant.InvitesFor(invitee)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return listPayload{Items: invites, PageSize: len(invites), Total: len(invites)}, nil
}

func (s *Server) handleGetInvite(r *http.Request, user drive.UserID) (any, error) {
	id := drive.InviteID(r.PathValue("id"))

	var invite drive.GroupInvite
	err := s.tenant.Run(func() error {
		var err error
		invite, err = s.tenant.GetInvite(id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return invite, nil
}

type redeemInviteRequest struct {
	PlaceholderID drive.PlaceholderID `json:"placeholder_id"`
	UserID        drive.UserID        `json:"user_id"`
}

func (s *Server) handleRedeemInvite(r *http.Request, user drive.UserID) (any, error) {
	id := drive.InviteID(r.PathValue("id"))
	var req redeemInviteRequest
	if err := decode(r, &req); err != nil {
		return nil, err
	}
	if req.UserID == "" {
		req.UserID = user
	}

	var invite drive.GroupInvite
	_, err := s.tenant.Mutate("redeem_invite "+string(id), func() error {
		var err error
		if invite, err = s.tenant.RedeemGroupInvite(id, req.PlaceholderID, req.UserID); err != nil {
			return err
		}
		s.tenant.FireWebhooks(r.Context(), drive.EventGroupInviteUpdated, string(id), nil, invite, "redeemed")
		return nil
	})
	if err != nil {
		return nil, err
	}
	return invite, nil
}

type updateInviteRequest struct {
	Role         *drive.GroupRole `json:"role,omitempty"`
	ActiveFromMS *int64           `json:"active_from_ms,omitempty"`
	ExpiresAtMS  *int64           `json:"expires_at_ms,omitempty"`
	Note         *string          `json:"note,omitempty"`
}

func (s *Server) handleUpdateInvite(r *http.Request, user drive.UserID) (any, error) {
	id := drive.InviteID(r.PathValue("id"))
	var req updateInviteRequest
	if err := decode(r, &req); err != nil {
		return nil, err
	}

	var invite drive.GroupInvite
	_, err := s.tenant.Mutate("update_invite "+string(id), func() error {
		var err error
		if invite, err = s.tenant.UpdateGroupInvite(user, id, req.Role, req.ActiveFromMS, req.ExpiresAtMS, req.Note); err != nil {
			return err
		}
		s.tenant.FireWebhooks(r.Context(), drive.EventGroupInviteUpdated, string(id), nil, invite, "")
		return nil
	})
	if err != nil {
		return nil, err
	}
	return invite, nil
}

func (s *Server) handleDeleteInvite(r *http.Request, user drive.UserID) (any, error) {
	id := drive.InviteID(r.PathValue("id"))

	_, err := s.tenant.Mutate("delete_invite "+string(id), func() error {
		return s.tenant.DeleteGroupInvite(user, id)
	})
	if err != nil {
		return nil, err
	}
	return map[string]bool{"deleted": true}, nil
}
