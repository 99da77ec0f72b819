package server

import (
	"net/http"

	"github.com/drivelab/orgdrive/pkg/drive"
)

// Labels

func (s *Server) handleListLabels(r *http.Request, user drive.UserID) (any, error) {
	var labels []drive.Label
	err := s.tenant.Run(func() error {
		for _, label := range s.tenant.Labels() {
			if redacted, ok := s.tenant.RedactLabel(user, label); ok {
				labels = append(labels, redacted)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return listPayload{Items: labels, PageSize: len(labels), Total: len(labels)}, nil
}

func (s *Server) handleGetLabel(r *http.Request, user drive.UserID) (any, error) {
	id := drive.LabelID(r.PathValue("id"))

	var label drive.Label
	err := s.tenant.Run(func() error {
		got, err := s.tenant.GetLabel(id)
		if err != nil {
			return err
		}
		redacted, ok := s.tenant.RedactLabel(user, got)
		if !ok {
			return drive.NotFound("label")
		}
		label = redacted
		return nil
	})
	if err != nil {
		return nil, err
	}
	return label, nil
}

type attachLabelRequest struct {
	ResourceID string `json:"resource_id"`
	Value      string `json:"value"`
	Color      string `json:"color,omitempty"`
}

func (s *Server) handleAttachLabel(r *http.Request, user drive.UserID) (any, error) {
	var req attachLabelRequest
	if err := decode(r, &req); err != nil {
		return nil, err
	}

	var label drive.Label
	_, err := s.tenant.Mutate("attach_label "+req.Value, func() error {
		if err := s.requireTableRight(user, drive.TableLabels, drive.SystemEdit); err != nil {
			return err
		}
		var err error
		if label, err = s.tenant.AttachLabel(req.ResourceID, req.Value, req.Color, user); err != nil {
			return err
		}
		s.tenant.FireWebhooks(r.Context(), drive.EventLabelAdded, req.ResourceID, nil, label, "")
		return nil
	})
	if err != nil {
		return nil, err
	}
	return label, nil
}

type detachLabelRequest struct {
	ResourceID string `json:"resource_id"`
	Value      string `json:"value"`
}

func (s *Server) handleDetachLabel(r *http.Request, user drive.UserID) (any, error) {
	var req detachLabelRequest
	if err := decode(r, &req); err != nil {
		return nil, err
	}

	_, err := s.tenant.Mutate("detach_label "+req.Value, func() error {
		if err := s.requireTableRight(user, drive.TableLabels, drive.SystemEdit); err != nil {
			return err
		}
		if err := s.tenant.DetachLabel(req.ResourceID, req.Value); err != nil {
			return err
		}
		s.tenant.FireWebhooks(r.Context(), drive.EventLabelRemoved, req.ResourceID, nil, nil, req.Value)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return map[string]bool{"detached": true}, nil
}

type renameLabelRequest struct {
	Value string `json:"value"`
}

func (s *Server) handleRenameLabel(r *http.Request, user drive.UserID) (any, error) {
	id := drive.LabelID(r.PathValue("id"))
	var req renameLabelRequest
	if err := decode(r, &req); err != nil {
		return nil, err
	}

	var label drive.Label
	_, err := s.tenant.Mutate("rename_label "+string(id), func() error {
		if err := s.requireTableRight(user, drive.TableLabels, drive.SystemEdit); err != nil {
			return err
		}
		var err error
		label, err = s.tenant.RenameLabel(id, req.Value)
		return err
	})
	if err != nil {
		return nil, err
	}
	return label, nil
}

type updateLabelRequest struct {
	Color       *string `json:"color,omitempty"`
	PublicNote  *string `json:"public_note,omitempty"`
	PrivateNote *string `json:"private_note,omitempty"`
	ExternalID  *string `json:"external_id,omitempty"`
}

func (s *Server) handleUpdateLabel(r *http.Request, user drive.UserID) (any, error) {
	id := drive.LabelID(r.PathValue("id"))
	var req updateLabelRequest
	if err := decode(r, &req); err != nil {
		return nil, err
	}

	var label drive.Label
	_, err := s.tenant.Mutate("update_label "+string(id), func() error {
		if err := s.requireTableRight(user, drive.TableLabels, drive.SystemEdit); err != nil {
			return err
		}
		var err error
		label, err = s.tenant.UpdateLabel(id, req.Color, req.PublicNote, req.PrivateNote, req.ExternalID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return label, nil
}

// Directory permissions

type dirPermissionRequest struct {
	ID           string                   `json:"id,omitempty"`
	Resource     drive.DirectoryResource  `json:"resource"`
	GrantedTo    drive.Grantee            `json:"granted_to"`
	Rights       []drive.DirectoryRight   `json:"rights"`
	BeginDateMS  int64                    `json:"begin_date_ms,omitempty"`
	ExpiryDateMS int64                    `json:"expiry_date_ms,omitempty"`
	Inheritable  bool                     `json:"inheritable,omitempty"`
	Note         string                   `json:"note,omitempty"`
	ExternalID   string                   `json:"external_id,omitempty"`
}

func (s *Server) handleCreateDirPermission(r *http.Request, user drive.UserID) (any, error) {
	var req dirPermissionRequest
	if err := decode(r, &req); err != nil {
		return nil, err
	}

	var perm drive.DirectoryPermission
	_, err := s.tenant.Mutate("create_dir_permission", func() error {
		var err error
		perm, err = s.tenant.CreateDirectoryPermission(user, drive.DirectoryPermissionInput{
			ID:           req.ID,
			Resource:     req.Resource,
			GrantedTo:    req.GrantedTo,
			Rights:       req.Rights,
			BeginDateMS:  req.BeginDateMS,
			ExpiryDateMS: req.ExpiryDateMS,
			Inheritable:  req.Inheritable,
			Note:         req.Note,
			ExternalID:   req.ExternalID,
		})
		if err != nil {
			return err
		}
		event := drive.EventFileShared
		if req.Resource.Kind == drive.ResourceFolder {
			event = drive.EventFolderShared
		}
		s.tenant.FireWebhooks(r.Context(), event, req.Resource.ID, nil, perm, "")
		return nil
	})
	if err != nil {
		return nil, err
	}
	return perm, nil
}

func (s *Server) handleGetDirPermission(r *http.Request, user drive.UserID) (any, error) {
	id := drive.DirectoryPermissionID(r.PathValue("id"))

	var perm drive.DirectoryPermission
	err := s.tenant.Run(func() error {
		got, err := s.tenant.GetDirectoryPermission(id)
		if err != nil {
			return err
		}
		if !s.tenant.CanUserAccessDirectoryPermission(user, got) {
			return drive.NotFound("permission")
		}
		perm = got
		return nil
	})
	if err != nil {
		return nil, err
	}
	return perm, nil
}

type updateDirPermissionRequest struct {
	Rights       []drive.DirectoryRight `json:"rights,omitempty"`
	BeginDateMS  *int64                 `json:"begin_date_ms,omitempty"`
	ExpiryDateMS *int64                 `json:"expiry_date_ms,omitempty"`
	Inheritable  *bool                  `json:"inheritable,omitempty"`
	Note         *string                `json:"note,omitempty"`
}

func (s *Server) handleUpdateDirPermission(r *http.Request, user drive.UserID) (any, error) {
	id := drive.DirectoryPermissionID(r.PathValue("id"))
	var req updateDirPermissionRequest
	if err := decode(r, &req); err != nil {
		return nil, err
	}

	var perm drive.DirectoryPermission
	_, err := s.tenant.Mutate("update_dir_permission "+string(id), func() error {
		var err error
		perm, err = s.tenant.UpdateDirectoryPermission(user, id, req.Rights, req.BeginDateMS, req.ExpiryDateMS, req.Inheritable, req.Note)
		return err
	})
	if err != nil {
		return nil, err
	}
	return perm, nil
}

func (s *Server) handleDeleteDirPermission(r *http.Request, user drive.UserID) (any, error) {
	id := drive.DirectoryPermissionID(r.PathValue("id"))

	_, err := s.tenant.Mutate("delete_dir_permission "+string(id), func() error {
		return s.tenant.DeleteDirectoryPermission(user, id)
	})
	if err != nil {
		return nil, err
	}
	return map[string]bool{"deleted": true}, nil
}

type checkDirPermissionsRequest struct {
	Resource drive.DirectoryResource `json:"resource"`
	UserID   drive.UserID            `json:"user_id,omitempty"`
}

type checkDirPermissionsResponse struct {
	Rights      []drive.DirectoryRight `json:"rights"`
	Breadcrumbs []drive.Breadcrumb     `json:"breadcrumbs"`
}

func (s *Server) handleCheckDirPermissions(r *http.Request, user drive.UserID) (any, error) {
	var req checkDirPermissionsRequest
	if err := decode(r, &req); err != nil {
		return nil, err
	}
	subject := req.UserID
	if subject == "" {
		subject = user
	}

	var resp checkDirPermissionsResponse
	err := s.tenant.Run(func() error {
		// Checking another user's rights needs manage authority
		if subject != user && !s.tenant.IsOwner(user) &&
			!s.tenant.HasDirectoryManagePermission(req.Resource, user) {
			return drive.Unauthorized("cannot inspect another user's permissions")
		}
		rights := s.tenant.CheckDirectoryPermissions(req.Resource, subject)
		if s.tenant.IsOwner(subject) {
			rights = drive.AllDirectoryRights()
		}
		resp.Rights = rights.Slice()
		resp.Breadcrumbs = s.tenant.DeriveBreadcrumbs(req.Resource, subject)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (s *Server) handleListDirPermissions(r *http.Request, user drive.UserID) (any, error) {
	q := r.URL.Query()
	resource := drive.DirectoryResource{
		Kind: drive.DirectoryResourceKind(q.Get("kind")),
		ID:   q.Get("id"),
	}

	var perms []drive.DirectoryPermission
	err := s.tenant.Run(func() error {
		perms = s.tenant.PermissionsForDirectoryResource(user, resource)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return listPayload{Items: perms, PageSize: len(perms), Total: len(perms)}, nil
}

// System permissions

type sysPermissionRequest struct {
	ID           string               `json:"id,omitempty"`
	Resource     drive.SystemResource `json:"resource"`
	GrantedTo    drive.Grantee        `json:"granted_to"`
	Rights       []drive.SystemRight  `json:"rights"`
	BeginDateMS  int64                `json:"begin_date_ms,omitempty"`
	ExpiryDateMS int64                `json:"expiry_date_ms,omitempty"`
	LabelPrefix  string               `json:"label_prefix,omitempty"`
	Note         string               `json:"note,omitempty"`
	ExternalID   string               `json:"external_id,omitempty"`
}

func (s *Server) handleCreateSysPermission(r *http.Request, user drive.UserID) (any, error) {
	var req sysPermissionRequest
	if err := decode(r, &req); err != nil {
		return nil, err
	}

	var perm drive.SystemPermission
	_, err := s.tenant.Mutate("create_sys_permission", func() error {
		var err error
		perm, err = s.tenant.CreateSystemPermission(user, drive.SystemPermissionInput{
			ID:           req.ID,
			Resource:     req.Resource,
			GrantedTo:    req.GrantedTo,
			Rights:       req.Rights,
			BeginDateMS:  req.BeginDateMS,
			ExpiryDateMS: req.ExpiryDateMS,
			LabelPrefix:  req.LabelPrefix,
			Note:         req.Note,
			ExternalID:   req.ExternalID,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return perm, nil
}

func (s *Server) handleGetSysPermission(r *http.Request, user drive.UserID) (any, error) {
	id := drive.SystemPermissionID(r.PathValue("id"))

	var perm drive.SystemPermission
	err := s.tenant.Run(func() error {
		got, err := s.tenant.GetSystemPermission(id)
		if err != nil {
			return err
		}
		if !s.tenant.CanUserAccessSystemPermission(user, got) {
			return drive.NotFound("permission")
		}
		perm = got
		return nil
	})
	if err != nil {
		return nil, err
	}
	return perm, nil
}

type updateSysPermissionRequest struct {
	Rights       []drive.SystemRight `json:"rights,omitempty"`
	BeginDateMS  *int64              `json:"begin_date_ms,omitempty"`
	ExpiryDateMS *int64              `json:"expiry_date_ms,omitempty"`
	LabelPrefix  *string             `json:"label_prefix,omitempty"`
	Note         *string             `json:"note,omitempty"`
}

func (s *Server) handleUpdateSysPermission(r *http.Request, user drive.UserID) (any, error) {
	id := drive.SystemPermissionID(r.PathValue("id"))
	var req updateSysPermissionRequest
	if err := decode(r, &req); err != nil {
		return nil, err
	}

	var perm drive.SystemPermission
	_, err := s.tenant.Mutate("update_sys_permission "+string(id), func() error {
		var err error
		perm, err = s.tenant.UpdateSystemPermission(user, id, req.Rights, req.BeginDateMS, req.ExpiryDateMS, req.LabelPrefix, req.Note)
		return err
	})
	if err != nil {
		return nil, err
	}
	return perm, nil
}

func (s *Server) handleDeleteSysPermission(r *http.Request, user drive.UserID) (any, error) {
	id := drive.SystemPermissionID(r.PathValue("id"))

	_, err := s.tenant.Mutate("delete_sys_permission "+string(id), func() error {
		return s.tenant.DeleteSystemPermission(user, id)
	})
	if err != nil {
		return nil, err
	}
	return map[string]bool{"deleted": true}, nil
}

type checkSysPermissionsRequest struct {
	Resource   drive.SystemResource `json:"resource"`
	UserID     drive.UserID         `json:"user_id,omitempty"`
	LabelValue string               `json:"label_value,omitempty"`
}

func (s *Server) handleCheckSysPermissions(r *http.Request, user drive.UserID) (any, error) {
	var req checkSysPermissionsRequest
	if err := decode(r, &req); err != nil {
		return nil, err
	}
	subject := req.UserID
	if subject == "" {
		subject = user
	}

	var rights drive.RightSet[drive.SystemRight]
	err := s.tenant.Run(func() error {
		if subject != user && !s.tenant.IsOwner(user) {
			return drive.Unauthorized("cannot inspect another user's permissions")
		}
		if req.LabelValue != "" {
			rights = s.tenant.CheckSystemPermissionsWithLabels(req.Resource, subject, req.LabelValue)
		} else {
			rights = s.tenant.CheckSystemPermissions(req.Resource, subject)
		}
		if s.tenant.IsOwner(subject) {
			rights = drive.AllSystemRights()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return map[string][]drive.SystemRight{"rights": rights.Slice()}, nil
}

func (s *Server) handleListSysPermissions(r *http.Request, user drive.UserID) (any, error) {
	q := r.URL.Query()
	resource := drive.SystemResource{
		Kind:   drive.SystemResourceKind(q.Get("kind")),
		Table:  drive.SystemTable(q.Get("table")),
		Record: q.Get("record"),
	}

	var perms []drive.SystemPermission
	err := s.tenant.Run(func() error {
		perms = s.tenant.PermissionsForSystemResource(user, resource)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return listPayload{Items: perms, PageSize: len(perms), Total: len(perms)}, nil
}
