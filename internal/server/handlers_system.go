package server

import (
	"net/http"

	"github.com/drivelab/orgdrive/pkg/drive"
)

// Disks

type diskRequest struct {
	ID          string         `json:"id,omitempty"`
	Name        string         `json:"name"`
	Type        drive.DiskType `json:"type"`
	PublicNote  string         `json:"public_note,omitempty"`
	PrivateNote string         `json:"private_note,omitempty"`
	AuthJSON    string         `json:"auth_json,omitempty"`
	ExternalID  string         `json:"external_id,omitempty"`
}

func (d diskRequest) input() drive.DiskInput {
	return drive.DiskInput{
		ID:          d.ID,
		Name:        d.Name,
		Type:        d.Type,
		PublicNote:  d.PublicNote,
		PrivateNote: d.PrivateNote,
		AuthJSON:    d.AuthJSON,
		ExternalID:  d.ExternalID,
	}
}

func (s *Server) handleListDisks(r *http.Request, user drive.UserID) (any, error) {
	var disks []drive.Disk
	err := s.tenant.Run(func() error {
		if err := s.requireTableRight(user, drive.TableDisks, drive.SystemView); err != nil {
			return err
		}
		disks = s.tenant.Disks()
		for i := range disks {
			disks[i] = s.tenant.RedactDisk(user, disks[i])
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return listPayload{Items: disks, PageSize: len(disks), Total: len(disks)}, nil
}

func (s *Server) handleCreateDisk(r *http.Request, user drive.UserID) (any, error) {
	var req diskRequest
	if err := decode(r, &req); err != nil {
		return nil, err
	}

	var disk drive.Disk
	_, err := s.tenant.Mutate("create_disk", func() error {
		if err := s.requireTableRight(user, drive.TableDisks, drive.SystemCreate); err != nil {
			return err
		}
		var err error
		if disk, err = s.tenant.CreateDisk(user, req.input()); err != nil {
			return err
		}
		disk = s.tenant.RedactDisk(user, disk)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return disk, nil
}

func (s *Server) handleGetDisk(r *http.Request, user drive.UserID) (any, error) {
	id := drive.DiskID(r.PathValue("id"))

	var disk drive.Disk
	err := s.tenant.Run(func() error {
		if err := s.requireTableRight(user, drive.TableDisks, drive.SystemView); err != nil {
			return err
		}
		var err error
		if disk, err = s.tenant.GetDisk(id); err != nil {
			return err
		}
		disk = s.tenant.RedactDisk(user, disk)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return disk, nil
}

func (s *Server) handleUpdateDisk(r *http.Request, user drive.UserID) (any, error) {
	id := drive.DiskID(r.PathValue("id"))
	var req diskRequest
	if err := decode(r, &req); err != nil {
		return nil, err
	}

	var disk drive.Disk
	_, err := s.tenant.Mutate("update_disk "+string(id), func() error {
		if err := s.requireTableRight(user, drive.TableDisks, drive.SystemEdit); err != nil {
			return err
		}
		var err error
		if disk, err = s.tenant.UpdateDisk(id, req.input()); err != nil {
			return err
		}
		disk = s.tenant.RedactDisk(user, disk)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return disk, nil
}

func (s *Server) handleDeleteDisk(r *http.Request, user drive.UserID) (any, error) {
	id := drive.DiskID(r.PathValue("id"))

	_, err := s.tenant.Mutate("delete_disk "+string(id), func() error {
		if err := s.requireTableRight(user, drive.TableDisks, drive.SystemDelete); err != nil {
			return err
		}
		return s.tenant.DeleteDisk(id)
	})
	if err != nil {
		return nil, err
	}
	return map[string]bool{"deleted": true}, nil
}

// API keys

type apiKeyRequest struct {
	ID          string       `json:"id,omitempty"`
	Name        string       `json:"name"`
	UserID      drive.UserID `json:"user_id,omitempty"`
	ExpiresAtMS int64        `json:"expires_at_ms,omitempty"`
	ExternalID  string       `json:"external_id,omitempty"`
}

func (s *Server) handleListAPIKeys(r *http.Request, user drive.UserID) (any, error) {
	target := drive.UserID(r.URL.Query().Get("user"))
	if target == "" {
		target = user
	}

	var keys []drive.APIKeyRecord
	err := s.tenant.Run(func() error {
		if target != user {
			if err := s.requireTableRight(user, drive.TableAPIKeys, drive.SystemView); err != nil {
				return err
			}
		}
		keys = s.tenant.APIKeysFor(target)
		for i := range keys {
			keys[i] = s.tenant.RedactAPIKey(user, keys[i])
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return listPayload{Items: keys, PageSize: len(keys), Total: len(keys)}, nil
}

func (s *Server) handleCreateAPIKey(r *http.Request, user drive.UserID) (any, error) {
	var req apiKeyRequest
	if err := decode(r, &req); err != nil {
		return nil, err
	}
	if req.UserID == "" {
		req.UserID = user
	}

	var key drive.APIKeyRecord
	_, err := s.tenant.Mutate("create_apikey", func() error {
		if req.UserID != user {
			if err := s.requireTableRight(user, drive.TableAPIKeys, drive.SystemCreate); err != nil {
				return err
			}
		}
		var err error
		key, err = s.tenant.CreateAPIKey(drive.APIKeyInput{
			ID:          req.ID,
			Name:        req.Name,
			UserID:      req.UserID,
			ExpiresAtMS: req.ExpiresAtMS,
			ExternalID:  req.ExternalID,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	// The raw value is shown once, at creation
	return key, nil
}

func (s *Server) handleGetAPIKey(r *http.Request, user drive.UserID) (any, error) {
	id := drive.APIKeyID(r.PathValue("id"))

	var key drive.APIKeyRecord
	err := s.tenant.Run(func() error {
		var err error
		key, err = s.tenant.GetAPIKey(id)
		if err != nil {
			return err
		}
		if key.UserID != user {
			if err := s.requireTableRight(user, drive.TableAPIKeys, drive.SystemView); err != nil {
				return err
			}
		}
		key = s.tenant.RedactAPIKey(user, key)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return key, nil
}

func (s *Server) handleRevokeAPIKey(r *http.Request, user drive.UserID) (any, error) {
	id := drive.APIKeyID(r.PathValue("id"))

	_, err := s.tenant.Mutate("revoke_apikey "+string(id), func() error {
		key, err := s.tenant.GetAPIKey(id)
		if err != nil {
			return err
		}
		if key.UserID != user {
			if err := s.requireTableRight(user, drive.TableAPIKeys, drive.SystemEdit); err != nil {
				return err
			}
		}
		return s.tenant.RevokeAPIKey(id)
	})
	if err != nil {
		return nil, err
	}
	return map[string]bool{"revoked": true}, nil
}

func (s *Server) handleDeleteAPIKey(r *http.Request, user drive.UserID) (any, error) {
	id := drive.APIKeyID(r.PathValue("id"))

	_, err := s.tenant.Mutate("delete_apikey "+string(id), func() error {
		key, err := s.tenant.GetAPIKey(id)
		if err != nil {
			return err
		}
		if key.UserID != user {
			if err := s.requireTableRight(user, drive.TableAPIKeys, drive.SystemDelete); err != nil {
				return err
			}
		}
		return s.tenant.DeleteAPIKey(id)
	})
	if err != nil {
		return nil, err
	}
	return map[string]bool{"deleted": true}, nil
}

// Webhooks

type webhookRequest struct {
	ID         string             `json:"id,omitempty"`
	AltIndex   string             `json:"alt_index,omitempty"`
	Event      drive.WebhookEvent `json:"event"`
	URL        string             `json:"url"`
	Signature  string             `json:"signature,omitempty"`
	Note       string             `json:"note,omitempty"`
	Filters    string             `json:"filters,omitempty"`
	ExternalID string             `json:"external_id,omitempty"`
}

func (s *Server) handleListWebhooks(r *http.Request, user drive.UserID) (any, error) {
	var hooks []drive.Webhook
	err := s.tenant.Run(func() error {
		if err := s.requireTableRight(user, drive.TableWebhooks, drive.SystemView); err != nil {
			return err
		}
		hooks = s.tenant.Webhooks()
		for i := range hooks {
			hooks[i] = s.tenant.RedactWebhook(user, hooks[i])
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return listPayload{Items: hooks, PageSize: len(hooks), Total: len(hooks)}, nil
}

func (s *Server) handleCreateWebhook(r *http.Request, user drive.UserID) (any, error) {
	var req webhookRequest
	if err := decode(r, &req); err != nil {
		return nil, err
	}

	var hook drive.Webhook
	_, err := s.tenant.Mutate("create_webhook", func() error {
		if err := s.requireTableRight(user, drive.TableWebhooks, drive.SystemCreate); err != nil {
			return err
		}
		var err error
		hook, err = s.tenant.CreateWebhook(drive.WebhookInput{
			ID:         req.ID,
			AltIndex:   req.AltIndex,
			Event:      req.Event,
			URL:        req.URL,
			Signature:  req.Signature,
			Note:       req.Note,
			Filters:    req.Filters,
			ExternalID: req.ExternalID,
		})
		if err != nil {
			return err
		}
		hook = s.tenant.RedactWebhook(user, hook)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return hook, nil
}

func (s *Server) handleGetWebhook(r *http.Request, user drive.UserID) (any, error) {
	id := drive.WebhookID(r.PathValue("id"))

	var hook drive.Webhook
	err := s.tenant.Run(func() error {
		if err := s.requireTableRight(user, drive.TableWebhooks, drive.SystemView); err != nil {
			return err
		}
		var err error
		if hook, err = s.tenant.GetWebhook(id); err != nil {
			return err
		}
		hook = s.tenant.RedactWebhook(user, hook)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return hook, nil
}

type updateWebhookRequest struct {
	URL     *string `json:"url,omitempty"`
	Note    *string `json:"note,omitempty"`
	Filters *string `json:"filters,omitempty"`
	Active  *bool   `json:"active,omitempty"`
}

func (s *Server) handleUpdateWebhook(r *http.Request, user drive.UserID) (any, error) {
	id := drive.WebhookID(r.PathValue("id"))
	var req updateWebhookRequest
	if err := decode(r, &req); err != nil {
		return nil, err
	}

	var hook drive.Webhook
	_, err := s.tenant.Mutate("update_webhook "+string(id), func() error {
		if err := s.requireTableRight(user, drive.TableWebhooks, drive.SystemEdit); err != nil {
			return err
		}
		var err error
		if hook, err = s.tenant.UpdateWebhook(id, req.URL, req.Note, req.Filters, req.Active); err != nil {
			return err
		}
		hook = s.tenant.RedactWebhook(user, hook)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return hook, nil
}

func (s *Server) handleDeleteWebhook(r *http.Request, user drive.UserID) (any, error) {
	id := drive.WebhookID(r.PathValue("id"))

	_, err := s.tenant.Mutate("delete_webhook "+string(id), func() error {
		if err := s.requireTableRight(user, drive.TableWebhooks, drive.SystemDelete); err != nil {
			return err
		}
		return s.tenant.DeleteWebhook(id)
	})
	if err != nil {
		return nil, err
	}
	return map[string]bool{"deleted": true}, nil
}
