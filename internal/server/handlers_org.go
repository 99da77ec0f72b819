package server

import (
	"net/http"

	"github.com/drivelab/orgdrive/internal/logger"
	"github.com/drivelab/orgdrive/pkg/drive"
)

func (s *Server) handleAbout(r *http.Request, user drive.UserID) (any, error) {
	var state drive.DriveState
	err := s.tenant.Run(func() error {
		state = s.tenant.State()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return state, nil
}

type superswapRequest struct {
	OldUserID drive.UserID `json:"old_user_id"`
	NewUserID drive.UserID `json:"new_user_id"`
}

func (s *Server) handleSuperswap(r *http.Request, user drive.UserID) (any, error) {
	var req superswapRequest
	if err := decode(r, &req); err != nil {
		return nil, err
	}

	var result drive.SuperswapResult
	_, err := s.tenant.Mutate("superswap "+string(req.OldUserID), func() error {
		if !s.tenant.IsOwner(user) {
			return drive.Unauthorized("only the drive owner can superswap users")
		}
		var err error
		if result, err = s.tenant.SuperswapUser(req.OldUserID, req.NewUserID); err != nil {
			return err
		}
		s.tenant.FireWebhooks(r.Context(), drive.EventSuperswapUser, string(req.OldUserID), req.OldUserID, req.NewUserID, "")
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Server) handleHistory(r *http.Request, user drive.UserID) (any, error) {
	var history []drive.DiffRecord
	err := s.tenant.Run(func() error {
		if err := s.requireTableRight(user, drive.TableDrives, drive.SystemView); err != nil {
			return err
		}
		history = s.tenant.History()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return listPayload{Items: history, PageSize: len(history), Total: len(history)}, nil
}

type replayRequest struct {
	Diffs []drive.DiffRecord `json:"diffs"`
}

type replayResponse struct {
	Applied int `json:"applied"`
}

func (s *Server) handleReplay(r *http.Request, user drive.UserID) (any, error) {
	var req replayRequest
	if err := decode(r, &req); err != nil {
		return nil, err
	}

	var applied int
	err := s.tenant.Run(func() error {
		if !s.tenant.IsOwner(user) {
			return drive.Unauthorized("only the drive owner can replay diffs")
		}
		var err error
		if applied, err = s.tenant.SafelyApplyDiffs(req.Diffs); err != nil {
			return err
		}
		s.tenant.FireWebhooks(r.Context(), drive.EventDriveStateDiffs, "", nil, applied, "replay")
		return nil
	})
	if err != nil {
		return nil, err
	}
	return replayResponse{Applied: applied}, nil
}

// snapshotDownload streams the full state blob. It bypasses the JSON
// envelope since the payload is binary.
func (s *Server) snapshotDownload() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := s.authenticate(r)
		if err == nil {
			err = s.matchDrive(r)
		}
		if err == nil {
			err = s.tenant.Run(func() error {
				if !s.tenant.IsOwner(user) {
					return drive.Unauthorized("only the drive owner can export snapshots")
				}
				return nil
			})
		}
		if err != nil {
			writeErr(w, err)
			return
		}

		var blob []byte
		err = s.tenant.Run(func() error {
			var err error
			blob, err = s.tenant.ExportSnapshot()
			return err
		})
		if err != nil {
			writeErr(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/octet-stream")
		if err := drive.WriteBlob(w, blob); err != nil {
			logger.Warn("snapshot download aborted: %v", err)
		}
	}
}

// maxUploadedSnapshotBytes caps the decompressed snapshot accepted over
// the API.
const maxUploadedSnapshotBytes = 1 << 30 // 1GB

func (s *Server) handleApplySnapshot(r *http.Request, user drive.UserID) (any, error) {
	blob, err := drive.ReadBlob(r.Body, maxUploadedSnapshotBytes)
	if err != nil {
		return nil, err
	}

	err = s.tenant.Run(func() error {
		if !s.tenant.IsOwner(user) {
			return drive.Unauthorized("only the drive owner can apply snapshots")
		}
		return s.tenant.ApplySnapshot(blob)
	})
	if err != nil {
		return nil, err
	}
	return map[string]bool{"applied": true}, nil
}

func (s *Server) handleListExternalIDs(r *http.Request, user drive.UserID) (any, error) {
	key := r.URL.Query().Get("key")

	var payload any
	err := s.tenant.Run(func() error {
		if err := s.requireTableRight(user, drive.TableDrives, drive.SystemView); err != nil {
			return err
		}
		if key != "" {
			internals, ok := s.tenant.LookupExternalID(key)
			if !ok {
				return drive.NotFound("external id")
			}
			payload = map[string]any{"key": key, "internal_ids": internals}
			return nil
		}
		keys := s.tenant.ExternalIDKeys()
		payload = listPayload{Items: keys, PageSize: len(keys), Total: len(keys)}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return payload, nil
}
