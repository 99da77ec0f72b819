package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/drivelab/orgdrive/pkg/drive"
)

// requireDirRight checks the caller holds one right on a directory
// resource. The drive owner always passes.
func (s *Server) requireDirRight(user drive.UserID, resource drive.DirectoryResource, right drive.DirectoryRight) error {
	if s.tenant.IsOwner(user) {
		return nil
	}
	if !s.tenant.CheckDirectoryPermissions(resource, user).Has(right) {
		return drive.Unauthorized("missing " + string(right) + " permission")
	}
	return nil
}

// uploadTarget finds the deepest existing ancestor folder of a target
// path, the resource an upload permission check runs against.
func (s *Server) uploadTarget(path string) (drive.DirectoryResource, bool) {
	current, _ := splitParent(path)
	for {
		_, folderID, err := s.tenant.ResolvePath(current)
		if err == nil && folderID != "" {
			return drive.FolderResource(folderID), true
		}
		parent, _ := splitParent(current)
		if parent == current {
			return drive.DirectoryResource{}, false
		}
		current = parent
	}
}

// splitParent trims the last path component, keeping the trailing slash
// that marks a folder path.
func splitParent(path string) (string, string) {
	trimmed := path
	if n := len(trimmed); n > 0 && trimmed[n-1] == '/' {
		trimmed = trimmed[:n-1]
	}
	for i := len(trimmed) - 1; i >= 0; i-- {
		if trimmed[i] == '/' {
			return trimmed[:i+1], trimmed[i+1:]
		}
	}
	// Last component below the disk root: the parent is "<tag>::".
	if i := strings.Index(trimmed, "::"); i >= 0 && len(trimmed) > i+2 {
		return trimmed[:i+2], trimmed[i+2:]
	}
	return path, ""
}

type createFileRequest struct {
	ID          string                   `json:"id,omitempty"`
	Path        string                   `json:"path"`
	DiskID      drive.DiskID             `json:"disk_id"`
	FileSize    int64                    `json:"file_size"`
	RawURL      string                   `json:"raw_url,omitempty"`
	ExpiresAtMS int64                    `json:"expires_at_ms,omitempty"`
	Sovereign   bool                     `json:"sovereign,omitempty"`
	ExternalID  string                   `json:"external_id,omitempty"`
	Resolution  drive.ConflictResolution `json:"resolution,omitempty"`
}

func (s *Server) handleCreateFile(r *http.Request, user drive.UserID) (any, error) {
	var req createFileRequest
	if err := decode(r, &req); err != nil {
		return nil, err
	}

	var file drive.FileRecord
	_, err := s.tenant.Mutate("create_file "+req.Path, func() error {
		if target, ok := s.uploadTarget(req.Path); ok {
			if err := s.requireDirRight(user, target, drive.DirectoryUpload); err != nil {
				return err
			}
		} else if !s.tenant.IsOwner(user) {
			return drive.Unauthorized("missing " + string(drive.DirectoryUpload) + " permission")
		}
		var err error
		file, err = s.tenant.CreateFile(user, drive.CreateFileInput{
			ID:          req.ID,
			Path:        req.Path,
			DiskID:      req.DiskID,
			FileSize:    req.FileSize,
			RawURL:      req.RawURL,
			ExpiresAtMS: req.ExpiresAtMS,
			Sovereign:   req.Sovereign,
			ExternalID:  req.ExternalID,
			Resolution:  req.Resolution,
		})
		if err != nil {
			return err
		}
		s.tenant.FireWebhooks(r.Context(), drive.EventFileCreated, string(file.ID), nil, file, "")
		file = s.tenant.RedactFile(user, file)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return file, nil
}

type createFolderRequest struct {
	ID          string                   `json:"id,omitempty"`
	Path        string                   `json:"path"`
	DiskID      drive.DiskID             `json:"disk_id"`
	ExpiresAtMS int64                    `json:"expires_at_ms,omitempty"`
	Sovereign   bool                     `json:"sovereign,omitempty"`
	ExternalID  string                   `json:"external_id,omitempty"`
	Resolution  drive.ConflictResolution `json:"resolution,omitempty"`
}

func (s *Server) handleCreateFolder(r *http.Request, user drive.UserID) (any, error) {
	var req createFolderRequest
	if err := decode(r, &req); err != nil {
		return nil, err
	}

	var folder drive.FolderRecord
	_, err := s.tenant.Mutate("create_folder "+req.Path, func() error {
		if target, ok := s.uploadTarget(req.Path); ok {
			if err := s.requireDirRight(user, target, drive.DirectoryUpload); err != nil {
				return err
			}
		} else if !s.tenant.IsOwner(user) {
			return drive.Unauthorized("missing " + string(drive.DirectoryUpload) + " permission")
		}
		var err error
		folder, err = s.tenant.CreateFolder(user, drive.CreateFolderInput{
			ID:          req.ID,
			Path:        req.Path,
			DiskID:      req.DiskID,
			ExpiresAtMS: req.ExpiresAtMS,
			Sovereign:   req.Sovereign,
			ExternalID:  req.ExternalID,
			Resolution:  req.Resolution,
		})
		if err != nil {
			return err
		}
		s.tenant.FireWebhooks(r.Context(), drive.EventFolderCreated, string(folder.ID), nil, folder, "")
		folder = s.tenant.RedactFolder(user, folder)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return folder, nil
}

func (s *Server) handleGetFile(r *http.Request, user drive.UserID) (any, error) {
	id := drive.FileID(r.PathValue("id"))

	var file drive.FileRecord
	err := s.tenant.Run(func() error {
		var err error
		if file, err = s.tenant.GetFile(id); err != nil {
			return err
		}
		if err = s.requireDirRight(user, drive.FileResource(id), drive.DirectoryView); err != nil {
			return err
		}
		file = s.tenant.RedactFile(user, file)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return file, nil
}

func (s *Server) handleGetFolder(r *http.Request, user drive.UserID) (any, error) {
	id := drive.FolderID(r.PathValue("id"))

	var folder drive.FolderRecord
	err := s.tenant.Run(func() error {
		var err error
		if folder, err = s.tenant.GetFolder(id); err != nil {
			return err
		}
		if err = s.requireDirRight(user, drive.FolderResource(id), drive.DirectoryView); err != nil {
			return err
		}
		folder = s.tenant.RedactFolder(user, folder)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return folder, nil
}

// directoryListing is one page of a folder in the standard list envelope.
type directoryListing struct {
	Folders   []drive.FolderRecord `json:"folders"`
	Files     []drive.FileRecord   `json:"files"`
	PageSize  int                  `json:"page_size"`
	Total     int                  `json:"total"`
	Direction string               `json:"direction,omitempty"`
	Cursor    string               `json:"cursor,omitempty"`
}

func (s *Server) handleListDirectory(r *http.Request, user drive.UserID) (any, error) {
	id := drive.FolderID(r.PathValue("id"))
	q := r.URL.Query()

	pageSize := 0
	if raw := q.Get("page_size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, drive.BadRequest("page_size", "page_size must be an integer")
		}
		pageSize = n
	}

	var page drive.ListDirectoryPage
	err := s.tenant.Run(func() error {
		if err := s.requireDirRight(user, drive.FolderResource(id), drive.DirectoryView); err != nil {
			return err
		}
		var err error
		page, err = s.tenant.ListDirectory(drive.ListDirectoryRequest{
			FolderID:  id,
			Cursor:    q.Get("cursor"),
			PageSize:  pageSize,
			Direction: drive.ListDirection(q.Get("direction")),
		})
		if err != nil {
			return err
		}
		for i := range page.Folders {
			page.Folders[i] = s.tenant.RedactFolder(user, page.Folders[i])
		}
		for i := range page.Files {
			page.Files[i] = s.tenant.RedactFile(user, page.Files[i])
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return directoryListing{
		Folders:   page.Folders,
		Files:     page.Files,
		PageSize:  len(page.Folders) + len(page.Files),
		Total:     page.Total,
		Direction: q.Get("direction"),
		Cursor:    page.Cursor,
	}, nil
}

func (s *Server) handleResolvePath(r *http.Request, user drive.UserID) (any, error) {
	path := r.URL.Query().Get("path")
	if path == "" {
		return nil, drive.BadRequest("path", "path is required")
	}

	var resource drive.DirectoryResource
	err := s.tenant.Run(func() error {
		fileID, folderID, err := s.tenant.ResolvePath(path)
		if err != nil {
			return err
		}
		if fileID != "" {
			resource = drive.FileResource(fileID)
		} else {
			resource = drive.FolderResource(folderID)
		}
		return s.requireDirRight(user, resource, drive.DirectoryView)
	})
	if err != nil {
		return nil, err
	}
	return resource, nil
}

func (s *Server) handleBreadcrumbs(r *http.Request, user drive.UserID) (any, error) {
	q := r.URL.Query()
	resource := drive.DirectoryResource{
		Kind: drive.DirectoryResourceKind(q.Get("kind")),
		ID:   q.Get("id"),
	}

	var crumbs []drive.Breadcrumb
	err := s.tenant.Run(func() error {
		crumbs = s.tenant.DeriveBreadcrumbs(resource, user)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return crumbs, nil
}

type renameRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleRenameFile(r *http.Request, user drive.UserID) (any, error) {
	id := drive.FileID(r.PathValue("id"))
	var req renameRequest
	if err := decode(r, &req); err != nil {
		return nil, err
	}

	var file drive.FileRecord
	_, err := s.tenant.Mutate("rename_file "+string(id), func() error {
		if err := s.requireDirRight(user, drive.FileResource(id), drive.DirectoryEdit); err != nil {
			return err
		}
		var err error
		if file, err = s.tenant.RenameFile(id, req.Name); err != nil {
			return err
		}
		s.tenant.FireWebhooks(r.Context(), drive.EventFileUpdated, string(id), nil, file, "renamed")
		file = s.tenant.RedactFile(user, file)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return file, nil
}

func (s *Server) handleRenameFolder(r *http.Request, user drive.UserID) (any, error) {
	id := drive.FolderID(r.PathValue("id"))
	var req renameRequest
	if err := decode(r, &req); err != nil {
		return nil, err
	}

	var folder drive.FolderRecord
	_, err := s.tenant.Mutate("rename_folder "+string(id), func() error {
		if err := s.requireDirRight(user, drive.FolderResource(id), drive.DirectoryEdit); err != nil {
			return err
		}
		var err error
		if folder, err = s.tenant.RenameFolder(id, req.Name); err != nil {
			return err
		}
		s.tenant.FireWebhooks(r.Context(), drive.EventFolderUpdated, string(id), nil, folder, "renamed")
		folder = s.tenant.RedactFolder(user, folder)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return folder, nil
}

type transferRequest struct {
	DestFolderID drive.FolderID           `json:"dest_folder_id"`
	Resolution   drive.ConflictResolution `json:"resolution,omitempty"`
}

func (s *Server) handleCopyFile(r *http.Request, user drive.UserID) (any, error) {
	id := drive.FileID(r.PathValue("id"))
	var req transferRequest
	if err := decode(r, &req); err != nil {
		return nil, err
	}

	var file drive.FileRecord
	_, err := s.tenant.Mutate("copy_file "+string(id), func() error {
		if err := s.requireDirRight(user, drive.FileResource(id), drive.DirectoryView); err != nil {
			return err
		}
		if err := s.requireDirRight(user, drive.FolderResource(req.DestFolderID), drive.DirectoryUpload); err != nil {
			return err
		}
		var err error
		if file, err = s.tenant.CopyFile(id, req.DestFolderID, req.Resolution); err != nil {
			return err
		}
		s.tenant.FireWebhooks(r.Context(), drive.EventFileCreated, string(file.ID), nil, file, "copied")
		file = s.tenant.RedactFile(user, file)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return file, nil
}

func (s *Server) handleCopyFolder(r *http.Request, user drive.UserID) (any, error) {
	id := drive.FolderID(r.PathValue("id"))
	var req transferRequest
	if err := decode(r, &req); err != nil {
		return nil, err
	}

	var folder drive.FolderRecord
	_, err := s.tenant.Mutate("copy_folder "+string(id), func() error {
		if err := s.requireDirRight(user, drive.FolderResource(id), drive.DirectoryView); err != nil {
			return err
		}
		if err := s.requireDirRight(user, drive.FolderResource(req.DestFolderID), drive.DirectoryUpload); err != nil {
			return err
		}
		var err error
		if folder, err = s.tenant.CopyFolder(id, req.DestFolderID, req.Resolution); err != nil {
			return err
		}
		s.tenant.FireWebhooks(r.Context(), drive.EventFolderCreated, string(folder.ID), nil, folder, "copied")
		folder = s.tenant.RedactFolder(user, folder)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return folder, nil
}

func (s *Server) handleMoveFile(r *http.Request, user drive.UserID) (any, error) {
	id := drive.FileID(r.PathValue("id"))
	var req transferRequest
	if err := decode(r, &req); err != nil {
		return nil, err
	}

	var file drive.FileRecord
	_, err := s.tenant.Mutate("move_file "+string(id), func() error {
		if err := s.requireDirRight(user, drive.FileResource(id), drive.DirectoryEdit); err != nil {
			return err
		}
		if err := s.requireDirRight(user, drive.FolderResource(req.DestFolderID), drive.DirectoryUpload); err != nil {
			return err
		}
		var err error
		if file, err = s.tenant.MoveFile(id, req.DestFolderID, req.Resolution); err != nil {
			return err
		}
		s.tenant.FireWebhooks(r.Context(), drive.EventFileUpdated, string(id), nil, file, "moved")
		file = s.tenant.RedactFile(user, file)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return file, nil
}

func (s *Server) handleMoveFolder(r *http.Request, user drive.UserID) (any, error) {
	id := drive.FolderID(r.PathValue("id"))
	var req transferRequest
	if err := decode(r, &req); err != nil {
		return nil, err
	}

	var folder drive.FolderRecord
	_, err := s.tenant.Mutate("move_folder "+string(id), func() error {
		if err := s.requireDirRight(user, drive.FolderResource(id), drive.DirectoryEdit); err != nil {
			return err
		}
		if err := s.requireDirRight(user, drive.FolderResource(req.DestFolderID), drive.DirectoryUpload); err != nil {
			return err
		}
		var err error
		if folder, err = s.tenant.MoveFolder(id, req.DestFolderID, req.Resolution); err != nil {
			return err
		}
		s.tenant.FireWebhooks(r.Context(), drive.EventFolderUpdated, string(id), nil, folder, "moved")
		folder = s.tenant.RedactFolder(user, folder)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return folder, nil
}

func (s *Server) handleDeleteFile(r *http.Request, user drive.UserID) (any, error) {
	id := drive.FileID(r.PathValue("id"))
	permanent := r.URL.Query().Get("permanent") == "true"

	_, err := s.tenant.Mutate("delete_file "+string(id), func() error {
		if err := s.requireDirRight(user, drive.FileResource(id), drive.DirectoryDelete); err != nil {
			return err
		}
		if err := s.tenant.DeleteFile(id, permanent); err != nil {
			return err
		}
		s.tenant.FireWebhooks(r.Context(), drive.EventFileDeleted, string(id), nil, nil, "")
		return nil
	})
	if err != nil {
		return nil, err
	}
	return map[string]bool{"deleted": true}, nil
}

func (s *Server) handleDeleteFolder(r *http.Request, user drive.UserID) (any, error) {
	id := drive.FolderID(r.PathValue("id"))
	permanent := r.URL.Query().Get("permanent") == "true"

	_, err := s.tenant.Mutate("delete_folder "+string(id), func() error {
		if err := s.requireDirRight(user, drive.FolderResource(id), drive.DirectoryDelete); err != nil {
			return err
		}
		if err := s.tenant.DeleteFolder(id, permanent); err != nil {
			return err
		}
		s.tenant.FireWebhooks(r.Context(), drive.EventFolderDeleted, string(id), nil, nil, "")
		return nil
	})
	if err != nil {
		return nil, err
	}
	return map[string]bool{"deleted": true}, nil
}

type restoreRequest struct {
	ResourceID string                   `json:"resource_id"`
	ToPath     string                   `json:"to_path,omitempty"`
	Resolution drive.ConflictResolution `json:"resolution,omitempty"`
}

func (s *Server) handleRestore(r *http.Request, user drive.UserID) (any, error) {
	var req restoreRequest
	if err := decode(r, &req); err != nil {
		return nil, err
	}

	var result drive.RestoreResult
	_, err := s.tenant.Mutate("restore "+req.ResourceID, func() error {
		resource := drive.DirectoryResource{Kind: drive.ResourceFile, ID: req.ResourceID}
		if drive.ValidateIDAs(req.ResourceID, string(drive.PrefixFolder)) == nil {
			resource = drive.DirectoryResource{Kind: drive.ResourceFolder, ID: req.ResourceID}
		}
		if err := s.requireDirRight(user, resource, drive.DirectoryEdit); err != nil {
			return err
		}
		var err error
		result, err = s.tenant.RestoreFromTrash(req.ResourceID, req.ToPath, req.Resolution)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
