package drive

import (
	"strconv"
)

const (
	defaultPageSize = 50
	maxPageSize     = 1000
)

// ListDirectoryRequest asks for one page of a folder's contents.
type ListDirectoryRequest struct {
	FolderID  FolderID      `json:"folder_id"`
	Cursor    string        `json:"cursor,omitempty"`
	PageSize  int           `json:"page_size,omitempty"`
	Direction ListDirection `json:"direction,omitempty"`
}

// ListDirectoryPage is one page of folder contents: all folders come
// before any files, in insertion order.
type ListDirectoryPage struct {
	Folders []FolderRecord `json:"folders"`
	Files   []FileRecord   `json:"files"`
	Total   int            `json:"total"`
	Cursor  string         `json:"cursor,omitempty"`
}

// ListDirectory pages through a folder's live contents. The combined
// sequence is folders then files; the cursor is an opaque position into
// that sequence. Direction flips the traversal order, and the page size is
// clamped to [1, 1000] with a default of 50.
func (t *Tenant) ListDirectory(req ListDirectoryRequest) (ListDirectoryPage, error) {
	folder, ok := t.folders.Get(req.FolderID)
	if !ok {
		return ListDirectoryPage{}, NotFound("folder")
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	total := len(folder.SubfolderIDs) + len(folder.FileIDs)

	start := 0
	if req.Cursor != "" {
		n, err := strconv.Atoi(req.Cursor)
		if err != nil || n < 0 {
			return ListDirectoryPage{}, BadRequest("cursor", "malformed cursor")
		}
		start = n
	}

	// Positions run over the combined folders-then-files sequence. For a
	// descending listing the positions index the reversed sequence, so
	// position i maps to combined index total-1-i.
	page := ListDirectoryPage{
		Folders: []FolderRecord{},
		Files:   []FileRecord{},
		Total:   total,
	}
	taken := 0
	for pos := start; pos < total && taken < pageSize; pos++ {
		idx := pos
		if req.Direction == DirectionDesc {
			idx = total - 1 - pos
		}
		if idx < len(folder.SubfolderIDs) {
			if sub, ok := t.folders.Get(folder.SubfolderIDs[idx]); ok {
				page.Folders = append(page.Folders, sub)
			}
		} else if file, ok := t.files.Get(folder.FileIDs[idx-len(folder.SubfolderIDs)]); ok {
			page.Files = append(page.Files, file)
		}
		taken++
	}

	if start+taken < total {
		page.Cursor = strconv.Itoa(start + taken)
	}
	return page, nil
}
