package drive

import (
	"fmt"
	"strings"
)

// TrashFolderName is the reserved per-disk trash folder. It is created on
// demand and can never be renamed or deleted.
const TrashFolderName = ".trash"

// sanitizePath normalizes a full path: the part before "::" is the disk
// tag, the rest has colons neutralized, duplicate slashes collapsed, and
// leading/trailing slashes stripped.
func sanitizePath(fullPath string) string {
	tag, rest, _ := strings.Cut(fullPath, "::")
	rest = strings.ReplaceAll(rest, ":", ";")
	for strings.Contains(rest, "//") {
		rest = strings.ReplaceAll(rest, "//", "/")
	}
	rest = strings.Trim(rest, "/")
	return tag + "::" + rest
}

// splitPath splits a sanitized full path into its folder part and leaf
// name. "local::docs/a.txt" → ("local::docs", "a.txt");
// "local::a.txt" → ("local::", "a.txt").
func splitPath(fullPath string) (folderPath, name string) {
	if i := strings.LastIndexByte(fullPath, '/'); i >= 0 {
		return fullPath[:i], fullPath[i+1:]
	}
	if tag, rest, ok := strings.Cut(fullPath, "::"); ok {
		return tag + "::", rest
	}
	return "", fullPath
}

// pathTag returns the disk tag of a full path ("local" for "local::a/b").
func pathTag(fullPath string) string {
	tag, _, _ := strings.Cut(fullPath, "::")
	return tag
}

// validatePathComponents rejects paths with empty components after
// sanitization ("local::a//b" sanitizes fine, but "local::" as a file path
// does not name a file).
func validatePathComponents(fullPath string) error {
	_, rest, ok := strings.Cut(fullPath, "::")
	if !ok {
		return BadRequest("path", "path must contain a disk tag followed by ::")
	}
	if rest == "" {
		return BadRequest("path", "path names no file or folder")
	}
	for _, part := range strings.Split(rest, "/") {
		if part == "" {
			return BadRequest("path", "path contains an empty component")
		}
	}
	return nil
}

// ensureRootFolder returns the root folder of the disk tag, creating it on
// first use. The root path is "<tag>::".
func (t *Tenant) ensureRootFolder(tag string, disk DiskID, creator UserID) FolderID {
	rootPath := tag + "::"
	if id, ok := t.folderPaths.Get(rootPath); ok {
		return id
	}

	id, err := t.IssueID(string(PrefixFolder), "")
	if err != nil {
		// Fresh mints only fail on generator exhaustion.
		panic(err)
	}
	rootID := FolderID(id)
	t.folders.Insert(rootID, FolderRecord{
		ID:            rootID,
		Name:          "",
		SubfolderIDs:  []FolderID{},
		FileIDs:       []FileID{},
		FullPath:      rootPath,
		CreatedBy:     creator,
		CreatedAtMS:   t.nowMS(),
		LastUpdatedMS: t.nowMS(),
		DiskID:        disk,
		ExpiresAtMS:   -1,
	})
	t.folderPaths.Insert(rootPath, rootID)
	return rootID
}

// ensureTrashFolder returns the disk's ".trash/" folder, creating it when
// missing.
func (t *Tenant) ensureTrashFolder(tag string, disk DiskID, creator UserID) FolderID {
	return t.ensureFolderStructure(tag+"::"+TrashFolderName, disk, creator)
}

// ensureFolderStructure walks folderPath segment by segment under the disk
// root, creating every missing folder, and returns the deepest folder's ID.
func (t *Tenant) ensureFolderStructure(folderPath string, disk DiskID, creator UserID) FolderID {
	tag, rest, _ := strings.Cut(folderPath, "::")
	parentID := t.ensureRootFolder(tag, disk, creator)
	currentPath := tag + "::"

	for _, part := range strings.Split(rest, "/") {
		if part == "" {
			continue
		}
		currentPath += part + "/"
		if existing, ok := t.folderPaths.Get(currentPath); ok {
			parentID = existing
			continue
		}

		id, err := t.IssueID(string(PrefixFolder), "")
		if err != nil {
			panic(err)
		}
		folderID := FolderID(id)
		t.folders.Insert(folderID, FolderRecord{
			ID:            folderID,
			Name:          part,
			ParentFolder:  parentID,
			SubfolderIDs:  []FolderID{},
			FileIDs:       []FileID{},
			FullPath:      currentPath,
			CreatedBy:     creator,
			CreatedAtMS:   t.nowMS(),
			LastUpdatedMS: t.nowMS(),
			DiskID:        disk,
			ExpiresAtMS:   -1,
		})
		t.folderPaths.Insert(currentPath, folderID)
		t.folders.Update(parentID, func(p *FolderRecord) {
			if !containsFolderID(p.SubfolderIDs, folderID) {
				p.SubfolderIDs = append(p.SubfolderIDs, folderID)
			}
		})
		parentID = folderID
	}
	return parentID
}

// updateSubfolderPaths rewrites every descendant's stored path after a
// folder move or rename, replacing the old prefix with the new one in both
// the records and the path maps.
func (t *Tenant) updateSubfolderPaths(folderID FolderID, oldPrefix, newPrefix string) {
	folder, ok := t.folders.Get(folderID)
	if !ok {
		return
	}

	for _, subID := range folder.SubfolderIDs {
		sub, ok := t.folders.Get(subID)
		if !ok {
			continue
		}
		oldPath := sub.FullPath
		newPath := strings.Replace(oldPath, oldPrefix, newPrefix, 1)
		t.folders.Update(subID, func(s *FolderRecord) {
			s.FullPath = newPath
		})
		if !sub.Deleted {
			t.folderPaths.Remove(oldPath)
			t.folderPaths.Insert(newPath, subID)
		}
		t.updateSubfolderPaths(subID, oldPath, newPath)
	}

	for _, fileID := range folder.FileIDs {
		file, ok := t.files.Get(fileID)
		if !ok {
			continue
		}
		oldPath := file.FullPath
		newPath := strings.Replace(oldPath, oldPrefix, newPrefix, 1)
		t.files.Update(fileID, func(f *FileRecord) {
			f.FullPath = newPath
		})
		if !file.Deleted {
			t.filePaths.Remove(oldPath)
			t.filePaths.Insert(newPath, fileID)
		}
	}
}

// updateFolderFileIDs adds or removes a file from its parent's listing.
func (t *Tenant) updateFolderFileIDs(folderID FolderID, fileID FileID, add bool) {
	t.folders.Update(folderID, func(f *FolderRecord) {
		if add {
			if !containsFileID(f.FileIDs, fileID) {
				f.FileIDs = append(f.FileIDs, fileID)
			}
		} else {
			f.FileIDs = removeFileID(f.FileIDs, fileID)
		}
	})
}

// extensionOf returns the suffix after the last dot, or "" when the name
// has none.
func extensionOf(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 && i < len(name)-1 {
		return name[i+1:]
	}
	return ""
}

// nextAvailableName suffixes name with " (1)", " (2)", … before the
// extension until the candidate path is unbound in both path maps.
func (t *Tenant) nextAvailableName(folderPath, name string) string {
	base, ext := name, ""
	if i := strings.LastIndexByte(name, '.'); i > 0 {
		base, ext = name[:i], name[i:]
	}
	for n := 1; ; n++ {
		candidate := fmt.Sprintf("%s (%d)%s", base, n, ext)
		filePath := joinPath(folderPath, candidate)
		if _, ok := t.filePaths.Get(filePath); ok {
			continue
		}
		if _, ok := t.folderPaths.Get(filePath + "/"); ok {
			continue
		}
		return candidate
	}
}

// joinPath appends a leaf name to a folder path. Folder paths either end
// with "::" (root) or are extended with a slash.
func joinPath(folderPath, name string) string {
	if strings.HasSuffix(folderPath, "::") || strings.HasSuffix(folderPath, "/") {
		return folderPath + name
	}
	return folderPath + "/" + name
}

func containsFolderID(ids []FolderID, id FolderID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func containsFileID(ids []FileID, id FileID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func removeFolderID(ids []FolderID, id FolderID) []FolderID {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func removeFileID(ids []FileID, id FileID) []FileID {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
