package drive

import "strings"

// CreateFileInput carries everything needed to create (or version-bump) a
// file at a full path.
type CreateFileInput struct {
	// ID is an optional client-suggested full FileID.
	ID string

	Path        string
	DiskID      DiskID
	FileSize    int64
	RawURL      string
	ExpiresAtMS int64
	Sovereign   bool
	ExternalID  string

	// Resolution decides the behaviour when the path is occupied.
	// Empty defaults to ConflictReplace, which bumps the version chain.
	Resolution ConflictResolution
}

// CreateFolderInput mirrors CreateFileInput for folders.
type CreateFolderInput struct {
	ID          string
	Path        string
	DiskID      DiskID
	ExpiresAtMS int64
	Sovereign   bool
	ExternalID  string

	// Resolution decides the behaviour when the path is occupied.
	// Empty fails with AlreadyExists.
	Resolution ConflictResolution
}

// GetFile returns the file record for id.
func (t *Tenant) GetFile(id FileID) (FileRecord, error) {
	file, ok := t.files.Get(id)
	if !ok {
		return FileRecord{}, NotFound("file")
	}
	return file, nil
}

// GetFolder returns the folder record for id.
func (t *Tenant) GetFolder(id FolderID) (FolderRecord, error) {
	folder, ok := t.folders.Get(id)
	if !ok {
		return FolderRecord{}, NotFound("folder")
	}
	return folder, nil
}

// ResolvePath translates a full path to the live record bound to it. The
// path is sanitized first; folder lookups accept paths with or without the
// trailing slash.
func (t *Tenant) ResolvePath(path string) (fileID FileID, folderID FolderID, err error) {
	p := sanitizePath(path)
	if id, ok := t.filePaths.Get(p); ok {
		return id, "", nil
	}
	if id, ok := t.folderPaths.Get(folderPathKey(p)); ok {
		return "", id, nil
	}
	return "", "", NotFound("path")
}

// folderPathKey normalizes a folder path for the path index: folder paths
// end with "/" except the disk root, which ends with "::".
func folderPathKey(path string) string {
	if strings.HasSuffix(path, "::") || strings.HasSuffix(path, "/") {
		return path
	}
	return path + "/"
}

func (t *Tenant) requireDisk(id DiskID) (Disk, error) {
	disk, ok := t.disks.Get(id)
	if !ok {
		return Disk{}, NotFound("disk")
	}
	return disk, nil
}

// CreateFile creates a file at in.Path on the bound disk. When a live file
// already occupies the path, in.Resolution decides: Replace and KeepNewer
// bump the version chain, KeepBoth suffixes the name, KeepOriginal fails
// with AlreadyExists. A soft-deleted file does not occupy its old path, so
// creating there starts a fresh chain.
func (t *Tenant) CreateFile(creator UserID, in CreateFileInput) (FileRecord, error) {
	disk, err := t.requireDisk(in.DiskID)
	if err != nil {
		return FileRecord{}, err
	}

	path := sanitizePath(in.Path)
	if err := validatePathComponents(path); err != nil {
		return FileRecord{}, err
	}
	if pathTag(path) != disk.Type.PathTag() {
		return FileRecord{}, BadRequest("path", "path tag does not match disk type")
	}
	if strings.HasSuffix(in.Path, "/") {
		return FileRecord{}, BadRequest("path", "file path must not end with /")
	}

	folderPath, name := splitPath(path)
	resolution := in.Resolution
	if resolution == "" {
		resolution = ConflictReplace
	}

	existingID, occupied := t.filePaths.Get(path)
	var existing FileRecord
	if occupied {
		existing, _ = t.files.Get(existingID)
	}

	fileVersion := 1
	var priorVersion FileID
	if occupied {
		switch resolution {
		case ConflictKeepOriginal:
			return FileRecord{}, &Error{Code: ErrAlreadyExists, Message: "file already exists: " + path, Field: "path"}
		case ConflictKeepBoth:
			name = t.nextAvailableName(folderPathKey(folderPath), name)
			path = joinPath(folderPathKey(folderPath), name)
			occupied = false
		case ConflictKeepNewer:
			if existing.LastUpdatedMS > t.nowMS() {
				return existing, nil
			}
			fileVersion = existing.FileVersion + 1
			priorVersion = existingID
		default: // ConflictReplace
			fileVersion = existing.FileVersion + 1
			priorVersion = existingID
		}
	}

	id, err := t.IssueID(string(PrefixFile), in.ID)
	if err != nil {
		return FileRecord{}, err
	}
	fileID := FileID(id)

	folderID := t.ensureFolderStructure(folderPath, in.DiskID, creator)

	record := FileRecord{
		ID:            fileID,
		Name:          name,
		ParentFolder:  folderID,
		FileVersion:   fileVersion,
		PriorVersion:  priorVersion,
		Extension:     extensionOf(name),
		FullPath:      path,
		CreatedBy:     creator,
		CreatedAtMS:   t.nowMS(),
		LastUpdatedMS: t.nowMS(),
		DiskID:        in.DiskID,
		FileSize:      in.FileSize,
		RawURL:        in.RawURL,
		Deleted:       false,
		ExpiresAtMS:   in.ExpiresAtMS,
		Sovereign:     in.Sovereign,
		ExternalID:    in.ExternalID,
	}

	if priorVersion != "" {
		t.files.Update(priorVersion, func(f *FileRecord) {
			f.NextVersion = fileID
		})
		t.updateFolderFileIDs(folderID, priorVersion, false)
	}

	t.files.Insert(fileID, record)
	t.filePaths.Insert(path, fileID)
	t.updateFolderFileIDs(folderID, fileID, true)

	if in.ExternalID != "" {
		t.RebindExternalID("", in.ExternalID, string(fileID))
	}

	return record, nil
}

// CreateFolder creates a folder at in.Path, building any missing parents.
// A live folder at the exact path fails with AlreadyExists unless a
// resolution says otherwise.
func (t *Tenant) CreateFolder(creator UserID, in CreateFolderInput) (FolderRecord, error) {
	disk, err := t.requireDisk(in.DiskID)
	if err != nil {
		return FolderRecord{}, err
	}

	path := sanitizePath(in.Path)
	if err := validatePathComponents(path); err != nil {
		return FolderRecord{}, err
	}
	if pathTag(path) != disk.Type.PathTag() {
		return FolderRecord{}, BadRequest("path", "path tag does not match disk type")
	}
	path = folderPathKey(path)

	if existingID, ok := t.folderPaths.Get(path); ok {
		switch in.Resolution {
		case ConflictKeepBoth:
			folderPath, name := splitFolderPath(path)
			name = t.nextAvailableName(folderPath, name)
			path = folderPath + name + "/"
		case ConflictKeepOriginal:
			existing, _ := t.folders.Get(existingID)
			return existing, nil
		case ConflictKeepNewer:
			existing, _ := t.folders.Get(existingID)
			if existing.LastUpdatedMS > t.nowMS() {
				return existing, nil
			}
			if err := t.DeleteFolder(existingID, true); err != nil {
				return FolderRecord{}, err
			}
		case ConflictReplace:
			if err := t.DeleteFolder(existingID, true); err != nil {
				return FolderRecord{}, err
			}
		default:
			return FolderRecord{}, &Error{Code: ErrAlreadyExists, Message: "folder already exists: " + path, Field: "path"}
		}
	}

	if in.ID != "" {
		// Client-suggested IDs for folders apply to the leaf only; claim
		// it up front so a collision fails before any folder is created.
		if _, err := t.IssueID(string(PrefixFolder), in.ID); err != nil {
			return FolderRecord{}, err
		}
	}

	folderID := t.ensureFolderStructure(path, in.DiskID, creator)
	if in.ID != "" {
		folderID = t.rekeyFolder(folderID, FolderID(in.ID))
	}

	t.folders.Update(folderID, func(f *FolderRecord) {
		f.ExpiresAtMS = in.ExpiresAtMS
		f.Sovereign = in.Sovereign
		f.ExternalID = in.ExternalID
	})
	if in.ExternalID != "" {
		t.RebindExternalID("", in.ExternalID, string(folderID))
	}

	folder, _ := t.folders.Get(folderID)
	return folder, nil
}

// splitFolderPath splits a trailing-slash folder path into its parent path
// (root-form or trailing slash) and leaf name.
func splitFolderPath(path string) (parent, name string) {
	trimmed := strings.TrimSuffix(path, "/")
	if i := strings.LastIndexByte(trimmed, '/'); i >= 0 {
		return trimmed[:i+1], trimmed[i+1:]
	}
	tag, rest, _ := strings.Cut(trimmed, "::")
	return tag + "::", rest
}

// rekeyFolder re-registers a freshly created leaf folder under a
// client-suggested ID. Only safe for a folder with no children yet.
func (t *Tenant) rekeyFolder(oldID, newID FolderID) FolderID {
	folder, ok := t.folders.Get(oldID)
	if !ok {
		return oldID
	}
	folder.ID = newID
	t.folders.Remove(oldID)
	t.folders.Insert(newID, folder)
	t.folderPaths.Insert(folder.FullPath, newID)
	if folder.ParentFolder != "" {
		t.folders.Update(folder.ParentFolder, func(p *FolderRecord) {
			p.SubfolderIDs = removeFolderID(p.SubfolderIDs, oldID)
			p.SubfolderIDs = append(p.SubfolderIDs, newID)
		})
	}
	return newID
}

// RenameFile gives the file a new leaf name in its current folder,
// recomputing the extension and re-keying the path index.
func (t *Tenant) RenameFile(id FileID, newName string) (FileRecord, error) {
	file, ok := t.files.Get(id)
	if !ok {
		return FileRecord{}, NotFound("file")
	}
	if newName == "" || strings.ContainsAny(newName, "/:") {
		return FileRecord{}, BadRequest("name", "invalid file name")
	}

	folderPath, _ := splitPath(file.FullPath)
	newPath := joinPath(folderPathKey(folderPath), newName)
	if _, exists := t.filePaths.Get(newPath); exists {
		return FileRecord{}, &Error{Code: ErrAlreadyExists, Message: "a file with this name already exists", Field: "name"}
	}

	oldPath := file.FullPath
	t.files.Update(id, func(f *FileRecord) {
		f.Name = newName
		f.FullPath = newPath
		f.Extension = extensionOf(newName)
		f.LastUpdatedMS = t.nowMS()
	})
	if !file.Deleted {
		t.filePaths.Remove(oldPath)
		t.filePaths.Insert(newPath, id)
	}

	updated, _ := t.files.Get(id)
	return updated, nil
}

// RenameFolder gives the folder a new leaf name, re-keys the path index,
// and rewrites every descendant's stored path by prefix substitution.
func (t *Tenant) RenameFolder(id FolderID, newName string) (FolderRecord, error) {
	folder, ok := t.folders.Get(id)
	if !ok {
		return FolderRecord{}, NotFound("folder")
	}
	if newName == "" || strings.ContainsAny(newName, "/:") {
		return FolderRecord{}, BadRequest("name", "invalid folder name")
	}
	if folder.ParentFolder == "" || folder.Name == TrashFolderName {
		return FolderRecord{}, Conflict("cannot rename root or " + TrashFolderName)
	}

	parentPath, _ := splitFolderPath(folder.FullPath)
	newPath := parentPath + newName + "/"
	if _, exists := t.folderPaths.Get(newPath); exists {
		return FolderRecord{}, &Error{Code: ErrAlreadyExists, Message: "a folder with this name already exists", Field: "name"}
	}

	oldPath := folder.FullPath
	t.folders.Update(id, func(f *FolderRecord) {
		f.Name = newName
		f.FullPath = newPath
		f.LastUpdatedMS = t.nowMS()
	})
	if !folder.Deleted {
		t.folderPaths.Remove(oldPath)
		t.folderPaths.Insert(newPath, id)
	}
	t.updateSubfolderPaths(id, oldPath, newPath)

	// Edge cases after moves can leave the parent list stale.
	t.folders.Update(folder.ParentFolder, func(p *FolderRecord) {
		if !containsFolderID(p.SubfolderIDs, id) {
			p.SubfolderIDs = append(p.SubfolderIDs, id)
		}
	})

	updated, _ := t.folders.Get(id)
	return updated, nil
}

// DeleteFile removes a file. Soft delete moves it into the disk's trash
// folder, marks it deleted, and clears its path binding; permanent delete
// removes the record and re-links the version chain around it.
func (t *Tenant) DeleteFile(id FileID, permanent bool) error {
	file, ok := t.files.Get(id)
	if !ok {
		return NotFound("file")
	}
	if file.RestorePath != "" && !permanent {
		return Conflict("item is already in trash")
	}

	if permanent {
		if file.PriorVersion != "" {
			t.files.Update(file.PriorVersion, func(f *FileRecord) {
				f.NextVersion = file.NextVersion
			})
		}
		if file.NextVersion != "" {
			t.files.Update(file.NextVersion, func(f *FileRecord) {
				f.PriorVersion = file.PriorVersion
			})
		}
		t.files.Remove(id)
		if bound, ok := t.filePaths.Get(file.FullPath); ok && bound == id {
			t.filePaths.Remove(file.FullPath)
		}
		t.updateFolderFileIDs(file.ParentFolder, id, false)
		if file.ExternalID != "" {
			t.RebindExternalID(file.ExternalID, "", string(id))
		}
		return nil
	}

	restorePath, _ := splitPath(file.FullPath)
	tag := pathTag(file.FullPath)
	trashID := t.ensureTrashFolder(tag, file.DiskID, file.CreatedBy)
	trash, _ := t.folders.Get(trashID)

	if _, err := t.moveFileInto(id, trash, ConflictKeepBoth); err != nil {
		return err
	}
	t.files.Update(id, func(f *FileRecord) {
		f.Deleted = true
		f.RestorePath = folderPathKey(restorePath)
		f.LastUpdatedMS = t.nowMS()
	})
	moved, _ := t.files.Get(id)
	t.filePaths.Remove(moved.FullPath)
	return nil
}

// DeleteFolder removes a folder. Soft delete moves the whole subtree into
// the disk's trash folder and marks it deleted; permanent delete removes
// every descendant record. Root and trash folders cannot be deleted.
func (t *Tenant) DeleteFolder(id FolderID, permanent bool) error {
	folder, ok := t.folders.Get(id)
	if !ok {
		return NotFound("folder")
	}
	if folder.ParentFolder == "" || folder.Name == TrashFolderName {
		return Conflict("cannot delete root or " + TrashFolderName)
	}
	if folder.RestorePath != "" && !permanent {
		return Conflict("item is already in trash")
	}

	if permanent {
		for _, fileID := range append([]FileID(nil), folder.FileIDs...) {
			if err := t.DeleteFile(fileID, true); err != nil {
				return err
			}
		}
		for _, subID := range append([]FolderID(nil), folder.SubfolderIDs...) {
			if err := t.DeleteFolder(subID, true); err != nil {
				return err
			}
		}
		t.folders.Remove(id)
		if bound, ok := t.folderPaths.Get(folder.FullPath); ok && bound == id {
			t.folderPaths.Remove(folder.FullPath)
		}
		t.folders.Update(folder.ParentFolder, func(p *FolderRecord) {
			p.SubfolderIDs = removeFolderID(p.SubfolderIDs, id)
		})
		if folder.ExternalID != "" {
			t.RebindExternalID(folder.ExternalID, "", string(id))
		}
		return nil
	}

	restorePath, _ := splitFolderPath(folder.FullPath)
	tag := pathTag(folder.FullPath)
	trashID := t.ensureTrashFolder(tag, folder.DiskID, folder.CreatedBy)
	trash, _ := t.folders.Get(trashID)

	if _, err := t.moveFolderInto(id, trash, ConflictKeepBoth); err != nil {
		return err
	}
	t.markSubtreeTrashed(id, folderPathKey(restorePath))
	return nil
}

// markSubtreeTrashed flags a moved-to-trash subtree as deleted and clears
// its path bindings so trashed paths never resolve. The subtree root keeps
// its pre-trash parent path for restore; descendants keep their own.
func (t *Tenant) markSubtreeTrashed(id FolderID, restorePath string) {
	folder, ok := t.folders.Get(id)
	if !ok {
		return
	}
	t.folders.Update(id, func(f *FolderRecord) {
		f.Deleted = true
		f.RestorePath = restorePath
		f.LastUpdatedMS = t.nowMS()
	})
	t.folderPaths.Remove(folder.FullPath)

	for _, fileID := range folder.FileIDs {
		file, ok := t.files.Get(fileID)
		if !ok {
			continue
		}
		parentPath, _ := splitPath(file.FullPath)
		t.files.Update(fileID, func(f *FileRecord) {
			f.Deleted = true
			f.RestorePath = folderPathKey(parentPath)
		})
		t.filePaths.Remove(file.FullPath)
	}
	for _, subID := range folder.SubfolderIDs {
		sub, ok := t.folders.Get(subID)
		if !ok {
			continue
		}
		parentPath, _ := splitFolderPath(sub.FullPath)
		t.markSubtreeTrashed(subID, folderPathKey(parentPath))
	}
}

// CopyFile duplicates a file into destFolder under a fresh ID. The copy
// starts a new version chain.
func (t *Tenant) CopyFile(id FileID, destFolder FolderID, resolution ConflictResolution) (FileRecord, error) {
	source, ok := t.files.Get(id)
	if !ok {
		return FileRecord{}, NotFound("file")
	}
	dest, ok := t.folders.Get(destFolder)
	if !ok {
		return FileRecord{}, NotFound("destination folder")
	}
	if source.DiskID != dest.DiskID {
		return FileRecord{}, Conflict("cannot copy between different disks")
	}

	return t.CreateFile(source.CreatedBy, CreateFileInput{
		Path:        joinPath(dest.FullPath, source.Name),
		DiskID:      source.DiskID,
		FileSize:    source.FileSize,
		RawURL:      source.RawURL,
		ExpiresAtMS: source.ExpiresAtMS,
		Sovereign:   source.Sovereign,
		Resolution:  resolution,
	})
}

// CopyFolder duplicates a folder subtree into destFolder under fresh IDs.
func (t *Tenant) CopyFolder(id FolderID, destFolder FolderID, resolution ConflictResolution) (FolderRecord, error) {
	source, ok := t.folders.Get(id)
	if !ok {
		return FolderRecord{}, NotFound("folder")
	}
	dest, ok := t.folders.Get(destFolder)
	if !ok {
		return FolderRecord{}, NotFound("destination folder")
	}
	if source.DiskID != dest.DiskID {
		return FolderRecord{}, Conflict("cannot copy between different disks")
	}

	copied, err := t.CreateFolder(source.CreatedBy, CreateFolderInput{
		Path:        joinPath(dest.FullPath, source.Name) + "/",
		DiskID:      source.DiskID,
		ExpiresAtMS: source.ExpiresAtMS,
		Sovereign:   source.Sovereign,
		Resolution:  orDefault(resolution, ConflictKeepBoth),
	})
	if err != nil {
		return FolderRecord{}, err
	}

	for _, fileID := range source.FileIDs {
		if _, err := t.CopyFile(fileID, copied.ID, resolution); err != nil {
			return FolderRecord{}, err
		}
	}
	for _, subID := range source.SubfolderIDs {
		if _, err := t.CopyFolder(subID, copied.ID, resolution); err != nil {
			return FolderRecord{}, err
		}
	}

	updated, _ := t.folders.Get(copied.ID)
	return updated, nil
}

func orDefault(r, fallback ConflictResolution) ConflictResolution {
	if r == "" {
		return fallback
	}
	return r
}

// MoveFile relocates a file into destFolder on the same disk.
func (t *Tenant) MoveFile(id FileID, destFolder FolderID, resolution ConflictResolution) (FileRecord, error) {
	dest, ok := t.folders.Get(destFolder)
	if !ok {
		return FileRecord{}, NotFound("destination folder")
	}
	return t.moveFileInto(id, dest, resolution)
}

func (t *Tenant) moveFileInto(id FileID, dest FolderRecord, resolution ConflictResolution) (FileRecord, error) {
	source, ok := t.files.Get(id)
	if !ok {
		return FileRecord{}, NotFound("file")
	}
	if source.DiskID != dest.DiskID {
		return FileRecord{}, Conflict("cannot move between different disks")
	}

	name := source.Name
	newPath := joinPath(dest.FullPath, name)
	if _, occupied := t.filePaths.Get(newPath); occupied && newPath != source.FullPath {
		switch resolution {
		case ConflictKeepOriginal, "":
			return source, nil
		case ConflictKeepNewer:
			if existingID, _ := t.filePaths.Get(newPath); existingID != "" {
				existing, _ := t.files.Get(existingID)
				if existing.LastUpdatedMS > source.LastUpdatedMS {
					return source, nil
				}
				if err := t.DeleteFile(existingID, true); err != nil {
					return FileRecord{}, err
				}
			}
		case ConflictReplace:
			if existingID, _ := t.filePaths.Get(newPath); existingID != "" {
				if err := t.DeleteFile(existingID, true); err != nil {
					return FileRecord{}, err
				}
			}
		default: // ConflictKeepBoth
			name = t.nextAvailableName(folderPathKey(dest.FullPath), name)
			newPath = joinPath(dest.FullPath, name)
		}
	}

	sourceFolder := source.ParentFolder
	if !source.Deleted {
		t.filePaths.Remove(source.FullPath)
	}
	t.files.Update(id, func(f *FileRecord) {
		f.Name = name
		f.ParentFolder = dest.ID
		f.FullPath = newPath
		f.Extension = extensionOf(name)
		f.LastUpdatedMS = t.nowMS()
	})
	if !source.Deleted {
		t.filePaths.Insert(newPath, id)
	}
	t.updateFolderFileIDs(sourceFolder, id, false)
	t.updateFolderFileIDs(dest.ID, id, true)

	moved, _ := t.files.Get(id)
	return moved, nil
}

// MoveFolder relocates a folder subtree into destFolder on the same disk.
// Moving a folder into itself or a descendant is rejected.
func (t *Tenant) MoveFolder(id FolderID, destFolder FolderID, resolution ConflictResolution) (FolderRecord, error) {
	dest, ok := t.folders.Get(destFolder)
	if !ok {
		return FolderRecord{}, NotFound("destination folder")
	}
	return t.moveFolderInto(id, dest, resolution)
}

func (t *Tenant) moveFolderInto(id FolderID, dest FolderRecord, resolution ConflictResolution) (FolderRecord, error) {
	source, ok := t.folders.Get(id)
	if !ok {
		return FolderRecord{}, NotFound("folder")
	}
	if source.DiskID != dest.DiskID {
		return FolderRecord{}, Conflict("cannot move between different disks")
	}

	for cursor := dest.ID; cursor != ""; {
		if cursor == id {
			return FolderRecord{}, Conflict("cannot move a folder into itself or its subtree")
		}
		parent, ok := t.folders.Get(cursor)
		if !ok {
			break
		}
		cursor = parent.ParentFolder
	}

	name := source.Name
	newPath := joinPath(dest.FullPath, name) + "/"
	if _, occupied := t.folderPaths.Get(newPath); occupied && newPath != source.FullPath {
		switch resolution {
		case ConflictKeepOriginal, "":
			return source, nil
		default: // folders merge poorly; suffix the name
			name = t.nextAvailableName(folderPathKey(dest.FullPath), name)
			newPath = joinPath(dest.FullPath, name) + "/"
		}
	}

	oldPath := source.FullPath
	oldParent := source.ParentFolder

	t.folders.Update(id, func(f *FolderRecord) {
		f.Name = name
		f.ParentFolder = dest.ID
		f.FullPath = newPath
		f.LastUpdatedMS = t.nowMS()
	})
	if !source.Deleted {
		t.folderPaths.Remove(oldPath)
		t.folderPaths.Insert(newPath, id)
	}
	t.updateSubfolderPaths(id, oldPath, newPath)

	if oldParent != "" {
		t.folders.Update(oldParent, func(p *FolderRecord) {
			p.SubfolderIDs = removeFolderID(p.SubfolderIDs, id)
			p.LastUpdatedMS = t.nowMS()
		})
	}
	t.folders.Update(dest.ID, func(p *FolderRecord) {
		if !containsFolderID(p.SubfolderIDs, id) {
			p.SubfolderIDs = append(p.SubfolderIDs, id)
		}
		p.LastUpdatedMS = t.nowMS()
	})

	moved, _ := t.folders.Get(id)
	return moved, nil
}

// RestoreResult lists what a restore brought back.
type RestoreResult struct {
	RestoredFolders []FolderID `json:"restored_folders"`
	RestoredFiles   []FileID   `json:"restored_files"`
}

// RestoreFromTrash moves a trashed file or folder back to its pre-trash
// parent path, or to an explicit target path. Missing target folders are
// recreated; a target that is itself in trash is rejected.
func (t *Tenant) RestoreFromTrash(resourceID string, toPath string, resolution ConflictResolution) (RestoreResult, error) {
	if folder, ok := t.folders.Get(FolderID(resourceID)); ok {
		return t.restoreFolder(folder, toPath, resolution)
	}
	if file, ok := t.files.Get(FileID(resourceID)); ok {
		return t.restoreFile(file, toPath, resolution)
	}
	return RestoreResult{}, NotFound("resource")
}

func (t *Tenant) restoreTarget(restorePath, toPath string, disk DiskID, creator UserID) (FolderRecord, error) {
	target := restorePath
	if toPath != "" {
		target = folderPathKey(sanitizePath(toPath))
	}
	var targetID FolderID
	if id, ok := t.folderPaths.Get(target); ok {
		targetID = id
	} else {
		targetID = t.ensureFolderStructure(target, disk, creator)
	}
	folder, ok := t.folders.Get(targetID)
	if !ok {
		return FolderRecord{}, Internal("restore target folder vanished")
	}
	if folder.RestorePath != "" {
		return FolderRecord{}, Conflict("cannot restore into a folder that is in trash")
	}
	return folder, nil
}

func (t *Tenant) restoreFile(file FileRecord, toPath string, resolution ConflictResolution) (RestoreResult, error) {
	if file.RestorePath == "" {
		return RestoreResult{}, Conflict("file is not in trash")
	}
	target, err := t.restoreTarget(file.RestorePath, toPath, file.DiskID, file.CreatedBy)
	if err != nil {
		return RestoreResult{}, err
	}

	t.files.Update(file.ID, func(f *FileRecord) {
		f.Deleted = false
		f.RestorePath = ""
	})
	current, _ := t.files.Get(file.ID)
	t.filePaths.Insert(current.FullPath, file.ID)

	if _, err := t.moveFileInto(file.ID, target, orDefault(resolution, ConflictKeepBoth)); err != nil {
		return RestoreResult{}, err
	}
	return RestoreResult{RestoredFiles: []FileID{file.ID}}, nil
}

func (t *Tenant) restoreFolder(folder FolderRecord, toPath string, resolution ConflictResolution) (RestoreResult, error) {
	if folder.RestorePath == "" {
		return RestoreResult{}, Conflict("folder is not in trash")
	}
	target, err := t.restoreTarget(folder.RestorePath, toPath, folder.DiskID, folder.CreatedBy)
	if err != nil {
		return RestoreResult{}, err
	}

	result := RestoreResult{}
	t.unmarkSubtreeTrashed(folder.ID, &result)

	if _, err := t.moveFolderInto(folder.ID, target, orDefault(resolution, ConflictKeepBoth)); err != nil {
		return RestoreResult{}, err
	}
	return result, nil
}

// unmarkSubtreeTrashed clears deletion flags for a subtree and re-binds
// its current (in-trash) paths so the subsequent move re-keys them.
func (t *Tenant) unmarkSubtreeTrashed(id FolderID, result *RestoreResult) {
	folder, ok := t.folders.Get(id)
	if !ok {
		return
	}
	t.folders.Update(id, func(f *FolderRecord) {
		f.Deleted = false
		f.RestorePath = ""
	})
	current, _ := t.folders.Get(id)
	t.folderPaths.Insert(current.FullPath, id)
	result.RestoredFolders = append(result.RestoredFolders, id)

	for _, fileID := range folder.FileIDs {
		t.files.Update(fileID, func(f *FileRecord) {
			f.Deleted = false
			f.RestorePath = ""
		})
		if file, ok := t.files.Get(fileID); ok {
			t.filePaths.Insert(file.FullPath, fileID)
		}
		result.RestoredFiles = append(result.RestoredFiles, fileID)
	}
	for _, subID := range folder.SubfolderIDs {
		t.unmarkSubtreeTrashed(subID, result)
	}
}
