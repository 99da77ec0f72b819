package drive

import (
	"strings"
	"testing"
)

func TestCreateFileVersionChain(t *testing.T) {
	env := newTestTenant(t)
	disk := env.seedDisk(t)

	first, err := env.tenant.CreateFile(testOwner, CreateFileInput{
		Path:   "local::docs/a.txt",
		DiskID: disk.ID,
	})
	if err != nil {
		t.Fatalf("first create: %v", err)
	}
	if first.FileVersion != 1 {
		t.Fatalf("first version = %d, want 1", first.FileVersion)
	}
	if first.Extension != "txt" {
		t.Fatalf("extension = %q, want txt", first.Extension)
	}

	second, err := env.tenant.CreateFile(testOwner, CreateFileInput{
		Path:   "local::docs/a.txt",
		DiskID: disk.ID,
	})
	if err != nil {
		t.Fatalf("second create: %v", err)
	}
	if second.FileVersion != 2 {
		t.Fatalf("second version = %d, want 2", second.FileVersion)
	}
	if second.PriorVersion != first.ID {
		t.Fatalf("prior_version = %s, want %s", second.PriorVersion, first.ID)
	}

	reloaded, err := env.tenant.GetFile(first.ID)
	if err != nil {
		t.Fatalf("GetFile(first): %v", err)
	}
	if reloaded.NextVersion != second.ID {
		t.Fatalf("first.next_version = %s, want %s", reloaded.NextVersion, second.ID)
	}

	// The path resolves to the newest version and the parent lists only it.
	fileID, _, err := env.tenant.ResolvePath("local::docs/a.txt")
	if err != nil {
		t.Fatalf("ResolvePath: %v", err)
	}
	if fileID != second.ID {
		t.Fatalf("path resolves to %s, want %s", fileID, second.ID)
	}
	parent, err := env.tenant.GetFolder(second.ParentFolder)
	if err != nil {
		t.Fatalf("GetFolder(parent): %v", err)
	}
	if len(parent.FileIDs) != 1 || parent.FileIDs[0] != second.ID {
		t.Fatalf("parent file list = %v, want exactly [%s]", parent.FileIDs, second.ID)
	}
}

func TestCreateFileConflictModes(t *testing.T) {
	env := newTestTenant(t)
	disk := env.seedDisk(t)

	if _, err := env.tenant.CreateFile(testOwner, CreateFileInput{
		Path: "local::docs/report.pdf", DiskID: disk.ID,
	}); err != nil {
		t.Fatalf("seed create: %v", err)
	}

	_, err := env.tenant.CreateFile(testOwner, CreateFileInput{
		Path: "local::docs/report.pdf", DiskID: disk.ID,
		Resolution: ConflictKeepOriginal,
	})
	if errCode(err) != ErrAlreadyExists {
		t.Fatalf("keep-original on occupied path: err = %v, want already_exists", err)
	}

	both, err := env.tenant.CreateFile(testOwner, CreateFileInput{
		Path: "local::docs/report.pdf", DiskID: disk.ID,
		Resolution: ConflictKeepBoth,
	})
	if err != nil {
		t.Fatalf("keep-both: %v", err)
	}
	if both.Name != "report (1).pdf" {
		t.Fatalf("keep-both name = %q, want %q", both.Name, "report (1).pdf")
	}
	if both.FileVersion != 1 {
		t.Fatalf("keep-both starts a fresh chain, version = %d", both.FileVersion)
	}
}

func TestCreateFolderAlreadyExists(t *testing.T) {
	env := newTestTenant(t)
	disk := env.seedDisk(t)

	if _, err := env.tenant.CreateFolder(testOwner, CreateFolderInput{
		Path: "local::projects/alpha", DiskID: disk.ID,
	}); err != nil {
		t.Fatalf("first create: %v", err)
	}
	_, err := env.tenant.CreateFolder(testOwner, CreateFolderInput{
		Path: "local::projects/alpha", DiskID: disk.ID,
	})
	if errCode(err) != ErrAlreadyExists {
		t.Fatalf("second create: err = %v, want already_exists", err)
	}
}

func TestRenameFolderCascadesDescendants(t *testing.T) {
	env := newTestTenant(t)
	disk := env.seedDisk(t)

	folder, err := env.tenant.CreateFolder(testOwner, CreateFolderInput{
		Path: "local::p/q", DiskID: disk.ID,
	})
	if err != nil {
		t.Fatalf("create folder: %v", err)
	}
	file, err := env.tenant.CreateFile(testOwner, CreateFileInput{
		Path: "local::p/q/r/deep.txt", DiskID: disk.ID,
	})
	if err != nil {
		t.Fatalf("create file: %v", err)
	}

	renamed, err := env.tenant.RenameFolder(folder.ID, "z")
	if err != nil {
		t.Fatalf("RenameFolder: %v", err)
	}
	if renamed.FullPath != "local::p/z/" {
		t.Fatalf("renamed path = %q, want local::p/z/", renamed.FullPath)
	}

	moved, err := env.tenant.GetFile(file.ID)
	if err != nil {
		t.Fatalf("GetFile: %v", err)
	}
	if moved.FullPath != "local::p/z/r/deep.txt" {
		t.Fatalf("descendant path = %q, want local::p/z/r/deep.txt", moved.FullPath)
	}
	if _, _, err := env.tenant.ResolvePath("local::p/q/r/deep.txt"); errCode(err) != ErrNotFound {
		t.Fatalf("old path still resolves: %v", err)
	}
	if gotID, _, err := env.tenant.ResolvePath("local::p/z/r/deep.txt"); err != nil || gotID != file.ID {
		t.Fatalf("new path resolves to (%s, %v), want %s", gotID, err, file.ID)
	}
}

func TestRenameRoundTripRestoresPaths(t *testing.T) {
	env := newTestTenant(t)
	disk := env.seedDisk(t)

	folder, err := env.tenant.CreateFolder(testOwner, CreateFolderInput{
		Path: "local::a/b", DiskID: disk.ID,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := env.tenant.CreateFile(testOwner, CreateFileInput{
		Path: "local::a/b/f.txt", DiskID: disk.ID,
	}); err != nil {
		t.Fatalf("create file: %v", err)
	}

	if _, err := env.tenant.RenameFolder(folder.ID, "c"); err != nil {
		t.Fatalf("rename: %v", err)
	}
	if _, err := env.tenant.RenameFolder(folder.ID, "b"); err != nil {
		t.Fatalf("rename back: %v", err)
	}

	fileID, _, err := env.tenant.ResolvePath("local::a/b/f.txt")
	if err != nil {
		t.Fatalf("original path does not resolve after round trip: %v", err)
	}
	if fileID == "" {
		t.Fatal("expected a file binding")
	}
	got, _ := env.tenant.GetFolder(folder.ID)
	if got.FullPath != "local::a/b/" {
		t.Fatalf("folder path = %q after round trip", got.FullPath)
	}
}

func TestSoftDeleteFreesPathForFreshChain(t *testing.T) {
	env := newTestTenant(t)
	disk := env.seedDisk(t)

	first, err := env.tenant.CreateFile(testOwner, CreateFileInput{
		Path: "local::docs/a.txt", DiskID: disk.ID,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := env.tenant.DeleteFile(first.ID, false); err != nil {
		t.Fatalf("soft delete: %v", err)
	}

	if _, _, err := env.tenant.ResolvePath("local::docs/a.txt"); errCode(err) != ErrNotFound {
		t.Fatalf("deleted path still resolves: %v", err)
	}
	trashed, _ := env.tenant.GetFile(first.ID)
	if !trashed.Deleted || trashed.RestorePath == "" {
		t.Fatalf("trashed record = deleted:%v restore:%q", trashed.Deleted, trashed.RestorePath)
	}
	if !strings.Contains(trashed.FullPath, TrashFolderName) {
		t.Fatalf("trashed path %q not under %s", trashed.FullPath, TrashFolderName)
	}

	fresh, err := env.tenant.CreateFile(testOwner, CreateFileInput{
		Path: "local::docs/a.txt", DiskID: disk.ID,
	})
	if err != nil {
		t.Fatalf("recreate: %v", err)
	}
	if fresh.FileVersion != 1 || fresh.PriorVersion != "" {
		t.Fatalf("recreate must start a fresh chain, got version %d prior %q", fresh.FileVersion, fresh.PriorVersion)
	}
}

func TestRestoreFromTrash(t *testing.T) {
	env := newTestTenant(t)
	disk := env.seedDisk(t)

	file, err := env.tenant.CreateFile(testOwner, CreateFileInput{
		Path: "local::docs/a.txt", DiskID: disk.ID,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := env.tenant.DeleteFile(file.ID, false); err != nil {
		t.Fatalf("soft delete: %v", err)
	}

	result, err := env.tenant.RestoreFromTrash(string(file.ID), "", "")
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if len(result.RestoredFiles) != 1 || result.RestoredFiles[0] != file.ID {
		t.Fatalf("restored = %v", result.RestoredFiles)
	}

	restored, _ := env.tenant.GetFile(file.ID)
	if restored.Deleted || restored.RestorePath != "" {
		t.Fatalf("restored record still flagged: deleted:%v restore:%q", restored.Deleted, restored.RestorePath)
	}
	if restored.FullPath != "local::docs/a.txt" {
		t.Fatalf("restored path = %q", restored.FullPath)
	}
	if gotID, _, err := env.tenant.ResolvePath("local::docs/a.txt"); err != nil || gotID != file.ID {
		t.Fatalf("restored path resolves to (%s, %v)", gotID, err)
	}
}

func TestPermanentDeleteRelinksVersionChain(t *testing.T) {
	env := newTestTenant(t)
	disk := env.seedDisk(t)

	v1, _ := env.tenant.CreateFile(testOwner, CreateFileInput{Path: "local::a.txt", DiskID: disk.ID})
	v2, _ := env.tenant.CreateFile(testOwner, CreateFileInput{Path: "local::a.txt", DiskID: disk.ID})
	v3, err := env.tenant.CreateFile(testOwner, CreateFileInput{Path: "local::a.txt", DiskID: disk.ID})
	if err != nil {
		t.Fatalf("creates: %v", err)
	}

	if err := env.tenant.DeleteFile(v2.ID, true); err != nil {
		t.Fatalf("permanent delete: %v", err)
	}
	if _, err := env.tenant.GetFile(v2.ID); errCode(err) != ErrNotFound {
		t.Fatalf("deleted version still loads: %v", err)
	}

	head, _ := env.tenant.GetFile(v3.ID)
	tail, _ := env.tenant.GetFile(v1.ID)
	if head.PriorVersion != v1.ID {
		t.Fatalf("head.prior = %s, want %s", head.PriorVersion, v1.ID)
	}
	if tail.NextVersion != v3.ID {
		t.Fatalf("tail.next = %s, want %s", tail.NextVersion, v3.ID)
	}
}

func TestMoveFolderRejectsOwnSubtree(t *testing.T) {
	env := newTestTenant(t)
	disk := env.seedDisk(t)

	outer, _ := env.tenant.CreateFolder(testOwner, CreateFolderInput{Path: "local::outer", DiskID: disk.ID})
	inner, err := env.tenant.CreateFolder(testOwner, CreateFolderInput{Path: "local::outer/inner", DiskID: disk.ID})
	if err != nil {
		t.Fatalf("creates: %v", err)
	}

	if _, err := env.tenant.MoveFolder(outer.ID, inner.ID, ConflictKeepBoth); errCode(err) != ErrConflict {
		t.Fatalf("move into own subtree: err = %v, want conflict", err)
	}
	if _, err := env.tenant.MoveFolder(outer.ID, outer.ID, ConflictKeepBoth); errCode(err) != ErrConflict {
		t.Fatalf("move into itself: err = %v, want conflict", err)
	}
}

func TestCopyFolderDuplicatesSubtree(t *testing.T) {
	env := newTestTenant(t)
	disk := env.seedDisk(t)

	src, _ := env.tenant.CreateFolder(testOwner, CreateFolderInput{Path: "local::src", DiskID: disk.ID})
	if _, err := env.tenant.CreateFile(testOwner, CreateFileInput{Path: "local::src/one.txt", DiskID: disk.ID}); err != nil {
		t.Fatalf("seed file: %v", err)
	}
	dest, _ := env.tenant.CreateFolder(testOwner, CreateFolderInput{Path: "local::dest", DiskID: disk.ID})

	copied, err := env.tenant.CopyFolder(src.ID, dest.ID, ConflictKeepBoth)
	if err != nil {
		t.Fatalf("CopyFolder: %v", err)
	}
	if copied.ID == src.ID {
		t.Fatal("copy reused the source ID")
	}
	if copied.FullPath != "local::dest/src/" {
		t.Fatalf("copy path = %q", copied.FullPath)
	}
	if _, _, err := env.tenant.ResolvePath("local::dest/src/one.txt"); err != nil {
		t.Fatalf("copied file path does not resolve: %v", err)
	}
	if _, _, err := env.tenant.ResolvePath("local::src/one.txt"); err != nil {
		t.Fatalf("source file path lost: %v", err)
	}
}

func TestListDirectoryPagination(t *testing.T) {
	env := newTestTenant(t)
	disk := env.seedDisk(t)

	parent, _ := env.tenant.CreateFolder(testOwner, CreateFolderInput{Path: "local::store", DiskID: disk.ID})
	for _, name := range []string{"fold1", "fold2"} {
		if _, err := env.tenant.CreateFolder(testOwner, CreateFolderInput{Path: "local::store/" + name, DiskID: disk.ID}); err != nil {
			t.Fatalf("seed folder %s: %v", name, err)
		}
	}
	for _, name := range []string{"f1.txt", "f2.txt", "f3.txt"} {
		if _, err := env.tenant.CreateFile(testOwner, CreateFileInput{Path: "local::store/" + name, DiskID: disk.ID}); err != nil {
			t.Fatalf("seed file %s: %v", name, err)
		}
	}

	page, err := env.tenant.ListDirectory(ListDirectoryRequest{FolderID: parent.ID, PageSize: 3})
	if err != nil {
		t.Fatalf("page 1: %v", err)
	}
	if page.Total != 5 {
		t.Fatalf("total = %d, want 5", page.Total)
	}
	if len(page.Folders) != 2 || len(page.Files) != 1 {
		t.Fatalf("page 1 = %d folders %d files, want 2+1", len(page.Folders), len(page.Files))
	}
	if page.Cursor == "" {
		t.Fatal("expected a next cursor")
	}

	page2, err := env.tenant.ListDirectory(ListDirectoryRequest{FolderID: parent.ID, PageSize: 3, Cursor: page.Cursor})
	if err != nil {
		t.Fatalf("page 2: %v", err)
	}
	if len(page2.Folders) != 0 || len(page2.Files) != 2 {
		t.Fatalf("page 2 = %d folders %d files, want 0+2", len(page2.Folders), len(page2.Files))
	}
	if page2.Cursor != "" {
		t.Fatalf("page 2 cursor = %q, want empty", page2.Cursor)
	}

	desc, err := env.tenant.ListDirectory(ListDirectoryRequest{FolderID: parent.ID, PageSize: 1, Direction: DirectionDesc})
	if err != nil {
		t.Fatalf("desc: %v", err)
	}
	if len(desc.Files) != 1 || desc.Files[0].Name != "f3.txt" {
		t.Fatalf("desc first item = %+v, want f3.txt", desc.Files)
	}

	oversized, err := env.tenant.ListDirectory(ListDirectoryRequest{FolderID: parent.ID, PageSize: 5000})
	if err != nil {
		t.Fatalf("oversized page size: %v", err)
	}
	if oversized.Total != 5 || len(oversized.Folders)+len(oversized.Files) != 5 {
		t.Fatalf("oversized page returned %d items", len(oversized.Folders)+len(oversized.Files))
	}

	if _, err := env.tenant.ListDirectory(ListDirectoryRequest{FolderID: "FolderID_00000000-0000-4000-8000-000000000000"}); errCode(err) != ErrNotFound {
		t.Fatalf("unknown folder: err = %v, want not_found", err)
	}
}

func TestSanitizePaths(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"collapses slashes", "local::a//b///c.txt", "local::a/b/c.txt"},
		{"strips edges", "local::/a/b/", "local::a/b"},
		{"neutralizes colons", "local::a:b.txt", "local::a;b.txt"},
		{"root stays", "local::", "local::"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sanitizePath(tt.in); got != tt.want {
				t.Errorf("sanitizePath(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
