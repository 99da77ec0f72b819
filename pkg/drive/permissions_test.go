package drive

import (
	"testing"
	"time"
)

func grantFolderView(t *testing.T, env *testEnv, folder FolderID, to Grantee, inheritable bool) DirectoryPermission {
	t.Helper()
	perm, err := env.tenant.CreateDirectoryPermission(testOwner, DirectoryPermissionInput{
		Resource:    FolderResource(folder),
		GrantedTo:   to,
		Rights:      []DirectoryRight{DirectoryView},
		Inheritable: inheritable,
	})
	if err != nil {
		t.Fatalf("CreateDirectoryPermission: %v", err)
	}
	return perm
}

func TestInheritedViewStopsAtSovereignBoundary(t *testing.T) {
	env := newTestTenant(t)
	disk := env.seedDisk(t)
	env.seedContact(t, testUser, "viewer")

	top, err := env.tenant.CreateFolder(testOwner, CreateFolderInput{Path: "local::top", DiskID: disk.ID})
	if err != nil {
		t.Fatalf("create top: %v", err)
	}
	if _, err := env.tenant.CreateFolder(testOwner, CreateFolderInput{Path: "local::top/mid", DiskID: disk.ID}); err != nil {
		t.Fatalf("create mid: %v", err)
	}
	leaf, err := env.tenant.CreateFile(testOwner, CreateFileInput{Path: "local::top/mid/leaf.txt", DiskID: disk.ID})
	if err != nil {
		t.Fatalf("create leaf: %v", err)
	}

	grantFolderView(t, env, top.ID, UserGrantee(testUser), true)

	rights := env.tenant.CheckDirectoryPermissions(FileResource(leaf.ID), testUser)
	if !rights.Has(DirectoryView) {
		t.Fatal("inheritable grant on top should reach the leaf")
	}

	// A sovereign folder in between cuts the chain.
	sov, err := env.tenant.CreateFolder(testOwner, CreateFolderInput{
		Path: "local::top/vault", DiskID: disk.ID, Sovereign: true,
	})
	if err != nil {
		t.Fatalf("create sovereign: %v", err)
	}
	inner, err := env.tenant.CreateFile(testOwner, CreateFileInput{Path: "local::top/vault/secret.txt", DiskID: disk.ID})
	if err != nil {
		t.Fatalf("create secret: %v", err)
	}
	if env.tenant.CheckDirectoryPermissions(FileResource(inner.ID), testUser).Has(DirectoryView) {
		t.Fatal("grant above a sovereign folder must not reach inside it")
	}

	// A grant on the sovereign folder itself still applies within.
	grantFolderView(t, env, sov.ID, UserGrantee(testUser), true)
	if !env.tenant.CheckDirectoryPermissions(FileResource(inner.ID), testUser).Has(DirectoryView) {
		t.Fatal("grant on the sovereign folder itself should apply")
	}
}

func TestNonInheritableGrantStaysOnResource(t *testing.T) {
	env := newTestTenant(t)
	disk := env.seedDisk(t)
	env.seedContact(t, testUser, "viewer")

	top, _ := env.tenant.CreateFolder(testOwner, CreateFolderInput{Path: "local::top", DiskID: disk.ID})
	leaf, err := env.tenant.CreateFile(testOwner, CreateFileInput{Path: "local::top/leaf.txt", DiskID: disk.ID})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	grantFolderView(t, env, top.ID, UserGrantee(testUser), false)

	if !env.tenant.CheckDirectoryPermissions(FolderResource(top.ID), testUser).Has(DirectoryView) {
		t.Fatal("grant must apply on its own resource")
	}
	if env.tenant.CheckDirectoryPermissions(FileResource(leaf.ID), testUser).Has(DirectoryView) {
		t.Fatal("non-inheritable grant leaked to a child")
	}
}

func TestPermissionTimeWindows(t *testing.T) {
	env := newTestTenant(t)
	disk := env.seedDisk(t)
	env.seedContact(t, testUser, "viewer")

	folder, _ := env.tenant.CreateFolder(testOwner, CreateFolderInput{Path: "local::shared", DiskID: disk.ID})
	now := env.clock.Now().UnixMilli()

	tests := []struct {
		name   string
		begin  int64
		expiry int64
		want   bool
	}{
		{"open window", 0, 0, true},
		{"active window", now - 1000, now + 60_000, true},
		{"expired", 0, now - 1, false},
		{"expiry equals now", 0, now, false},
		{"not yet active", now + 60_000, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			perm, err := env.tenant.CreateDirectoryPermission(testOwner, DirectoryPermissionInput{
				Resource:     FolderResource(folder.ID),
				GrantedTo:    UserGrantee(testUser),
				Rights:       []DirectoryRight{DirectoryView},
				BeginDateMS:  tt.begin,
				ExpiryDateMS: tt.expiry,
			})
			if err != nil {
				t.Fatalf("create grant: %v", err)
			}
			got := env.tenant.CheckDirectoryPermissions(FolderResource(folder.ID), testUser).Has(DirectoryView)
			if got != tt.want {
				t.Errorf("view = %v, want %v", got, tt.want)
			}
			if err := env.tenant.DeleteDirectoryPermission(testOwner, perm.ID); err != nil {
				t.Fatalf("delete grant: %v", err)
			}
		})
	}
}

func TestGroupAndPublicGrantees(t *testing.T) {
	env := newTestTenant(t)
	disk := env.seedDisk(t)
	env.seedContact(t, testUser, "member")
	env.seedContact(t, testUser2, "stranger")

	folder, _ := env.tenant.CreateFolder(testOwner, CreateFolderInput{Path: "local::team", DiskID: disk.ID})
	group, err := env.tenant.CreateGroup(CreateGroupInput{Name: "engineering"})
	if err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}
	if _, err := env.tenant.CreateGroupInvite(testOwner, InviteInput{
		GroupID: group.ID, InviteeID: string(testUser),
	}); err != nil {
		t.Fatalf("invite: %v", err)
	}

	grantFolderView(t, env, folder.ID, GroupGrantee(group.ID), true)

	if !env.tenant.CheckDirectoryPermissions(FolderResource(folder.ID), testUser).Has(DirectoryView) {
		t.Fatal("group member should see the folder")
	}
	if env.tenant.CheckDirectoryPermissions(FolderResource(folder.ID), testUser2).Has(DirectoryView) {
		t.Fatal("non-member should not see the folder")
	}

	grantFolderView(t, env, folder.ID, PublicGrantee(), true)
	if !env.tenant.CheckDirectoryPermissions(FolderResource(folder.ID), testUser2).Has(DirectoryView) {
		t.Fatal("public grant should reach everyone")
	}
}

func TestOwnerBypassesResolution(t *testing.T) {
	env := newTestTenant(t)
	disk := env.seedDisk(t)

	file, err := env.tenant.CreateFile(testOwner, CreateFileInput{Path: "local::own.txt", DiskID: disk.ID})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	rights := env.tenant.CheckDirectoryPermissions(FileResource(file.ID), testOwner)
	if rights.Len() != AllDirectoryRights().Len() {
		t.Fatalf("owner rights = %v, want all", rights.Slice())
	}
}

func TestBreadcrumbsClippedByView(t *testing.T) {
	env := newTestTenant(t)
	disk := env.seedDisk(t)
	env.seedContact(t, testUser, "viewer")

	if _, err := env.tenant.CreateFolder(testOwner, CreateFolderInput{Path: "local::a/b/c", DiskID: disk.ID}); err != nil {
		t.Fatalf("create: %v", err)
	}
	file, err := env.tenant.CreateFile(testOwner, CreateFileInput{Path: "local::a/b/c/doc.txt", DiskID: disk.ID})
	if err != nil {
		t.Fatalf("create file: %v", err)
	}

	_, bID, err := env.tenant.ResolvePath("local::a/b")
	if err != nil {
		t.Fatalf("resolve b: %v", err)
	}
	grantFolderView(t, env, bID, UserGrantee(testUser), true)

	crumbs := env.tenant.DeriveBreadcrumbs(FileResource(file.ID), testUser)
	if len(crumbs) != 2 {
		t.Fatalf("crumbs = %v, want [b c]", crumbs)
	}
	if crumbs[0].Name != "b" || crumbs[1].Name != "c" {
		t.Fatalf("crumbs = %v, want b then c", crumbs)
	}

	// The owner sees the whole ancestry.
	all := env.tenant.DeriveBreadcrumbs(FileResource(file.ID), testOwner)
	if len(all) != 4 {
		t.Fatalf("owner crumbs = %v, want root a b c", all)
	}
}

func TestSystemPlaneUnionAndIndependence(t *testing.T) {
	env := newTestTenant(t)
	env.seedContact(t, testUser, "analyst")

	group, _ := env.tenant.CreateGroup(CreateGroupInput{Name: "analysts"})
	if _, err := env.tenant.CreateGroupInvite(testOwner, InviteInput{
		GroupID: group.ID, InviteeID: string(testUser),
	}); err != nil {
		t.Fatalf("invite: %v", err)
	}

	if _, err := env.tenant.CreateSystemPermission(testOwner, SystemPermissionInput{
		Resource:  TableResource(TableContacts),
		GrantedTo: UserGrantee(testUser),
		Rights:    []SystemRight{SystemView},
	}); err != nil {
		t.Fatalf("direct grant: %v", err)
	}
	if _, err := env.tenant.CreateSystemPermission(testOwner, SystemPermissionInput{
		Resource:  TableResource(TableContacts),
		GrantedTo: GroupGrantee(group.ID),
		Rights:    []SystemRight{SystemEdit},
	}); err != nil {
		t.Fatalf("group grant: %v", err)
	}

	rights := env.tenant.CheckSystemPermissions(TableResource(TableContacts), testUser)
	if !rights.Has(SystemView) || !rights.Has(SystemEdit) {
		t.Fatalf("rights = %v, want union of direct and group grants", rights.Slice())
	}

	// A table grant never implies a record grant.
	record := RecordResource(string(testUser2))
	if env.tenant.CheckSystemPermissions(record, testUser).Len() != 0 {
		t.Fatal("table grant leaked onto a record target")
	}
}

func TestLabelPrefixGating(t *testing.T) {
	env := newTestTenant(t)
	env.seedContact(t, testUser, "viewer")

	if _, err := env.tenant.CreateSystemPermission(testOwner, SystemPermissionInput{
		Resource:    TableResource(TableLabels),
		GrantedTo:   UserGrantee(testUser),
		Rights:      []SystemRight{SystemView},
		LabelPrefix: "team_",
	}); err != nil {
		t.Fatalf("grant: %v", err)
	}

	if !env.tenant.CanViewLabel(testUser, "team_alpha") {
		t.Fatal("prefixed label should be visible")
	}
	if env.tenant.CanViewLabel(testUser, "secret_ops") {
		t.Fatal("non-matching label should be hidden")
	}
	if !env.tenant.CanViewLabel(testOwner, "secret_ops") {
		t.Fatal("owner sees every label")
	}

	filtered := env.tenant.RedactLabels(testUser, []string{"team_alpha", "secret_ops", "team_beta"})
	if len(filtered) != 2 || filtered[0] != "team_alpha" || filtered[1] != "team_beta" {
		t.Fatalf("filtered = %v", filtered)
	}
}

func TestCanUserAccessDirectoryPermission(t *testing.T) {
	env := newTestTenant(t)
	disk := env.seedDisk(t)
	env.seedContact(t, testUser, "grantee")
	env.seedContact(t, testUser2, "stranger")

	file, _ := env.tenant.CreateFile(testOwner, CreateFileInput{Path: "local::x.txt", DiskID: disk.ID})
	perm, err := env.tenant.CreateDirectoryPermission(testOwner, DirectoryPermissionInput{
		Resource:  FileResource(file.ID),
		GrantedTo: UserGrantee(testUser),
		Rights:    []DirectoryRight{DirectoryView},
	})
	if err != nil {
		t.Fatalf("grant: %v", err)
	}

	if !env.tenant.CanUserAccessDirectoryPermission(testOwner, perm) {
		t.Fatal("owner must access")
	}
	if !env.tenant.CanUserAccessDirectoryPermission(testUser, perm) {
		t.Fatal("grantee must access")
	}
	if env.tenant.CanUserAccessDirectoryPermission(testUser2, perm) {
		t.Fatal("stranger must not access")
	}
}

func TestExpiredGrantSkippedAfterClockAdvance(t *testing.T) {
	env := newTestTenant(t)
	disk := env.seedDisk(t)
	env.seedContact(t, testUser, "viewer")

	folder, _ := env.tenant.CreateFolder(testOwner, CreateFolderInput{Path: "local::temp", DiskID: disk.ID})
	if _, err := env.tenant.CreateDirectoryPermission(testOwner, DirectoryPermissionInput{
		Resource:     FolderResource(folder.ID),
		GrantedTo:    UserGrantee(testUser),
		Rights:       []DirectoryRight{DirectoryView},
		ExpiryDateMS: env.clock.Now().UnixMilli() + 1000,
	}); err != nil {
		t.Fatalf("grant: %v", err)
	}

	if !env.tenant.CheckDirectoryPermissions(FolderResource(folder.ID), testUser).Has(DirectoryView) {
		t.Fatal("grant should be active before expiry")
	}
	env.clock.Advance(2 * time.Second)
	if env.tenant.CheckDirectoryPermissions(FolderResource(folder.ID), testUser).Has(DirectoryView) {
		t.Fatal("grant should expire after the window passes")
	}
}
