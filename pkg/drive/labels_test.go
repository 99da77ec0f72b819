package drive

import "testing"

func TestLabelValueValidation(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		wantErr bool
	}{
		{"simple", "finance", false},
		{"digits and underscore", "q1_2026_reports", false},
		{"long but legal", "abcdefghijklmnopqrstuvwxyz0123456789_abcdefghijklmnopqrstuvwxyz", false},
		{"uppercase", "Finance", true},
		{"empty", "", true},
		{"spaces", "two words", true},
		{"hyphen", "kebab-case", true},
		{"too long", "a_very_long_label_value_that_keeps_going_and_going_and_going_far_past", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateLabelValue(tt.value)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateLabelValue(%q) error = %v, wantErr %v", tt.value, err, tt.wantErr)
			}
		})
	}
}

func TestAttachLabelInternsValue(t *testing.T) {
	env := newTestTenant(t)
	disk := env.seedDisk(t)

	file, _ := env.tenant.CreateFile(testOwner, CreateFileInput{Path: "local::a.txt", DiskID: disk.ID})
	folder, _ := env.tenant.CreateFolder(testOwner, CreateFolderInput{Path: "local::docs", DiskID: disk.ID})

	first, err := env.tenant.AttachLabel(string(file.ID), "urgent", "#ff0000", testOwner)
	if err != nil {
		t.Fatalf("attach to file: %v", err)
	}
	second, err := env.tenant.AttachLabel(string(folder.ID), "urgent", "", testOwner)
	if err != nil {
		t.Fatalf("attach to folder: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("same value minted two labels: %s vs %s", first.ID, second.ID)
	}
	if second.Color != "#ff0000" {
		t.Fatalf("color = %q, want the first attachment's color", second.Color)
	}
	if len(second.Resources) != 2 {
		t.Fatalf("resources = %v, want both", second.Resources)
	}

	got, _ := env.tenant.GetFile(file.ID)
	if len(got.Labels) != 1 || got.Labels[0] != "urgent" {
		t.Fatalf("file labels = %v", got.Labels)
	}
}

func TestAttachLabelIdempotent(t *testing.T) {
	env := newTestTenant(t)
	disk := env.seedDisk(t)
	file, _ := env.tenant.CreateFile(testOwner, CreateFileInput{Path: "local::a.txt", DiskID: disk.ID})

	for i := 0; i < 3; i++ {
		if _, err := env.tenant.AttachLabel(string(file.ID), "draft", "", testOwner); err != nil {
			t.Fatalf("attach %d: %v", i, err)
		}
	}
	label, err := env.tenant.GetLabelByValue("draft")
	if err != nil {
		t.Fatalf("GetLabelByValue: %v", err)
	}
	if len(label.Resources) != 1 {
		t.Fatalf("resources = %v, want one entry", label.Resources)
	}
	got, _ := env.tenant.GetFile(file.ID)
	if len(got.Labels) != 1 {
		t.Fatalf("file labels = %v, want one entry", got.Labels)
	}
}

func TestDetachLastLinkCollectsLabel(t *testing.T) {
	env := newTestTenant(t)
	disk := env.seedDisk(t)
	file, _ := env.tenant.CreateFile(testOwner, CreateFileInput{Path: "local::a.txt", DiskID: disk.ID})

	if _, err := env.tenant.AttachLabel(string(file.ID), "ephemeral", "", testOwner); err != nil {
		t.Fatalf("attach: %v", err)
	}
	if err := env.tenant.DetachLabel(string(file.ID), "ephemeral"); err != nil {
		t.Fatalf("detach: %v", err)
	}

	if _, err := env.tenant.GetLabelByValue("ephemeral"); errCode(err) != ErrNotFound {
		t.Fatalf("label survived its last detach: %v", err)
	}
	if len(env.tenant.Labels()) != 0 {
		t.Fatal("label registry not empty after GC")
	}
	got, _ := env.tenant.GetFile(file.ID)
	if len(got.Labels) != 0 {
		t.Fatalf("file labels = %v, want none", got.Labels)
	}

	// Detaching again is a no-op.
	if err := env.tenant.DetachLabel(string(file.ID), "ephemeral"); err != nil {
		t.Fatalf("second detach: %v", err)
	}
}

func TestRenameLabelRewritesResources(t *testing.T) {
	env := newTestTenant(t)
	disk := env.seedDisk(t)
	file, _ := env.tenant.CreateFile(testOwner, CreateFileInput{Path: "local::a.txt", DiskID: disk.ID})
	folder, _ := env.tenant.CreateFolder(testOwner, CreateFolderInput{Path: "local::docs", DiskID: disk.ID})

	label, err := env.tenant.AttachLabel(string(file.ID), "old_name", "", testOwner)
	if err != nil {
		t.Fatalf("attach: %v", err)
	}
	if _, err := env.tenant.AttachLabel(string(folder.ID), "old_name", "", testOwner); err != nil {
		t.Fatalf("attach folder: %v", err)
	}

	renamed, err := env.tenant.RenameLabel(label.ID, "new_name")
	if err != nil {
		t.Fatalf("rename: %v", err)
	}
	if renamed.Value != "new_name" {
		t.Fatalf("value = %q", renamed.Value)
	}

	gotFile, _ := env.tenant.GetFile(file.ID)
	gotFolder, _ := env.tenant.GetFolder(folder.ID)
	if len(gotFile.Labels) != 1 || gotFile.Labels[0] != "new_name" {
		t.Fatalf("file labels = %v", gotFile.Labels)
	}
	if len(gotFolder.Labels) != 1 || gotFolder.Labels[0] != "new_name" {
		t.Fatalf("folder labels = %v", gotFolder.Labels)
	}
	if _, err := env.tenant.GetLabelByValue("old_name"); errCode(err) != ErrNotFound {
		t.Fatalf("old value still resolves: %v", err)
	}
	if _, err := env.tenant.GetLabelByValue("new_name"); err != nil {
		t.Fatalf("new value does not resolve: %v", err)
	}
}

func TestRenameLabelRejectsTakenValue(t *testing.T) {
	env := newTestTenant(t)
	disk := env.seedDisk(t)
	file, _ := env.tenant.CreateFile(testOwner, CreateFileInput{Path: "local::a.txt", DiskID: disk.ID})

	a, _ := env.tenant.AttachLabel(string(file.ID), "alpha", "", testOwner)
	if _, err := env.tenant.AttachLabel(string(file.ID), "beta", "", testOwner); err != nil {
		t.Fatalf("attach beta: %v", err)
	}
	if _, err := env.tenant.RenameLabel(a.ID, "beta"); errCode(err) != ErrAlreadyExists {
		t.Fatalf("rename onto taken value: err = %v, want already_exists", err)
	}
}
