package drive

import "encoding/json"

// DiskInput carries the fields of a new or updated disk.
type DiskInput struct {
	ID          string
	Name        string
	Type        DiskType
	PublicNote  string
	PrivateNote string
	AuthJSON    string
	ExternalID  string
}

func validDiskType(dt DiskType) bool {
	switch dt {
	case DiskBrowserCache, DiskLocalSSD, DiskAWSBucket, DiskStorjWeb3, DiskCanister:
		return true
	}
	return false
}

func validateDiskInput(in DiskInput) error {
	if err := validateName(in.Name); err != nil {
		return err
	}
	if !validDiskType(in.Type) {
		return BadRequest("type", "unknown disk type")
	}
	if err := validateNote("public_note", in.PublicNote); err != nil {
		return err
	}
	if err := validateNote("private_note", in.PrivateNote); err != nil {
		return err
	}
	if in.AuthJSON != "" && !json.Valid([]byte(in.AuthJSON)) {
		return BadRequest("auth_json", "auth_json must be valid JSON")
	}
	return validateExternalID(in.ExternalID)
}

// GetDisk returns the disk record for id.
func (t *Tenant) GetDisk(id DiskID) (Disk, error) {
	disk, ok := t.disks.Get(id)
	if !ok {
		return Disk{}, NotFound("disk")
	}
	return disk, nil
}

// Disks returns every disk in insertion order.
func (t *Tenant) Disks() []Disk {
	ids := t.diskList.Items()
	out := make([]Disk, 0, len(ids))
	for _, id := range ids {
		if disk, ok := t.disks.Get(id); ok {
			out = append(out, disk)
		}
	}
	return out
}

// CreateDisk registers a storage binding and seeds its root folder so the
// disk is immediately navigable.
func (t *Tenant) CreateDisk(creator UserID, in DiskInput) (Disk, error) {
	if err := validateDiskInput(in); err != nil {
		return Disk{}, err
	}

	id, err := t.IssueID(string(PrefixDisk), in.ID)
	if err != nil {
		return Disk{}, err
	}
	disk := Disk{
		ID:          DiskID(id),
		Name:        in.Name,
		Type:        in.Type,
		PublicNote:  in.PublicNote,
		PrivateNote: in.PrivateNote,
		AuthJSON:    in.AuthJSON,
		ExternalID:  in.ExternalID,
		CreatedAtMS: t.nowMS(),
	}
	t.disks.Insert(disk.ID, disk)
	t.diskList.Append(disk.ID)
	t.ensureRootFolder(disk.Type.PathTag(), disk.ID, creator)
	if in.ExternalID != "" {
		t.RebindExternalID("", in.ExternalID, id)
	}
	return disk, nil
}

// UpdateDisk edits a disk's mutable fields.
func (t *Tenant) UpdateDisk(id DiskID, in DiskInput) (Disk, error) {
	existing, ok := t.disks.Get(id)
	if !ok {
		return Disk{}, NotFound("disk")
	}
	if in.Name == "" {
		in.Name = existing.Name
	}
	if in.Type == "" {
		in.Type = existing.Type
	}
	if in.Type != existing.Type {
		return Disk{}, Conflict("disk type cannot change after creation")
	}
	if err := validateDiskInput(in); err != nil {
		return Disk{}, err
	}

	t.disks.Update(id, func(d *Disk) {
		d.Name = in.Name
		if in.PublicNote != "" {
			d.PublicNote = in.PublicNote
		}
		if in.PrivateNote != "" {
			d.PrivateNote = in.PrivateNote
		}
		if in.AuthJSON != "" {
			d.AuthJSON = in.AuthJSON
		}
		if in.ExternalID != "" {
			d.ExternalID = in.ExternalID
		}
	})
	if in.ExternalID != "" && in.ExternalID != existing.ExternalID {
		t.RebindExternalID(existing.ExternalID, in.ExternalID, string(id))
	}

	updated, _ := t.disks.Get(id)
	return updated, nil
}

// DeleteDisk removes a disk record. Directory records bound to the disk
// keep their DiskID; resolving them simply fails until a disk with the
// same ID is recreated.
func (t *Tenant) DeleteDisk(id DiskID) error {
	disk, ok := t.disks.Get(id)
	if !ok {
		return NotFound("disk")
	}
	t.disks.Remove(id)
	t.diskList.Retain(func(d DiskID) bool { return d != id })
	if disk.ExternalID != "" {
		t.RebindExternalID(disk.ExternalID, "", string(id))
	}
	return nil
}
