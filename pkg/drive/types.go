// Package drive implements the per-tenant organization drive engine: a
// hierarchical directory with file version chains, a two-plane permission
// model with grantee matching and sovereignty-bounded inheritance, label
// interning with reverse indices, principal/group management with
// redeemable invites, webhook subscription resolution, and a deterministic
// snapshot/diff history from which the whole state is reconstructable.
//
// The engine is an explicit object (Tenant) owning every store. Operations
// take the tenant, the acting user, and plain inputs; they return explicit
// *Error values with a code from the closed set in errors.go. Handlers run
// mutations inside a prestate/poststate bracket (see snapshot.go) so every
// change lands in the diff history.
package drive

// Typed record IDs. Every ID is a string "<prefix><uuid-v4>"; the prefix is
// load-bearing and validated on ingress (see ids.go).
type (
	FileID      string
	FolderID    string
	UserID      string
	GroupID     string
	DiskID      string
	DriveID     string
	APIKeyID    string
	WebhookID   string
	InviteID    string
	LabelID     string
	DiffID      string
	ContactID   = UserID
	PlaceholderID string

	DirectoryPermissionID string
	SystemPermissionID    string
)

// ID prefixes, one per record type.
const (
	PrefixFile                FileID                = "FileID_"
	PrefixFolder              FolderID              = "FolderID_"
	PrefixUser                UserID                = "UserID_"
	PrefixGroup               GroupID               = "GroupID_"
	PrefixDisk                DiskID                = "DiskID_"
	PrefixDrive               DriveID               = "DriveID_"
	PrefixAPIKey              APIKeyID              = "ApiKeyID_"
	PrefixWebhook             WebhookID             = "WebhookID_"
	PrefixInvite              InviteID              = "InviteID_"
	PrefixLabel               LabelID               = "LabelID_"
	PrefixDiff                DiffID                = "DiffID_"
	PrefixPlaceholder         PlaceholderID         = "PlaceholderPermissionGranteeID_"
	PrefixDirectoryPermission DirectoryPermissionID = "DirectoryPermissionID_"
	PrefixSystemPermission    SystemPermissionID    = "SystemPermissionID_"
)

// PublicGranteeID is the sentinel grantee meaning "everyone".
const PublicGranteeID = "PUBLIC"

// GranteeKind discriminates the principal a permission is granted to.
type GranteeKind string

const (
	GranteeUser        GranteeKind = "user"
	GranteeGroup       GranteeKind = "group"
	GranteePublic      GranteeKind = "public"
	GranteePlaceholder GranteeKind = "placeholder"
)

// Grantee is the tagged principal of a permission grant.
//
// For GranteePublic the ID is the PUBLIC sentinel; for the other kinds it
// is the prefixed user, group, or placeholder ID.
type Grantee struct {
	Kind GranteeKind `json:"kind"`
	ID   string      `json:"id"`
}

func UserGrantee(id UserID) Grantee {
	return Grantee{Kind: GranteeUser, ID: string(id)}
}

func GroupGrantee(id GroupID) Grantee {
	return Grantee{Kind: GranteeGroup, ID: string(id)}
}

func PublicGrantee() Grantee {
	return Grantee{Kind: GranteePublic, ID: PublicGranteeID}
}

func PlaceholderGrantee(id PlaceholderID) Grantee {
	return Grantee{Kind: GranteePlaceholder, ID: string(id)}
}

// DirectoryRight is a right on a directory resource.
type DirectoryRight string

const (
	DirectoryView   DirectoryRight = "VIEW"
	DirectoryUpload DirectoryRight = "UPLOAD"
	DirectoryEdit   DirectoryRight = "EDIT"
	DirectoryDelete DirectoryRight = "DELETE"
	DirectoryInvite DirectoryRight = "INVITE"
	DirectoryManage DirectoryRight = "MANAGE"
)

// AllDirectoryRights returns every directory right. The tenant owner gets
// this set without evaluation.
func AllDirectoryRights() RightSet[DirectoryRight] {
	return NewRightSet(DirectoryView, DirectoryUpload, DirectoryEdit,
		DirectoryDelete, DirectoryInvite, DirectoryManage)
}

// SystemRight is a right on a system table or record.
type SystemRight string

const (
	SystemView   SystemRight = "VIEW"
	SystemCreate SystemRight = "CREATE"
	SystemEdit   SystemRight = "EDIT"
	SystemDelete SystemRight = "DELETE"
	SystemInvite SystemRight = "INVITE"
	SystemManage SystemRight = "MANAGE"
)

// AllSystemRights returns every system right.
func AllSystemRights() RightSet[SystemRight] {
	return NewRightSet(SystemView, SystemCreate, SystemEdit,
		SystemDelete, SystemInvite, SystemManage)
}

// RightSet is a set of rights with deterministic CBOR/JSON shape: it
// serializes as a sorted slice, never as a map.
type RightSet[R ~string] struct {
	rights map[R]struct{}
}

// NewRightSet builds a set from the given rights.
func NewRightSet[R ~string](rights ...R) RightSet[R] {
	s := RightSet[R]{rights: make(map[R]struct{}, len(rights))}
	for _, r := range rights {
		s.rights[r] = struct{}{}
	}
	return s
}

// Has reports whether r is in the set.
func (s RightSet[R]) Has(r R) bool {
	_, ok := s.rights[r]
	return ok
}

// Add inserts r.
func (s *RightSet[R]) Add(r R) {
	if s.rights == nil {
		s.rights = make(map[R]struct{})
	}
	s.rights[r] = struct{}{}
}

// Union adds every right of other.
func (s *RightSet[R]) Union(other RightSet[R]) {
	for r := range other.rights {
		s.Add(r)
	}
}

// Len returns the number of rights in the set.
func (s RightSet[R]) Len() int { return len(s.rights) }

// SystemTable names a system table that permissions can target.
type SystemTable string

const (
	TableAPIKeys     SystemTable = "APIKEYS"
	TableContacts    SystemTable = "CONTACTS"
	TableDrives      SystemTable = "DRIVES"
	TableDisks       SystemTable = "DISKS"
	TableGroups      SystemTable = "GROUPS"
	TableWebhooks    SystemTable = "WEBHOOKS"
	TablePermissions SystemTable = "PERMISSIONS"
	TableLabels      SystemTable = "LABELS"
)

// SystemResourceKind discriminates a whole table from a single record.
type SystemResourceKind string

const (
	SystemResourceTable  SystemResourceKind = "table"
	SystemResourceRecord SystemResourceKind = "record"
)

// SystemResource is the target of a system permission: either an entire
// table or one record inside it. There is no inheritance between the two;
// callers OR the table-level and record-level grants.
type SystemResource struct {
	Kind   SystemResourceKind `json:"kind"`
	Table  SystemTable        `json:"table,omitempty"`
	Record string             `json:"record,omitempty"`
}

func TableResource(t SystemTable) SystemResource {
	return SystemResource{Kind: SystemResourceTable, Table: t}
}

func RecordResource(id string) SystemResource {
	return SystemResource{Kind: SystemResourceRecord, Record: id}
}

// Key returns the index key for the resource.
func (r SystemResource) Key() string {
	if r.Kind == SystemResourceTable {
		return "TABLE_" + string(r.Table)
	}
	return "RECORD_" + r.Record
}

// DirectoryResourceKind discriminates files from folders in permission
// targets and webhook alt-indices.
type DirectoryResourceKind string

const (
	ResourceFile   DirectoryResourceKind = "file"
	ResourceFolder DirectoryResourceKind = "folder"
)

// DirectoryResource is the target of a directory permission.
type DirectoryResource struct {
	Kind DirectoryResourceKind `json:"kind"`
	ID   string                `json:"id"`
}

func FileResource(id FileID) DirectoryResource {
	return DirectoryResource{Kind: ResourceFile, ID: string(id)}
}

func FolderResource(id FolderID) DirectoryResource {
	return DirectoryResource{Kind: ResourceFolder, ID: string(id)}
}

// DirectoryPermission grants directory rights on a file or folder to a
// grantee, optionally bounded by a time window and restricted to the exact
// resource when Inheritable is false.
type DirectoryPermission struct {
	ID              DirectoryPermissionID    `json:"id"`
	Resource        DirectoryResource        `json:"resource"`
	GrantedTo       Grantee                  `json:"granted_to"`
	GrantedBy       UserID                   `json:"granted_by"`
	Rights          RightSet[DirectoryRight] `json:"rights"`
	BeginDateMS     int64                    `json:"begin_date_ms"`
	ExpiryDateMS    int64                    `json:"expiry_date_ms"`
	Inheritable     bool                     `json:"inheritable"`
	Note            string                   `json:"note,omitempty"`
	Labels          []string                 `json:"labels,omitempty"`
	ExternalID      string                   `json:"external_id,omitempty"`
	CreatedAtMS     int64                    `json:"created_at_ms"`
	LastModifiedMS  int64                    `json:"last_modified_ms"`
	FromPlaceholder PlaceholderID            `json:"from_placeholder,omitempty"`
}

// SystemPermission grants system rights on a table or record. LabelPrefix,
// when non-empty, limits the grant to labels whose lowercased value starts
// with the prefix (case-insensitive); redaction uses this to decide label
// visibility per viewer.
type SystemPermission struct {
	ID              SystemPermissionID    `json:"id"`
	Resource        SystemResource        `json:"resource"`
	GrantedTo       Grantee               `json:"granted_to"`
	GrantedBy       UserID                `json:"granted_by"`
	Rights          RightSet[SystemRight] `json:"rights"`
	BeginDateMS     int64                 `json:"begin_date_ms"`
	ExpiryDateMS    int64                 `json:"expiry_date_ms"`
	LabelPrefix     string                `json:"label_prefix,omitempty"`
	Note            string                `json:"note,omitempty"`
	Labels          []string              `json:"labels,omitempty"`
	ExternalID      string                `json:"external_id,omitempty"`
	CreatedAtMS     int64                 `json:"created_at_ms"`
	LastModifiedMS  int64                 `json:"last_modified_ms"`
	FromPlaceholder PlaceholderID         `json:"from_placeholder,omitempty"`
}

// DiskType tags the storage backing a disk.
type DiskType string

const (
	DiskBrowserCache DiskType = "BrowserCache"
	DiskLocalSSD     DiskType = "LocalSSD"
	DiskAWSBucket    DiskType = "AwsBucket"
	DiskStorjWeb3    DiskType = "StorjWeb3"
	DiskCanister     DiskType = "IcpCanister"
)

// PathTag returns the disk-type tag used as the root of full paths
// ("local::docs/a.txt").
func (t DiskType) PathTag() string {
	switch t {
	case DiskBrowserCache:
		return "browser"
	case DiskLocalSSD:
		return "local"
	case DiskAWSBucket:
		return "aws"
	case DiskStorjWeb3:
		return "storj"
	case DiskCanister:
		return "canister"
	default:
		return "unknown"
	}
}

// Disk is a storage binding for directory records. AuthJSON is admin-only
// and elided from non-privileged projections.
type Disk struct {
	ID          DiskID   `json:"id"`
	Name        string   `json:"name"`
	Type        DiskType `json:"type"`
	PublicNote  string   `json:"public_note,omitempty"`
	PrivateNote string   `json:"private_note,omitempty"`
	AuthJSON    string   `json:"auth_json,omitempty"`
	Labels      []string `json:"labels,omitempty"`
	ExternalID  string   `json:"external_id,omitempty"`
	CreatedAtMS int64    `json:"created_at_ms"`
}

// FolderRecord is a directory folder. SubfolderIDs and FileIDs are the
// authoritative listing order; the path index is a derived cache kept
// consistent by every mutation.
type FolderRecord struct {
	ID             FolderID `json:"id"`
	Name           string   `json:"name"`
	ParentFolder   FolderID `json:"parent_folder,omitempty"`
	SubfolderIDs   []FolderID `json:"subfolder_ids"`
	FileIDs        []FileID   `json:"file_ids"`
	FullPath       string     `json:"full_path"`
	Labels         []string   `json:"labels,omitempty"`
	CreatedBy      UserID     `json:"created_by"`
	CreatedAtMS    int64      `json:"created_at_ms"`
	LastUpdatedMS  int64      `json:"last_updated_ms"`
	DiskID         DiskID     `json:"disk_id"`
	Deleted        bool       `json:"deleted"`
	ExpiresAtMS    int64      `json:"expires_at_ms"`
	ShortcutTo     FolderID   `json:"shortcut_to,omitempty"`
	RestorePath    string     `json:"restore_path,omitempty"`
	Sovereign      bool       `json:"sovereign"`
	ExternalID     string     `json:"external_id,omitempty"`
}

// FileRecord is one version of a file. Versions form a doubly-linked chain
// through PriorVersion/NextVersion; the path index always points at the
// newest live version.
type FileRecord struct {
	ID            FileID   `json:"id"`
	Name          string   `json:"name"`
	ParentFolder  FolderID `json:"parent_folder"`
	FileVersion   int      `json:"file_version"`
	PriorVersion  FileID   `json:"prior_version,omitempty"`
	NextVersion   FileID   `json:"next_version,omitempty"`
	Extension     string   `json:"extension"`
	FullPath      string   `json:"full_path"`
	Labels        []string `json:"labels,omitempty"`
	CreatedBy     UserID   `json:"created_by"`
	CreatedAtMS   int64    `json:"created_at_ms"`
	LastUpdatedMS int64    `json:"last_updated_ms"`
	DiskID        DiskID   `json:"disk_id"`
	FileSize      int64    `json:"file_size"`
	RawURL        string   `json:"raw_url,omitempty"`
	UploadStatus  string   `json:"upload_status,omitempty"`
	Deleted       bool     `json:"deleted"`
	ExpiresAtMS   int64    `json:"expires_at_ms"`
	ShortcutTo    FileID   `json:"shortcut_to,omitempty"`
	RestorePath   string   `json:"restore_path,omitempty"`
	Sovereign     bool     `json:"sovereign"`
	ExternalID    string   `json:"external_id,omitempty"`
}

// Contact is a user record. PastUserIDs accumulates previous identities
// left behind by superswaps.
type Contact struct {
	ID           UserID   `json:"id"`
	Name         string   `json:"name"`
	AvatarURL    string   `json:"avatar_url,omitempty"`
	PublicNote   string   `json:"public_note,omitempty"`
	PrivateNote  string   `json:"private_note,omitempty"`
	ICPPrincipal string   `json:"icp_principal"`
	EVMAddress   string   `json:"evm_address,omitempty"`
	Labels       []string `json:"labels,omitempty"`
	PastUserIDs  []UserID `json:"past_user_ids,omitempty"`
	ExternalID   string   `json:"external_id,omitempty"`
	CreatedAtMS  int64    `json:"created_at_ms"`
	LastOnlineMS int64    `json:"last_online_ms"`
}

// GroupRole distinguishes member invites from admin invites. Admin implies
// member.
type GroupRole string

const (
	RoleMember GroupRole = "MEMBER"
	RoleAdmin  GroupRole = "ADMIN"
)

// Group holds two invite lists and the drive/endpoint pair used for
// cross-tenant membership validation.
type Group struct {
	ID            GroupID    `json:"id"`
	Name          string     `json:"name"`
	Owner         UserID     `json:"owner"`
	AvatarURL     string     `json:"avatar_url,omitempty"`
	PublicNote    string     `json:"public_note,omitempty"`
	PrivateNote   string     `json:"private_note,omitempty"`
	AdminInvites  []InviteID `json:"admin_invites"`
	MemberInvites []InviteID `json:"member_invites"`
	DriveID       DriveID    `json:"drive_id"`
	Endpoint      string     `json:"endpoint"`
	Labels        []string   `json:"labels,omitempty"`
	ExternalID    string     `json:"external_id,omitempty"`
	CreatedAtMS   int64      `json:"created_at_ms"`
	LastUpdatedMS int64      `json:"last_updated_ms"`
}

// InviteeKind discriminates a concrete user invitee from a redeemable
// placeholder.
type InviteeKind string

const (
	InviteeUser        InviteeKind = "user"
	InviteePlaceholder InviteeKind = "placeholder"
)

// GroupInvite binds an invitee to a group with a role and active window.
// A placeholder invitee is swapped for a concrete user on redemption; the
// original placeholder is kept in FromPlaceholder for audit.
type GroupInvite struct {
	ID              InviteID      `json:"id"`
	GroupID         GroupID       `json:"group_id"`
	InviterID       UserID        `json:"inviter_id"`
	InviteeKind     InviteeKind   `json:"invitee_kind"`
	InviteeID       string        `json:"invitee_id"`
	Role            GroupRole     `json:"role"`
	ActiveFromMS    int64         `json:"active_from_ms"`
	ExpiresAtMS     int64         `json:"expires_at_ms"`
	Note            string        `json:"note,omitempty"`
	Labels          []string      `json:"labels,omitempty"`
	FromPlaceholder PlaceholderID `json:"from_placeholder,omitempty"`
	ExternalID      string        `json:"external_id,omitempty"`
	CreatedAtMS     int64         `json:"created_at_ms"`
	LastModifiedMS  int64         `json:"last_modified_ms"`
}

// Label is an interned label string with a reverse index of every resource
// it is attached to. When Resources empties the label is garbage-collected.
type Label struct {
	ID          LabelID  `json:"id"`
	Value       string   `json:"value"`
	Color       string   `json:"color"`
	PublicNote  string   `json:"public_note,omitempty"`
	PrivateNote string   `json:"private_note,omitempty"`
	CreatedBy   UserID   `json:"created_by"`
	Resources   []string `json:"resources"`
	ExternalID  string   `json:"external_id,omitempty"`
	CreatedAtMS int64    `json:"created_at_ms"`
	UpdatedAtMS int64    `json:"updated_at_ms"`
}

// WebhookEvent is the closed set of events a webhook can subscribe to.
type WebhookEvent string

const (
	EventFileCreated        WebhookEvent = "file.created"
	EventFileUpdated        WebhookEvent = "file.updated"
	EventFileDeleted        WebhookEvent = "file.deleted"
	EventFileShared         WebhookEvent = "file.shared"
	EventFolderCreated      WebhookEvent = "folder.created"
	EventFolderUpdated      WebhookEvent = "folder.updated"
	EventFolderDeleted      WebhookEvent = "folder.deleted"
	EventFolderShared       WebhookEvent = "folder.shared"
	EventGroupInviteCreated WebhookEvent = "group_invite.created"
	EventGroupInviteUpdated WebhookEvent = "group_invite.updated"
	EventLabelAdded         WebhookEvent = "label.added"
	EventLabelRemoved       WebhookEvent = "label.removed"
	EventDriveStateDiffs    WebhookEvent = "drive.state_diffs"
	EventSuperswapUser      WebhookEvent = "org.superswap_user"
)

// ValidWebhookEvent reports whether e is in the closed event set.
func ValidWebhookEvent(e WebhookEvent) bool {
	switch e {
	case EventFileCreated, EventFileUpdated, EventFileDeleted, EventFileShared,
		EventFolderCreated, EventFolderUpdated, EventFolderDeleted, EventFolderShared,
		EventGroupInviteCreated, EventGroupInviteUpdated,
		EventLabelAdded, EventLabelRemoved,
		EventDriveStateDiffs, EventSuperswapUser:
		return true
	}
	return false
}

// Webhook is a subscription narrowing an event to a specific resource or
// user through AltIndex.
type Webhook struct {
	ID          WebhookID    `json:"id"`
	AltIndex    string       `json:"alt_index"`
	Event       WebhookEvent `json:"event"`
	URL         string       `json:"url"`
	Signature   string       `json:"signature,omitempty"`
	Note        string       `json:"note,omitempty"`
	Active      bool         `json:"active"`
	Filters     string       `json:"filters,omitempty"`
	Labels      []string     `json:"labels,omitempty"`
	ExternalID  string       `json:"external_id,omitempty"`
	CreatedAtMS int64        `json:"created_at_ms"`
}

// APIKeyRecord tracks ownership of an API key. Key minting and lookup stay
// external; the record exists so superswap and snapshots cover ownership.
type APIKeyRecord struct {
	ID          APIKeyID `json:"id"`
	Value       string   `json:"value"`
	UserID      UserID   `json:"user_id"`
	Name        string   `json:"name"`
	CreatedAtMS int64    `json:"created_at_ms"`
	ExpiresAtMS int64    `json:"expires_at_ms"`
	Revoked     bool     `json:"revoked"`
	ExternalID  string   `json:"external_id,omitempty"`
}

// DriveState is the tenant's self-describing singleton.
type DriveState struct {
	DriveID          DriveID `json:"drive_id"`
	OwnerID          UserID  `json:"owner_id"`
	Name             string  `json:"name"`
	Version          string  `json:"version"`
	Endpoint         string  `json:"endpoint"`
	StateChecksum    string  `json:"state_checksum"`
	StateTimestampNS int64   `json:"state_timestamp_ns"`
	NonceUUID        uint64  `json:"nonce_uuid_generated"`
}

// DiffRecord is one entry in the append-only state history.
type DiffRecord struct {
	ID            DiffID `json:"id"`
	TimestampNS   int64  `json:"timestamp_ns"`
	Notes         string `json:"notes,omitempty"`
	Checksum      string `json:"forward_checksum"`
	BeforeVersion string `json:"before_version"`
	AfterVersion  string `json:"after_version"`
	Payload       []byte `json:"diff_payload"`
}

// ConflictResolution selects the behaviour when a create/copy/move lands
// on an occupied path.
type ConflictResolution string

const (
	// ConflictReplace bumps the version chain for files and merges into
	// the existing folder for folders.
	ConflictReplace ConflictResolution = "REPLACE"

	// ConflictKeepBoth keeps the existing record and auto-suffixes the
	// incoming name ("name (1)").
	ConflictKeepBoth ConflictResolution = "KEEP_BOTH"

	// ConflictKeepNewer keeps whichever side has the later
	// last-updated timestamp.
	ConflictKeepNewer ConflictResolution = "KEEP_NEWER"

	// ConflictKeepOriginal leaves the existing record untouched and
	// drops the incoming one.
	ConflictKeepOriginal ConflictResolution = "KEEP_ORIGINAL"
)

// ListDirection orders paginated listings.
type ListDirection string

const (
	DirectionAsc  ListDirection = "ASC"
	DirectionDesc ListDirection = "DESC"
)
