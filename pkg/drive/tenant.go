package drive

import (
	"context"
	"sync"
	"time"

	"github.com/drivelab/orgdrive/internal/logger"
	"github.com/drivelab/orgdrive/pkg/store"
)

// Bucket names, one per store section. The order of snapshotSections is the
// canonical serialization order for whole-state export (snapshot.go); append
// new sections at the end so old blobs keep loading.
const (
	bucketClaimedUUIDs    = "claimed_uuids"
	bucketExternalIDs     = "external_ids"
	bucketFolders         = "folders"
	bucketFiles           = "files"
	bucketFolderPaths     = "folder_paths"
	bucketFilePaths       = "file_paths"
	bucketContacts        = "contacts"
	bucketContactList     = "contact_list"
	bucketICPIndex        = "icp_index"
	bucketGroups          = "groups"
	bucketGroupList       = "group_list"
	bucketInvites         = "invites"
	bucketUserInvites     = "user_invites"
	bucketLabels          = "labels"
	bucketLabelValues     = "label_values"
	bucketLabelList       = "label_list"
	bucketDisks           = "disks"
	bucketDiskList        = "disk_list"
	bucketDirPerms        = "directory_permissions"
	bucketDirPermsByRes   = "directory_permissions_by_resource"
	bucketDirPermList     = "directory_permission_list"
	bucketSysPerms        = "system_permissions"
	bucketSysPermsByRes   = "system_permissions_by_resource"
	bucketSysPermList     = "system_permission_list"
	bucketWebhooks        = "webhooks"
	bucketWebhooksByAlt   = "webhooks_by_alt_index"
	bucketWebhookList     = "webhook_list"
	bucketAPIKeys         = "api_keys"
	bucketAPIKeysByValue  = "api_keys_by_value"
	bucketUserAPIKeys     = "user_api_keys"
	bucketDriveState      = "drive_state"
	bucketDiffHistory     = "diff_history"
	bucketSuperswapHist   = "superswap_history"
)

func snapshotSections() []string {
	return []string{
		bucketClaimedUUIDs, bucketExternalIDs,
		bucketFolders, bucketFiles, bucketFolderPaths, bucketFilePaths,
		bucketContacts, bucketContactList, bucketICPIndex,
		bucketGroups, bucketGroupList,
		bucketInvites, bucketUserInvites,
		bucketLabels, bucketLabelValues, bucketLabelList,
		bucketDisks, bucketDiskList,
		bucketDirPerms, bucketDirPermsByRes, bucketDirPermList,
		bucketSysPerms, bucketSysPermsByRes, bucketSysPermList,
		bucketWebhooks, bucketWebhooksByAlt, bucketWebhookList,
		bucketAPIKeys, bucketAPIKeysByValue, bucketUserAPIKeys,
		bucketDriveState, bucketDiffHistory, bucketSuperswapHist,
	}
}

// GroupValidator answers cross-tenant group membership questions. The
// engine never talks to the network directly; production wires an HTTP
// implementation, tests inject canned answers.
type GroupValidator interface {
	// IsMember asks the drive behind endpoint whether user belongs to
	// group. Implementations must honor ctx deadlines and return an
	// ErrUnreachable *Error when the answer cannot be obtained in time.
	IsMember(ctx context.Context, endpoint string, user UserID, group GroupID) (bool, error)
}

// Dispatcher delivers webhook payloads. Transport, retries, and signing
// live outside the engine. Dispatch is called while the tenant holds its
// state lock, so implementations must hand off and return without blocking.
type Dispatcher interface {
	Dispatch(ctx context.Context, hook Webhook, payload WebhookPayload)
}

// Config carries the collaborators and identity a Tenant is built with.
type Config struct {
	DriveID  DriveID
	OwnerID  UserID
	Name     string
	Version  string
	Endpoint string

	Backend    store.Backend
	Validator  GroupValidator
	Dispatcher Dispatcher

	// Now overrides the engine clock. Nil means time.Now.
	Now func() time.Time
}

// Tenant is the per-tenant state engine. It owns every store and is the
// receiver of all engine operations.
//
// Requests execute one at a time under mu: each mutation runs to
// completion without other requests observing partial state. Suspension
// points (cross-tenant validation, webhook dispatch) happen outside the
// lock through the injected collaborators.
type Tenant struct {
	mu sync.Mutex

	backend    store.Backend
	validator  GroupValidator
	dispatcher Dispatcher
	now        func() time.Time

	claimedUUIDs *store.Map[string, bool]
	externalIDs  *store.Map[string, []string]

	folders     *store.Map[FolderID, FolderRecord]
	files       *store.Map[FileID, FileRecord]
	folderPaths *store.Map[string, FolderID]
	filePaths   *store.Map[string, FileID]

	contacts    *store.Map[UserID, Contact]
	contactList *store.Log[UserID]
	icpIndex    *store.Map[string, UserID]

	groups    *store.Map[GroupID, Group]
	groupList *store.Log[GroupID]

	invites     *store.Map[InviteID, GroupInvite]
	userInvites *store.Map[string, []InviteID]

	labels      *store.Map[LabelID, Label]
	labelValues *store.Map[string, LabelID]
	labelList   *store.Log[LabelID]

	disks    *store.Map[DiskID, Disk]
	diskList *store.Log[DiskID]

	dirPerms      *store.Map[DirectoryPermissionID, DirectoryPermission]
	dirPermsByRes *store.Map[string, []DirectoryPermissionID]
	dirPermList   *store.Log[DirectoryPermissionID]

	sysPerms      *store.Map[SystemPermissionID, SystemPermission]
	sysPermsByRes *store.Map[string, []SystemPermissionID]
	sysPermList   *store.Log[SystemPermissionID]

	webhooks       *store.Map[WebhookID, Webhook]
	webhooksByAlt  *store.Map[string, []WebhookID]
	webhookList    *store.Log[WebhookID]

	apiKeys        *store.Map[APIKeyID, APIKeyRecord]
	apiKeysByValue *store.Map[string, APIKeyID]
	userAPIKeys    *store.Map[UserID, []APIKeyID]

	driveState *store.Cell[DriveState]

	diffHistory   *store.Log[DiffRecord]
	superswapHist *store.Map[UserID, UserID]
}

// NewTenant builds a tenant engine over config.Backend. When the backend
// already holds state (Badger restart, applied snapshot), the existing
// records stay in place; otherwise the drive singleton is initialized at
// the genesis checksum and each disk root is ensured lazily on first use.
func NewTenant(config Config) *Tenant {
	now := config.Now
	if now == nil {
		now = time.Now
	}
	b := config.Backend

	t := &Tenant{
		backend:    b,
		validator:  config.Validator,
		dispatcher: config.Dispatcher,
		now:        now,

		claimedUUIDs: store.NewMap[string, bool](b, bucketClaimedUUIDs),
		externalIDs:  store.NewMap[string, []string](b, bucketExternalIDs),

		folders:     store.NewMap[FolderID, FolderRecord](b, bucketFolders),
		files:       store.NewMap[FileID, FileRecord](b, bucketFiles),
		folderPaths: store.NewMap[string, FolderID](b, bucketFolderPaths),
		filePaths:   store.NewMap[string, FileID](b, bucketFilePaths),

		contacts:    store.NewMap[UserID, Contact](b, bucketContacts),
		contactList: store.NewLog[UserID](b, bucketContactList),
		icpIndex:    store.NewMap[string, UserID](b, bucketICPIndex),

		groups:    store.NewMap[GroupID, Group](b, bucketGroups),
		groupList: store.NewLog[GroupID](b, bucketGroupList),

		invites:     store.NewMap[InviteID, GroupInvite](b, bucketInvites),
		userInvites: store.NewMap[string, []InviteID](b, bucketUserInvites),

		labels:      store.NewMap[LabelID, Label](b, bucketLabels),
		labelValues: store.NewMap[string, LabelID](b, bucketLabelValues),
		labelList:   store.NewLog[LabelID](b, bucketLabelList),

		disks:    store.NewMap[DiskID, Disk](b, bucketDisks),
		diskList: store.NewLog[DiskID](b, bucketDiskList),

		dirPerms:      store.NewMap[DirectoryPermissionID, DirectoryPermission](b, bucketDirPerms),
		dirPermsByRes: store.NewMap[string, []DirectoryPermissionID](b, bucketDirPermsByRes),
		dirPermList:   store.NewLog[DirectoryPermissionID](b, bucketDirPermList),

		sysPerms:      store.NewMap[SystemPermissionID, SystemPermission](b, bucketSysPerms),
		sysPermsByRes: store.NewMap[string, []SystemPermissionID](b, bucketSysPermsByRes),
		sysPermList:   store.NewLog[SystemPermissionID](b, bucketSysPermList),

		webhooks:      store.NewMap[WebhookID, Webhook](b, bucketWebhooks),
		webhooksByAlt: store.NewMap[string, []WebhookID](b, bucketWebhooksByAlt),
		webhookList:   store.NewLog[WebhookID](b, bucketWebhookList),

		apiKeys:        store.NewMap[APIKeyID, APIKeyRecord](b, bucketAPIKeys),
		apiKeysByValue: store.NewMap[string, APIKeyID](b, bucketAPIKeysByValue),
		userAPIKeys:    store.NewMap[UserID, []APIKeyID](b, bucketUserAPIKeys),

		driveState: store.NewCell(b, bucketDriveState, DriveState{}),

		diffHistory:   store.NewLog[DiffRecord](b, bucketDiffHistory),
		superswapHist: store.NewMap[UserID, UserID](b, bucketSuperswapHist),
	}

	state := t.driveState.Get()
	if state.DriveID == "" {
		t.driveState.Set(DriveState{
			DriveID:          config.DriveID,
			OwnerID:          config.OwnerID,
			Name:             config.Name,
			Version:          config.Version,
			Endpoint:         config.Endpoint,
			StateChecksum:    GenesisChecksum,
			StateTimestampNS: now().UnixNano(),
		})
		logger.Info("initialized fresh drive state for %s", config.DriveID)
	} else {
		logger.Info("loaded existing drive state for %s (checksum %s)",
			state.DriveID, state.StateChecksum)
	}

	return t
}

// State returns the drive singleton.
func (t *Tenant) State() DriveState {
	return t.driveState.Get()
}

// OwnerID returns the tenant owner, the one principal that bypasses every
// permission check.
func (t *Tenant) OwnerID() UserID {
	return t.driveState.Get().OwnerID
}

// IsOwner reports whether user is the tenant owner.
func (t *Tenant) IsOwner(user UserID) bool {
	return user == t.OwnerID()
}

func (t *Tenant) nowMS() int64 {
	return t.now().UnixMilli()
}

func (t *Tenant) nowNS() int64 {
	return t.now().UnixNano()
}

// Run executes fn as one atomic request against the tenant. Store-layer
// panics are recovered into Internal errors so index corruption surfaces
// as a 500 instead of killing the process.
func (t *Tenant) Run(fn func() error) (err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			if f, ok := r.(*store.Failure); ok {
				logger.Error("store failure: %v", f)
				err = &Error{Code: ErrInternal, Message: "state store failure"}
				return
			}
			panic(r)
		}
	}()
	return fn()
}

// Mutate runs fn inside a prestate/poststate bracket. On success the diff
// is appended to the history and the state checksum advances; on any error
// the prestate is written back, so a mutation that fails partway through
// leaves no trace and no diff is recorded. The returned DiffRecord is
// zero-valued when fn failed or changed nothing.
func (t *Tenant) Mutate(note string, fn func() error) (DiffRecord, error) {
	var diff DiffRecord
	err := t.Run(func() error {
		handle := t.Prestate()
		if err := fn(); err != nil {
			t.restoreSections(diffedSections(), handle.sections)
			return err
		}
		diff = t.Poststate(handle, note)
		return nil
	})
	return diff, err
}
