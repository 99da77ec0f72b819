package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drivelab/orgdrive/pkg/drive"
	"github.com/drivelab/orgdrive/pkg/store/memory"
)

// ============================================================================
// Test Helper Functions
// ============================================================================

const (
	ownerID  = drive.UserID("UserID_6f1b24a0-9a2e-4d3b-8c5f-0e7a1d2b3c4d")
	memberID = drive.UserID("UserID_1a2b3c4d-5e6f-4a7b-8c9d-0e1f2a3b4c5d")
)

type stubValidator struct{}

func (stubValidator) IsMember(context.Context, string, drive.UserID, drive.GroupID) (bool, error) {
	return false, nil
}

type testServer struct {
	srv      *Server
	tenant   *drive.Tenant
	driveID  drive.DriveID
	ownerKey string
}

func newTestServer(t *testing.T, cfg Config) *testServer {
	t.Helper()

	tenant := drive.NewTenant(drive.Config{
		OwnerID:   ownerID,
		Name:      "test drive",
		Version:   "test",
		Backend:   memory.New(),
		Validator: stubValidator{},
	})

	key, err := tenant.CreateAPIKey(drive.APIKeyInput{Name: "owner key", UserID: ownerID})
	require.NoError(t, err, "minting owner API key")

	return &testServer{
		srv:      New(cfg, tenant, nil),
		tenant:   tenant,
		driveID:  tenant.State().DriveID,
		ownerKey: key.Value,
	}
}

// mintKey issues an API key for an additional user.
func (ts *testServer) mintKey(t *testing.T, user drive.UserID) string {
	t.Helper()
	key, err := ts.tenant.CreateAPIKey(drive.APIKeyInput{Name: "test key", UserID: user})
	require.NoError(t, err, "minting API key for %s", user)
	return key.Value
}

// do performs a request against the route table and returns the recorder.
func (ts *testServer) do(t *testing.T, method, path, apiKey string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err, "encoding request body")
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	url := fmt.Sprintf("/v1/%s%s", ts.driveID, path)
	req := httptest.NewRequest(method, url, reader)
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	rec := httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(rec, req)
	return rec
}

type testEnvelope struct {
	OK *struct {
		Data json.RawMessage `json:"data"`
	} `json:"ok"`
	Err *struct {
		Code    uint16 `json:"code"`
		Message string `json:"message"`
		Field   string `json:"field"`
	} `json:"err"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) testEnvelope {
	t.Helper()
	var env testEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), "decoding response envelope: %s", rec.Body.String())
	return env
}

// requireData asserts a 200 OK envelope and unmarshals its data payload.
func requireData(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code, "response: %s", rec.Body.String())
	env := decodeEnvelope(t, rec)
	require.NotNil(t, env.OK, "expected ok envelope, got: %s", rec.Body.String())
	require.NoError(t, json.Unmarshal(env.OK.Data, out), "decoding data payload")
}

// seedDisk creates a disk through the API so directory paths resolve.
func (ts *testServer) seedDisk(t *testing.T) drive.Disk {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/disks", ts.ownerKey, map[string]any{
		"name": "primary",
		"type": "LocalSSD",
	})
	var disk drive.Disk
	requireData(t, rec, &disk)
	return disk
}

// ============================================================================
// Authentication Tests
// ============================================================================

func TestAuthentication(t *testing.T) {
	ts := newTestServer(t, Config{})

	t.Run("RejectsMissingKey", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/organization/about", "", nil)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		env := decodeEnvelope(t, rec)
		require.NotNil(t, env.Err)
		assert.Equal(t, uint16(http.StatusUnauthorized), env.Err.Code)
	})

	t.Run("RejectsUnknownKey", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/organization/about", "no-such-key", nil)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("RejectsRevokedKey", func(t *testing.T) {
		key, err := ts.tenant.CreateAPIKey(drive.APIKeyInput{Name: "doomed", UserID: ownerID})
		require.NoError(t, err)
		require.NoError(t, ts.tenant.RevokeAPIKey(key.ID))

		rec := ts.do(t, http.MethodGet, "/organization/about", key.Value, nil)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("AcceptsValidKey", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/organization/about", ts.ownerKey, nil)

		require.Equal(t, http.StatusOK, rec.Code, "response: %s", rec.Body.String())
		var state drive.DriveState
		requireData(t, rec, &state)
		assert.Equal(t, ts.driveID, state.DriveID)
		assert.Equal(t, ownerID, state.OwnerID)
	})

	t.Run("AcceptsBareKeyWithoutBearerPrefix", func(t *testing.T) {
		url := fmt.Sprintf("/v1/%s/organization/about", ts.driveID)
		req := httptest.NewRequest(http.MethodGet, url, nil)
		req.Header.Set("Authorization", ts.ownerKey)

		rec := httptest.NewRecorder()
		ts.srv.Handler().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

// ============================================================================
// Drive Scoping Tests
// ============================================================================

func TestDriveScoping(t *testing.T) {
	ts := newTestServer(t, Config{})

	t.Run("RejectsUnknownDriveID", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/DriveID_does-not-exist/organization/about", nil)
		req.Header.Set("Authorization", "Bearer "+ts.ownerKey)

		rec := httptest.NewRecorder()
		ts.srv.Handler().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

// ============================================================================
// Request Body Tests
// ============================================================================

func TestMalformedBody(t *testing.T) {
	ts := newTestServer(t, Config{})

	url := fmt.Sprintf("/v1/%s/disks", ts.driveID)
	req := httptest.NewRequest(http.MethodPost, url, bytes.NewReader([]byte("{not json")))
	req.Header.Set("Authorization", "Bearer "+ts.ownerKey)

	rec := httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	env := decodeEnvelope(t, rec)
	require.NotNil(t, env.Err)
	assert.Equal(t, uint16(http.StatusBadRequest), env.Err.Code)
	assert.Equal(t, "body", env.Err.Field)
}

// ============================================================================
// Directory Round Trip Tests
// ============================================================================

func TestDirectoryRoundTrip(t *testing.T) {
	ts := newTestServer(t, Config{})
	disk := ts.seedDisk(t)

	var folder drive.FolderRecord
	t.Run("CreateFolder", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/directory/folders", ts.ownerKey, map[string]any{
			"path":    "local::docs",
			"disk_id": disk.ID,
		})
		requireData(t, rec, &folder)
		assert.Equal(t, "docs", folder.Name)
		assert.Equal(t, "local::docs/", folder.FullPath)
	})

	var file drive.FileRecord
	t.Run("CreateFile", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/directory/files", ts.ownerKey, map[string]any{
			"path":      "local::docs/report.pdf",
			"disk_id":   disk.ID,
			"file_size": 1024,
		})
		requireData(t, rec, &file)
		assert.Equal(t, "report.pdf", file.Name)
		assert.Equal(t, folder.ID, file.ParentFolder)
	})

	t.Run("ListFolder", func(t *testing.T) {
		path := fmt.Sprintf("/directory/folders/%s/list", folder.ID)
		rec := ts.do(t, http.MethodGet, path, ts.ownerKey, nil)

		var listing struct {
			Folders  []drive.FolderRecord `json:"folders"`
			Files    []drive.FileRecord   `json:"files"`
			PageSize int                  `json:"page_size"`
			Total    int                  `json:"total"`
		}
		requireData(t, rec, &listing)
		assert.Empty(t, listing.Folders)
		require.Len(t, listing.Files, 1)
		assert.Equal(t, file.ID, listing.Files[0].ID)
	})

	t.Run("ResolvePath", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/directory/resolve?path=local::docs/report.pdf", ts.ownerKey, nil)

		var resolved drive.FileRecord
		requireData(t, rec, &resolved)
		assert.Equal(t, file.ID, resolved.ID)
	})

	t.Run("GetFile", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/directory/files/"+string(file.ID), ts.ownerKey, nil)

		var got drive.FileRecord
		requireData(t, rec, &got)
		assert.Equal(t, file.FullPath, got.FullPath)
	})

	t.Run("DeleteThenRestore", func(t *testing.T) {
		rec := ts.do(t, http.MethodDelete, "/directory/files/"+string(file.ID), ts.ownerKey, nil)
		require.Equal(t, http.StatusOK, rec.Code, "response: %s", rec.Body.String())

		rec = ts.do(t, http.MethodGet, "/directory/resolve?path=local::docs/report.pdf", ts.ownerKey, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)

		rec = ts.do(t, http.MethodPost, "/directory/restore", ts.ownerKey, map[string]any{
			"resource_id": file.ID,
		})
		require.Equal(t, http.StatusOK, rec.Code, "response: %s", rec.Body.String())

		rec = ts.do(t, http.MethodGet, "/directory/resolve?path=local::docs/report.pdf", ts.ownerKey, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

// ============================================================================
// Authorization Tests
// ============================================================================

func TestAuthorization(t *testing.T) {
	ts := newTestServer(t, Config{})
	disk := ts.seedDisk(t)
	memberKey := ts.mintKey(t, memberID)

	t.Run("NonOwnerCannotCreateFolder", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/directory/folders", memberKey, map[string]any{
			"path":    "local::private",
			"disk_id": disk.ID,
		})

		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("NonOwnerCannotListDisks", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/disks", memberKey, nil)

		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("NonOwnerCannotSuperswap", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/organization/superswap", memberKey, map[string]any{
			"old_user_id": memberID,
			"new_user_id": "UserID_9e8d7c6b-5a4f-4e3d-8c2b-1a0f9e8d7c6b",
		})

		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("NonOwnerCannotAttachOrDetachLabels", func(t *testing.T) {
		var folder drive.FolderRecord
		rec := ts.do(t, http.MethodPost, "/directory/folders", ts.ownerKey, map[string]any{
			"path":    "local::labelled",
			"disk_id": disk.ID,
		})
		requireData(t, rec, &folder)

		rec = ts.do(t, http.MethodPost, "/labels/attach", memberKey, map[string]any{
			"resource_id": folder.ID,
			"value":       "urgent",
		})
		assert.Equal(t, http.StatusForbidden, rec.Code)

		rec = ts.do(t, http.MethodPost, "/labels/attach", ts.ownerKey, map[string]any{
			"resource_id": folder.ID,
			"value":       "urgent",
		})
		require.Equal(t, http.StatusOK, rec.Code, "response: %s", rec.Body.String())

		rec = ts.do(t, http.MethodPost, "/labels/detach", memberKey, map[string]any{
			"resource_id": folder.ID,
			"value":       "urgent",
		})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("GranteeGainsDirectoryAccess", func(t *testing.T) {
		var folder drive.FolderRecord
		rec := ts.do(t, http.MethodPost, "/directory/folders", ts.ownerKey, map[string]any{
			"path":    "local::shared",
			"disk_id": disk.ID,
		})
		requireData(t, rec, &folder)

		rec = ts.do(t, http.MethodGet, "/directory/folders/"+string(folder.ID), memberKey, nil)
		require.Equal(t, http.StatusForbidden, rec.Code)

		rec = ts.do(t, http.MethodPost, "/permissions/directory", ts.ownerKey, map[string]any{
			"resource":   map[string]any{"kind": "folder", "id": folder.ID},
			"granted_to": map[string]any{"kind": "user", "id": memberID},
			"rights":     []string{"VIEW"},
		})
		require.Equal(t, http.StatusOK, rec.Code, "response: %s", rec.Body.String())

		rec = ts.do(t, http.MethodGet, "/directory/folders/"+string(folder.ID), memberKey, nil)
		assert.Equal(t, http.StatusOK, rec.Code, "response: %s", rec.Body.String())
	})
}

// ============================================================================
// Membership Validation Tests
// ============================================================================

func TestValidateMembership(t *testing.T) {
	ts := newTestServer(t, Config{})
	memberKey := ts.mintKey(t, memberID)

	var group drive.Group
	rec := ts.do(t, http.MethodPost, "/groups", memberKey, map[string]any{
		"name": "engineering",
	})
	requireData(t, rec, &group)

	t.Run("GroupOwnerIsMember", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/groups/validate", ts.ownerKey, map[string]any{
			"user_id":  memberID,
			"group_id": group.ID,
		})

		var resp validateMembershipResponse
		requireData(t, rec, &resp)
		assert.True(t, resp.IsMember)
		assert.Equal(t, group.ID, resp.GroupID)
	})

	t.Run("StrangerIsNotMember", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/groups/validate", ts.ownerKey, map[string]any{
			"user_id":  "UserID_9e8d7c6b-5a4f-4e3d-8c2b-1a0f9e8d7c6b",
			"group_id": group.ID,
		})

		var resp validateMembershipResponse
		requireData(t, rec, &resp)
		assert.False(t, resp.IsMember)
	})

	t.Run("RequiresAuthentication", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/groups/validate", "", map[string]any{
			"user_id":  memberID,
			"group_id": group.ID,
		})

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

// ============================================================================
// Webhook Dispatch Tests
// ============================================================================

type recordingDispatcher struct {
	mu        sync.Mutex
	delivered []drive.WebhookPayload
}

func (d *recordingDispatcher) Dispatch(_ context.Context, _ drive.Webhook, payload drive.WebhookPayload) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.delivered = append(d.delivered, payload)
}

func (d *recordingDispatcher) payloads() []drive.WebhookPayload {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]drive.WebhookPayload(nil), d.delivered...)
}

func newDispatchingServer(t *testing.T) (*testServer, *recordingDispatcher) {
	t.Helper()

	dispatcher := &recordingDispatcher{}
	tenant := drive.NewTenant(drive.Config{
		OwnerID:    ownerID,
		Name:       "test drive",
		Version:    "test",
		Backend:    memory.New(),
		Validator:  stubValidator{},
		Dispatcher: dispatcher,
	})
	key, err := tenant.CreateAPIKey(drive.APIKeyInput{Name: "owner key", UserID: ownerID})
	require.NoError(t, err, "minting owner API key")

	return &testServer{
		srv:      New(Config{}, tenant, nil),
		tenant:   tenant,
		driveID:  tenant.State().DriveID,
		ownerKey: key.Value,
	}, dispatcher
}

func TestWebhookPayloadCapturesMutationState(t *testing.T) {
	ts, dispatcher := newDispatchingServer(t)
	disk := ts.seedDisk(t)

	rec := ts.do(t, http.MethodPost, "/webhooks", ts.ownerKey, map[string]any{
		"event": string(drive.EventFileUpdated),
		"url":   "https://hooks.test/files",
	})
	require.Equal(t, http.StatusOK, rec.Code, "response: %s", rec.Body.String())

	var file drive.FileRecord
	rec = ts.do(t, http.MethodPost, "/directory/files", ts.ownerKey, map[string]any{
		"path":    "local::docs/a.txt",
		"disk_id": disk.ID,
	})
	requireData(t, rec, &file)

	for i := 0; i < 3; i++ {
		rec := ts.do(t, http.MethodPost, "/directory/files/"+string(file.ID)+"/rename", ts.ownerKey, map[string]any{
			"name": fmt.Sprintf("rev-%d.txt", i),
		})
		require.Equal(t, http.StatusOK, rec.Code, "response: %s", rec.Body.String())
	}

	// Each delivery carries the record as its own mutation produced it.
	payloads := dispatcher.payloads()
	require.Len(t, payloads, 3)
	for i, p := range payloads {
		assert.Equal(t, drive.EventFileUpdated, p.Event)
		after, ok := p.After.(drive.FileRecord)
		require.True(t, ok, "payload after is %T", p.After)
		assert.Equal(t, fmt.Sprintf("rev-%d.txt", i), after.Name)
	}
}

func TestConcurrentRequestsDeliverConsistentPayloads(t *testing.T) {
	ts, dispatcher := newDispatchingServer(t)
	disk := ts.seedDisk(t)

	rec := ts.do(t, http.MethodPost, "/webhooks", ts.ownerKey, map[string]any{
		"event": string(drive.EventFileUpdated),
		"url":   "https://hooks.test/files",
	})
	require.Equal(t, http.StatusOK, rec.Code, "response: %s", rec.Body.String())

	files := make([]drive.FileRecord, 2)
	for i := range files {
		rec := ts.do(t, http.MethodPost, "/directory/files", ts.ownerKey, map[string]any{
			"path":    fmt.Sprintf("local::docs/f%d.txt", i),
			"disk_id": disk.ID,
		})
		requireData(t, rec, &files[i])
	}

	const rounds = 20
	var wg sync.WaitGroup
	codes := make([][]int, len(files)+1)
	for w, file := range files {
		wg.Add(1)
		codes[w] = make([]int, rounds)
		go func(w int, id drive.FileID) {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				rec := ts.do(t, http.MethodPost, "/directory/files/"+string(id)+"/rename", ts.ownerKey, map[string]any{
					"name": fmt.Sprintf("w%d-%d.txt", w, i),
				})
				codes[w][i] = rec.Code
			}
		}(w, file.ID)
	}
	wg.Add(1)
	codes[len(files)] = make([]int, rounds)
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			rec := ts.do(t, http.MethodGet, "/directory/files/"+string(files[0].ID), ts.ownerKey, nil)
			codes[len(files)][i] = rec.Code
		}
	}()
	wg.Wait()

	for w, got := range codes {
		for i, code := range got {
			require.Equal(t, http.StatusOK, code, "worker %d request %d", w, i)
		}
	}

	// Mutations on one file are serialized, so its deliveries arrive in
	// mutation order even when other requests interleave.
	perFile := map[string][]string{}
	for _, p := range dispatcher.payloads() {
		after, ok := p.After.(drive.FileRecord)
		require.True(t, ok, "payload after is %T", p.After)
		perFile[p.ResourceID] = append(perFile[p.ResourceID], after.Name)
	}
	require.Len(t, perFile, len(files))
	for w, file := range files {
		names := perFile[string(file.ID)]
		require.Len(t, names, rounds)
		for i, name := range names {
			assert.Equal(t, fmt.Sprintf("w%d-%d.txt", w, i), name)
		}
	}
}

// ============================================================================
// Rate Limiting Tests
// ============================================================================

func TestRateLimiting(t *testing.T) {
	ts := newTestServer(t, Config{RateLimit: 1, RateBurst: 1})

	first := ts.do(t, http.MethodGet, "/organization/about", ts.ownerKey, nil)
	require.Equal(t, http.StatusOK, first.Code)

	second := ts.do(t, http.MethodGet, "/organization/about", ts.ownerKey, nil)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}
