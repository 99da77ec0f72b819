package drive

import (
	"context"
	"testing"
	"time"

	"github.com/drivelab/orgdrive/pkg/store/memory"
)

// testClock is a manual clock so time-window tests are deterministic.
type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// stubValidator answers cross-tenant membership queries with canned
// results.
type stubValidator struct {
	member bool
	err    error
	calls  int
}

func (v *stubValidator) IsMember(_ context.Context, _ string, _ UserID, _ GroupID) (bool, error) {
	v.calls++
	return v.member, v.err
}

// recordingDispatcher captures webhook deliveries.
type recordingDispatcher struct {
	delivered []WebhookPayload
}

func (d *recordingDispatcher) Dispatch(_ context.Context, _ Webhook, payload WebhookPayload) {
	d.delivered = append(d.delivered, payload)
}

const (
	testOwner = UserID("UserID_6f1b24a0-9a2e-4d3b-8c5f-0e7a1d2b3c4d")
	testUser  = UserID("UserID_1a2b3c4d-5e6f-4a7b-8c9d-0e1f2a3b4c5d")
	testUser2 = UserID("UserID_9e8d7c6b-5a4f-4e3d-8c2b-1a0f9e8d7c6b")
)

type testEnv struct {
	tenant     *Tenant
	clock      *testClock
	validator  *stubValidator
	dispatcher *recordingDispatcher
}

func newTestTenant(t *testing.T) *testEnv {
	t.Helper()
	clock := &testClock{now: time.Unix(1_700_000_000, 0)}
	validator := &stubValidator{}
	dispatcher := &recordingDispatcher{}
	tenant := NewTenant(Config{
		OwnerID:    testOwner,
		Name:       "test drive",
		Version:    "test",
		Endpoint:   "https://drive.test",
		Backend:    memory.New(),
		Validator:  validator,
		Dispatcher: dispatcher,
		Now:        clock.Now,
	})
	return &testEnv{tenant: tenant, clock: clock, validator: validator, dispatcher: dispatcher}
}

func (e *testEnv) seedDisk(t *testing.T) Disk {
	t.Helper()
	disk, err := e.tenant.CreateDisk(testOwner, DiskInput{
		Name: "primary",
		Type: DiskLocalSSD,
	})
	if err != nil {
		t.Fatalf("CreateDisk: %v", err)
	}
	return disk
}

func (e *testEnv) seedContact(t *testing.T, id UserID, name string) Contact {
	t.Helper()
	contact, err := e.tenant.CreateContact(ContactInput{
		ID:           string(id),
		Name:         name,
		ICPPrincipal: PrincipalText([]byte(name)),
	})
	if err != nil {
		t.Fatalf("CreateContact(%s): %v", name, err)
	}
	return contact
}

func errCode(err error) ErrorCode {
	if de, ok := err.(*Error); ok {
		return de.Code
	}
	return ErrInternal
}
