package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/drivelab/orgdrive/internal/logger"
	"github.com/drivelab/orgdrive/internal/ratelimiter"
	"github.com/drivelab/orgdrive/pkg/drive"
	"github.com/drivelab/orgdrive/pkg/metrics"
)

// Config contains the HTTP server settings.
type Config struct {
	// Listen is the bind address, e.g. ":8080".
	Listen string

	// ReadTimeout bounds reading a request.
	ReadTimeout time.Duration

	// WriteTimeout bounds writing a response.
	WriteTimeout time.Duration

	// RateLimit is the sustained request rate in requests per second
	// (0 = unlimited). RateBurst is the token bucket capacity.
	RateLimit uint
	RateBurst uint
}

// Server serves the tenant API over HTTP.
type Server struct {
	cfg     Config
	tenant  *drive.Tenant
	metrics metrics.APIMetrics
	limiter *ratelimiter.RateLimiter

	httpServer   *http.Server
	shutdownOnce sync.Once
}

// New builds a Server around a tenant engine. Passing nil metrics selects
// a no-op recorder.
func New(cfg Config, tenant *drive.Tenant, apiMetrics metrics.APIMetrics) *Server {
	if apiMetrics == nil {
		apiMetrics = metrics.NewAPIMetrics()
	}

	s := &Server{
		cfg:     cfg,
		tenant:  tenant,
		metrics: apiMetrics,
	}
	if cfg.RateLimit > 0 {
		s.limiter = ratelimiter.New(cfg.RateLimit, cfg.RateBurst)
	}

	s.httpServer = &http.Server{
		Addr:         cfg.Listen,
		Handler:      s.routes(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// Handler returns the route table. Exposed for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Serve runs the server until ctx is cancelled or the listener fails.
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("API server listening on %s", s.cfg.Listen)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("api server error: %w", err)
		}
		return nil
	}
}

// Shutdown drains in-flight requests and stops the listener. Safe to call
// multiple times.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		logger.Info("Shutting down API server")
		err = s.httpServer.Shutdown(ctx)
	})
	return err
}

// apiHandler is the shape every route handler implements: it gets the
// authenticated user and returns a payload or a domain error.
type apiHandler func(r *http.Request, user drive.UserID) (any, error)

// route wraps an apiHandler with rate limiting, authentication, drive-ID
// matching, metrics, and envelope writing.
func (s *Server) route(op string, h apiHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		if s.limiter != nil && !s.limiter.Allow() {
			s.metrics.RecordRateLimited()
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"err":{"code":429,"message":"rate limit exceeded"}}`))
			return
		}

		user, err := s.authenticate(r)
		if err == nil {
			err = s.matchDrive(r)
		}

		var data any
		if err == nil {
			s.metrics.RecordRequestStart(op)
			data, err = h(r, user)
			s.metrics.RecordRequestEnd(op)
		}

		s.metrics.RecordRequest(op, time.Since(start), errStatusLabel(err))

		if err != nil {
			writeErr(w, err)
			return
		}
		writeOK(w, data)
	}
}

// authenticate resolves the Authorization header to the acting user.
//
// Both "Bearer <key>" and a bare key value are accepted. Revoked and
// expired keys do not authenticate.
func (s *Server) authenticate(r *http.Request) (drive.UserID, error) {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	raw = strings.TrimPrefix(raw, "Bearer ")
	if raw == "" {
		return "", &drive.Error{Code: drive.ErrUnauthenticated, Message: "missing API key"}
	}

	var user drive.UserID
	err := s.tenant.Run(func() error {
		key, err := s.tenant.LookupAPIKey(raw)
		if err != nil {
			return &drive.Error{Code: drive.ErrUnauthenticated, Message: "invalid API key"}
		}
		user = key.UserID
		return nil
	})
	if err != nil {
		return "", err
	}
	return user, nil
}

// matchDrive checks that the {drive} path segment names the hosted tenant.
func (s *Server) matchDrive(r *http.Request) error {
	if got := r.PathValue("drive"); got != string(s.tenant.State().DriveID) {
		return drive.NotFound("drive")
	}
	return nil
}

// routes builds the route table. All paths are rooted at /v1/{drive}.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	p := func(suffix string) string { return "/v1/{drive}" + suffix }

	// Directory
	mux.HandleFunc("POST "+p("/directory/files"), s.route("create_file", s.handleCreateFile))
	mux.HandleFunc("POST "+p("/directory/folders"), s.route("create_folder", s.handleCreateFolder))
	mux.HandleFunc("GET "+p("/directory/files/{id}"), s.route("get_file", s.handleGetFile))
	mux.HandleFunc("GET "+p("/directory/folders/{id}"), s.route("get_folder", s.handleGetFolder))
	mux.HandleFunc("GET "+p("/directory/folders/{id}/list"), s.route("list_directory", s.handleListDirectory))
	mux.HandleFunc("GET "+p("/directory/resolve"), s.route("resolve_path", s.handleResolvePath))
	mux.HandleFunc("GET "+p("/directory/breadcrumbs"), s.route("breadcrumbs", s.handleBreadcrumbs))
	mux.HandleFunc("POST "+p("/directory/files/{id}/rename"), s.route("rename_file", s.handleRenameFile))
	mux.HandleFunc("POST "+p("/directory/folders/{id}/rename"), s.route("rename_folder", s.handleRenameFolder))
	mux.HandleFunc("POST "+p("/directory/files/{id}/copy"), s.route("copy_file", s.handleCopyFile))
	mux.HandleFunc("POST "+p("/directory/folders/{id}/copy"), s.route("copy_folder", s.handleCopyFolder))
	mux.HandleFunc("POST "+p("/directory/files/{id}/move"), s.route("move_file", s.handleMoveFile))
	mux.HandleFunc("POST "+p("/directory/folders/{id}/move"), s.route("move_folder", s.handleMoveFolder))
	mux.HandleFunc("DELETE "+p("/directory/files/{id}"), s.route("delete_file", s.handleDeleteFile))
	mux.HandleFunc("DELETE "+p("/directory/folders/{id}"), s.route("delete_folder", s.handleDeleteFolder))
	mux.HandleFunc("POST "+p("/directory/restore"), s.route("restore", s.handleRestore))

	// Labels
	mux.HandleFunc("GET "+p("/labels"), s.route("list_labels", s.handleListLabels))
	mux.HandleFunc("GET "+p("/labels/{id}"), s.route("get_label", s.handleGetLabel))
	mux.HandleFunc("POST "+p("/labels/attach"), s.route("attach_label", s.handleAttachLabel))
	mux.HandleFunc("POST "+p("/labels/detach"), s.route("detach_label", s.handleDetachLabel))
	mux.HandleFunc("POST "+p("/labels/{id}/rename"), s.route("rename_label", s.handleRenameLabel))
	mux.HandleFunc("PATCH "+p("/labels/{id}"), s.route("update_label", s.handleUpdateLabel))

	// Contacts
	mux.HandleFunc("GET "+p("/contacts"), s.route("list_contacts", s.handleListContacts))
	mux.HandleFunc("POST "+p("/contacts"), s.route("create_contact", s.handleCreateContact))
	mux.HandleFunc("GET "+p("/contacts/{id}"), s.route("get_contact", s.handleGetContact))
	mux.HandleFunc("PATCH "+p("/contacts/{id}"), s.route("update_contact", s.handleUpdateContact))
	mux.HandleFunc("DELETE "+p("/contacts/{id}"), s.route("delete_contact", s.handleDeleteContact))

	// Groups and invites
	mux.HandleFunc("GET "+p("/groups"), s.route("list_groups", s.handleListGroups))
	mux.HandleFunc("POST "+p("/groups"), s.route("create_group", s.handleCreateGroup))
	mux.HandleFunc("GET "+p("/groups/{id}"), s.route("get_group", s.handleGetGroup))
	mux.HandleFunc("DELETE "+p("/groups/{id}"), s.route("delete_group", s.handleDeleteGroup))
	mux.HandleFunc("POST "+p("/groups/validate"), s.route("validate_membership", s.handleValidateMembership))
	mux.HandleFunc("POST "+p("/invites"), s.route("create_invite", s.handleCreateInvite))
	mux.HandleFunc("GET "+p("/invites"), s.route("list_invites", s.handleListInvites))
	mux.HandleFunc("GET "+p("/invites/{id}"), s.route("get_invite", s.handleGetInvite))
	mux.HandleFunc("POST "+p("/invites/{id}/redeem"), s.route("redeem_invite", s.handleRedeemInvite))
	mux.HandleFunc("PATCH "+p("/invites/{id}"), s.route("update_invite", s.handleUpdateInvite))
	mux.HandleFunc("DELETE "+p("/invites/{id}"), s.route("delete_invite", s.handleDeleteInvite))

	// Disks
	mux.HandleFunc("GET "+p("/disks"), s.route("list_disks", s.handleListDisks))
	mux.HandleFunc("POST "+p("/disks"), s.route("create_disk", s.handleCreateDisk))
	mux.HandleFunc("GET "+p("/disks/{id}"), s.route("get_disk", s.handleGetDisk))
	mux.HandleFunc("PATCH "+p("/disks/{id}"), s.route("update_disk", s.handleUpdateDisk))
	mux.HandleFunc("DELETE "+p("/disks/{id}"), s.route("delete_disk", s.handleDeleteDisk))

	// API keys
	mux.HandleFunc("GET "+p("/apikeys"), s.route("list_apikeys", s.handleListAPIKeys))
	mux.HandleFunc("POST "+p("/apikeys"), s.route("create_apikey", s.handleCreateAPIKey))
	mux.HandleFunc("GET "+p("/apikeys/{id}"), s.route("get_apikey", s.handleGetAPIKey))
	mux.HandleFunc("POST "+p("/apikeys/{id}/revoke"), s.route("revoke_apikey", s.handleRevokeAPIKey))
	mux.HandleFunc("DELETE "+p("/apikeys/{id}"), s.route("delete_apikey", s.handleDeleteAPIKey))

	// Webhooks
	mux.HandleFunc("GET "+p("/webhooks"), s.route("list_webhooks", s.handleListWebhooks))
	mux.HandleFunc("POST "+p("/webhooks"), s.route("create_webhook", s.handleCreateWebhook))
	mux.HandleFunc("GET "+p("/webhooks/{id}"), s.route("get_webhook", s.handleGetWebhook))
	mux.HandleFunc("PATCH "+p("/webhooks/{id}"), s.route("update_webhook", s.handleUpdateWebhook))
	mux.HandleFunc("DELETE "+p("/webhooks/{id}"), s.route("delete_webhook", s.handleDeleteWebhook))

	// Permissions
	mux.HandleFunc("POST "+p("/permissions/directory"), s.route("create_dir_permission", s.handleCreateDirPermission))
	mux.HandleFunc("GET "+p("/permissions/directory/{id}"), s.route("get_dir_permission", s.handleGetDirPermission))
	mux.HandleFunc("PATCH "+p("/permissions/directory/{id}"), s.route("update_dir_permission", s.handleUpdateDirPermission))
	mux.HandleFunc("DELETE "+p("/permissions/directory/{id}"), s.route("delete_dir_permission", s.handleDeleteDirPermission))
	mux.HandleFunc("POST "+p("/permissions/directory/check"), s.route("check_dir_permissions", s.handleCheckDirPermissions))
	mux.HandleFunc("GET "+p("/permissions/directory"), s.route("list_dir_permissions", s.handleListDirPermissions))
	mux.HandleFunc("POST "+p("/permissions/system"), s.route("create_sys_permission", s.handleCreateSysPermission))
	mux.HandleFunc("GET "+p("/permissions/system/{id}"), s.route("get_sys_permission", s.handleGetSysPermission))
	mux.HandleFunc("PATCH "+p("/permissions/system/{id}"), s.route("update_sys_permission", s.handleUpdateSysPermission))
	mux.HandleFunc("DELETE "+p("/permissions/system/{id}"), s.route("delete_sys_permission", s.handleDeleteSysPermission))
	mux.HandleFunc("POST "+p("/permissions/system/check"), s.route("check_sys_permissions", s.handleCheckSysPermissions))
	mux.HandleFunc("GET "+p("/permissions/system"), s.route("list_sys_permissions", s.handleListSysPermissions))

	// Organization
	mux.HandleFunc("GET "+p("/organization/about"), s.route("about", s.handleAbout))
	mux.HandleFunc("POST "+p("/organization/superswap"), s.route("superswap", s.handleSuperswap))
	mux.HandleFunc("GET "+p("/organization/history"), s.route("history", s.handleHistory))
	mux.HandleFunc("POST "+p("/organization/replay"), s.route("replay", s.handleReplay))
	mux.HandleFunc("GET "+p("/organization/snapshot"), s.snapshotDownload())
	mux.HandleFunc("POST "+p("/organization/snapshot"), s.route("apply_snapshot", s.handleApplySnapshot))
	mux.HandleFunc("GET "+p("/organization/external_ids"), s.route("list_external_ids", s.handleListExternalIDs))

	return mux
}
