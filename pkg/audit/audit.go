// Package audit records administrative mutations: who changed what, when.
// Recording is best-effort; a failed audit write is logged and never fails
// the mutation it describes.
package audit

import (
	"time"
)

// EventType categorizes an audit event.
type EventType string

const (
	EventSignIn      EventType = "auth.signin"
	EventSignOut     EventType = "auth.signout"
	EventTokenMint   EventType = "auth.token_mint"
	EventTokenRevoke EventType = "auth.token_revoke"

	EventPermissionCreate EventType = "rbac.permission_create"
	EventPermissionDelete EventType = "rbac.permission_delete"
	EventRoleCreate       EventType = "rbac.role_create"
	EventRoleUpdate       EventType = "rbac.role_update"
	EventRoleDelete       EventType = "rbac.role_delete"
	EventGroupCreate      EventType = "rbac.group_create"
	EventGroupUpdate      EventType = "rbac.group_update"
	EventGroupDelete      EventType = "rbac.group_delete"

	EventSchemaSave   EventType = "schema.save"
	EventSchemaDelete EventType = "schema.delete"

	EventContentCreate EventType = "content.create"
	EventContentUpdate EventType = "content.update"
	EventContentDelete EventType = "content.delete"

	EventLinkCreate EventType = "link.create"
	EventLinkDelete EventType = "link.delete"

	EventAssetUpload EventType = "asset.upload"
	EventAssetDelete EventType = "asset.delete"

	EventIndexRebuild EventType = "search.rebuild"
)

// Event is a single audit log entry. Resource identifies the mutated object
// ("role:editor", "content:page/about", "asset:3b4c...").
type Event struct {
	ID        int64     `json:"id"`
	Type      EventType `json:"type"`
	Actor     string    `json:"actor"`
	Resource  string    `json:"resource"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Filter narrows a listing. Zero values match everything.
type Filter struct {
	Type  EventType
	Actor string
}
