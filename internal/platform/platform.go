// Package platform defines the chat-platform gateway the engine consumes.
// Surface, message, and role operations live behind this interface; the
// engine never interprets a surface ref beyond equality.
package platform

import (
	"context"
	"errors"
	"time"
)

// ErrSurfaceNotFound reports that a surface no longer exists. The case
// service treats it as an automatic close with reason "surface_missing".
var ErrSurfaceNotFound = errors.New("surface not found")

// SurfaceSpec describes a conversation surface to create.
type SurfaceSpec struct {
	Category    string   `json:"category"`
	Name        string   `json:"name"`
	Topic       string   `json:"topic"`
	ViewerRoles []string `json:"viewer_roles,omitempty"`
	OwnerID     string   `json:"owner_id,omitempty"`
}

// Message is outbound content for a surface.
type Message struct {
	Content    string `json:"content"`
	Payload    any    `json:"payload,omitempty"`
	Attachment *File  `json:"attachment,omitempty"`
}

// File is an attachment delivered alongside a message.
type File struct {
	Name string `json:"name"`
	Body []byte `json:"body"`
}

// HistoryMessage is one entry of a surface's chronological history.
type HistoryMessage struct {
	AuthorID    string    `json:"author_id"`
	AuthorName  string    `json:"author_name"`
	Bot         bool      `json:"bot"`
	Timestamp   time.Time `json:"timestamp"`
	Content     string    `json:"content"`
	Attachments []string  `json:"attachments,omitempty"`
}

// Client is the gateway to the chat platform. Every call is slow external
// I/O; the case service never invokes it while holding its lock.
type Client interface {
	CreateSurface(ctx context.Context, spec SurfaceSpec) (string, error)
	SendMessage(ctx context.Context, surfaceRef string, msg Message) (string, error)
	DeleteSurface(ctx context.Context, surfaceRef string) error
	GrantRole(ctx context.Context, userRef, roleRef string) error
	RevokeRole(ctx context.Context, userRef, roleRef string) error
	FetchHistory(ctx context.Context, surfaceRef string) ([]HistoryMessage, error)
}
