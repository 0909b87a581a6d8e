package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"macropulse/internal/domain"
)

// SnapshotProvider supplies the market observation a cycle publishes.
type SnapshotProvider interface {
	Fetch(ctx context.Context) (*domain.Snapshot, error)
}

// Renderer turns a snapshot into post text for one language.
type Renderer interface {
	Render(ctx context.Context, snapshot *domain.Snapshot, language string) (string, error)
}

// ImageRenderer produces an optional per-post artifact on disk. Failure is
// non-fatal; the returned path is removed by the caller after the send.
type ImageRenderer interface {
	RenderImage(ctx context.Context, snapshot *domain.Snapshot, language string) (string, error)
}

// Transport delivers one post to one platform. replyTo is the platform's
// reference to the thread parent, empty for a new root. The returned
// reference identifies the created post.
type Transport interface {
	Name() string
	Send(ctx context.Context, text, imagePath, replyTo string) (string, error)
}

// StateStore is the shared cross-run state document.
type StateStore interface {
	Load(ctx context.Context) (map[string]any, error)
	Merge(ctx context.Context, updates map[string]any, protected []string) error
}

// EventPublisher streams completed cycle reports to downstream consumers.
type EventPublisher interface {
	PublishReport(ctx context.Context, report *domain.CycleReport) error
	Close() error
}
