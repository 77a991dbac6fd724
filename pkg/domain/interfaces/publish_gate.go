package interfaces

import "context"

// PublishGate orders card publishes per key. Publish runs fn only when
// version is newer than the last version successfully published for key, and
// holds an exclusive per-key lock while fn runs. It reports whether fn ran.
// A failed fn does not advance the recorded version.
type PublishGate interface {
	Publish(ctx context.Context, key string, version int64, fn func(ctx context.Context) error) (bool, error)
}
