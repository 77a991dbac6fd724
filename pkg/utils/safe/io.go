package safe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/secmon-lab/caseline/pkg/utils/logging"
)

// Close closes closer and logs failures. Nil closers and already closed
// files are ignored.
func Close(ctx context.Context, closer io.Closer) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		logging.From(ctx).Error("Failed to close",
			slog.String("type", fmt.Sprintf("%T", closer)),
			slog.Any("error", err),
		)
	}
}

// Write writes data to w and logs failures, including short writes.
// Nil writers are ignored.
func Write(ctx context.Context, w io.Writer, data []byte) {
	if w == nil {
		return
	}
	n, err := w.Write(data)
	if err != nil {
		logging.From(ctx).Error("Failed to write", slog.Any("error", err), slog.Int("written", n), slog.Int("size", len(data)))
		return
	}
	if n < len(data) {
		logging.From(ctx).Warn("Short write", slog.Int("written", n), slog.Int("size", len(data)))
	}
}
