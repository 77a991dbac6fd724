package config_test

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/caseline/pkg/cli/config"
)

func TestLoggerHandler(t *testing.T) {
	t.Run("json output to file redacts tagged fields", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "caseline.log")
		handler, closer, err := config.NewLoggerForTest("info", "json", path).Handler()
		gt.NoError(t, err).Required()

		type credential struct {
			Name  string
			Token string `masq:"secret"`
		}

		logger := slog.New(handler)
		logger.Info("interaction received",
			"action_id", "case-notification-edit",
			"credential", credential{Name: "bot", Token: "xoxb-hidden"},
		)
		logger.Debug("below level")
		closer()

		data, err := os.ReadFile(path)
		gt.NoError(t, err).Required()
		gt.String(t, string(data)).Contains("interaction received")
		gt.String(t, string(data)).Contains("case-notification-edit")
		gt.String(t, string(data)).NotContains("xoxb-hidden")
		gt.String(t, string(data)).NotContains("below level")
	})

	t.Run("console handler honours level", func(t *testing.T) {
		handler, closer, err := config.NewLoggerForTest("warn", "console", "stderr").Handler()
		defer closer()
		gt.NoError(t, err).Required()
		gt.Bool(t, handler.Enabled(context.Background(), slog.LevelInfo)).False()
		gt.Bool(t, handler.Enabled(context.Background(), slog.LevelError)).True()
	})

	t.Run("invalid level", func(t *testing.T) {
		_, closer, err := config.NewLoggerForTest("verbose", "console", "stdout").Handler()
		defer closer()
		gt.Value(t, err).NotNil()
	})

	t.Run("invalid format", func(t *testing.T) {
		_, closer, err := config.NewLoggerForTest("info", "xml", "stdout").Handler()
		defer closer()
		gt.Value(t, err).NotNil()
	})
}
