package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestSetupWritesToFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "logs", "app.log")

	log, closer, err := Setup(EnvLocal, path)
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	log.WithField("operation", "test").Debug("hello")
	if err := closer.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "hello") || !strings.Contains(string(data), "operation=test") {
		t.Errorf("unexpected log contents: %s", data)
	}
}

func TestSetupLevels(t *testing.T) {
	t.Parallel()
	tests := map[string]logrus.Level{
		EnvLocal: logrus.DebugLevel,
		EnvDev:   logrus.InfoLevel,
		EnvProd:  logrus.WarnLevel,
		"":       logrus.WarnLevel,
	}
	for env, want := range tests {
		log, closer, err := Setup(env, filepath.Join(t.TempDir(), "app.log"))
		if err != nil {
			t.Fatalf("%q: %v", env, err)
		}
		if got := log.Logger.GetLevel(); got != want {
			t.Errorf("%q: expected level %v, got %v", env, want, got)
		}
		closer.Close()
	}
}

func TestOrDiscard(t *testing.T) {
	t.Parallel()
	if OrDiscard(nil) == nil {
		t.Fatal("expected a logger")
	}
	existing := Discard()
	if OrDiscard(existing) != existing {
		t.Error("expected the given logger back")
	}
}
