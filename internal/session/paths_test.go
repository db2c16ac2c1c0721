package session

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDir(t *testing.T) {
	home, _ := os.UserHomeDir()
	got := Dir("main")
	want := filepath.Join(home, ".chatline", "sessions", "main")
	if got != want {
		t.Errorf("Dir(main) = %q, want %q", got, want)
	}
}

func TestCredsDBPath(t *testing.T) {
	got := CredsDBPath("test")
	if !strings.HasSuffix(got, filepath.Join("sessions", "test", "creds.db")) {
		t.Errorf("CredsDBPath(test) = %q, want suffix sessions/test/creds.db", got)
	}
}

func TestLockPath(t *testing.T) {
	got := LockPath("test")
	if !strings.HasSuffix(got, filepath.Join("sessions", "test", "LOCK")) {
		t.Errorf("LockPath(test) = %q, want suffix sessions/test/LOCK", got)
	}
}

func TestLogPath(t *testing.T) {
	got := LogPath("test")
	if !strings.HasSuffix(got, filepath.Join("logs", "chatlined.log")) {
		t.Errorf("LogPath(test) = %q, want suffix logs/chatlined.log", got)
	}
}
