package store

import (
	"path/filepath"
	"testing"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "creds.db")
	db, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestCredentialsRoundTrip(t *testing.T) {
	db := testDB(t)

	// No credentials yet.
	c, err := db.Credentials()
	if err != nil {
		t.Fatal(err)
	}
	if c != nil {
		t.Fatalf("Credentials() = %+v, want nil before login", c)
	}

	want := &Credentials{
		AccessToken:  "acc-1",
		RefreshToken: "ref-1",
		UserJSON:     []byte(`{"_id":"u1"}`),
	}
	if err := db.SaveCredentials(want); err != nil {
		t.Fatal(err)
	}

	c, err = db.Credentials()
	if err != nil {
		t.Fatal(err)
	}
	if c == nil || c.AccessToken != "acc-1" || c.RefreshToken != "ref-1" {
		t.Errorf("Credentials() = %+v, want %+v", c, want)
	}
	if string(c.UserJSON) != `{"_id":"u1"}` {
		t.Errorf("UserJSON = %s", c.UserJSON)
	}
}

func TestSaveTokensKeepsUserBlob(t *testing.T) {
	db := testDB(t)

	if err := db.SaveCredentials(&Credentials{
		AccessToken:  "acc-1",
		RefreshToken: "ref-1",
		UserJSON:     []byte(`{"_id":"u1"}`),
	}); err != nil {
		t.Fatal(err)
	}

	// Refresh path replaces tokens only.
	if err := db.SaveTokens("acc-2", "ref-2"); err != nil {
		t.Fatal(err)
	}

	c, err := db.Credentials()
	if err != nil {
		t.Fatal(err)
	}
	if c.AccessToken != "acc-2" || c.RefreshToken != "ref-2" {
		t.Errorf("tokens = %q/%q, want acc-2/ref-2", c.AccessToken, c.RefreshToken)
	}
	if string(c.UserJSON) != `{"_id":"u1"}` {
		t.Errorf("UserJSON = %s, want preserved blob", c.UserJSON)
	}
}

func TestClearCredentials(t *testing.T) {
	db := testDB(t)

	if err := db.SaveCredentials(&Credentials{AccessToken: "a", RefreshToken: "r"}); err != nil {
		t.Fatal(err)
	}
	if err := db.ClearCredentials(); err != nil {
		t.Fatal(err)
	}

	c, err := db.Credentials()
	if err != nil {
		t.Fatal(err)
	}
	if c != nil {
		t.Errorf("Credentials() = %+v, want nil after clear", c)
	}

	// Clearing twice is a no-op.
	if err := db.ClearCredentials(); err != nil {
		t.Errorf("second ClearCredentials() error = %v", err)
	}
}

func TestDeviceGeneratedOnce(t *testing.T) {
	db := testDB(t)

	d1, err := db.Device("Android Device", "mobile")
	if err != nil {
		t.Fatal(err)
	}
	if d1.ID == "" {
		t.Fatal("device id is empty")
	}

	d2, err := db.Device("Other Name", "web")
	if err != nil {
		t.Fatal(err)
	}
	if d2.ID != d1.ID {
		t.Errorf("second Device() id = %q, want stable %q", d2.ID, d1.ID)
	}
	if d2.Name != "Android Device" || d2.Type != "mobile" {
		t.Errorf("device = %+v, want first-write identity", d2)
	}
}
