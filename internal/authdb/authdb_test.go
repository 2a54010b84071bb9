package authdb

import (
	"path/filepath"
	"testing"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "creds.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestVerifyUnknownUserFails(t *testing.T) {
	t.Parallel()
	db := openTestDB(t)
	if db.Verify("ghost", "whatever") {
		t.Error("Verify for unknown user = true, want false")
	}
}

func TestVerifyEmptyUserFails(t *testing.T) {
	t.Parallel()
	db := openTestDB(t)
	if db.Verify("", "") {
		t.Error("Verify with empty username = true, want false")
	}
}

func TestAddUserThenVerify(t *testing.T) {
	t.Parallel()
	db := openTestDB(t)
	if err := db.AddUser("alice", "s3cret"); err != nil {
		t.Fatalf("AddUser: %v", err)
	}
	if !db.Verify("alice", "s3cret") {
		t.Error("Verify(alice, s3cret) = false, want true")
	}
	if db.Verify("alice", "wrong") {
		t.Error("Verify(alice, wrong) = true, want false")
	}
}

func TestAddUserOverwritesExistingPassword(t *testing.T) {
	t.Parallel()
	db := openTestDB(t)
	db.AddUser("bob", "first")
	db.AddUser("bob", "second")
	if db.Verify("bob", "first") {
		t.Error("Verify(bob, first) = true after overwrite, want false")
	}
	if !db.Verify("bob", "second") {
		t.Error("Verify(bob, second) = false, want true")
	}
}
