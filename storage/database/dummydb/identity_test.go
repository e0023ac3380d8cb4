package dummydb

import (
	"testing"

	"github.com/Evian1k/school12k/core/identity"
)

func setupDir(t *testing.T) identity.Directory {
	t.Helper()
	db, err := Open()
	if err != nil {
		t.Fatalf("Open() failed, %v", err)
	}
	return NewIdentityDirectory(db)
}

func TestIdentityDirectory_CreateIdentity(t *testing.T) {
	dir := setupDir(t)

	idn := identity.Identity{ID: "id-1", Email: "mike@test.cd", Name: "Mike", Role: identity.RoleStudent}
	if _, err := dir.CreateIdentity(idn); err != nil {
		t.Fatalf("CreateIdentity() failed, %v", err)
	}

	// duplicate emails are rejected, case-insensitively
	dup := identity.Identity{ID: "id-2", Email: "MIKE@test.cd", Name: "Other Mike", Role: identity.RoleTeacher}
	if _, err := dir.CreateIdentity(dup); err != identity.ErrDuplicateIdentity {
		t.Errorf("CreateIdentity() error = %v, want %v", err, identity.ErrDuplicateIdentity)
	}
}

func TestIdentityDirectory_lookups(t *testing.T) {
	dir := setupDir(t)

	idn := identity.Identity{ID: "id-1", Email: "mike@test.cd", Name: "Mike", Role: identity.RoleStudent}
	if _, err := dir.CreateIdentity(idn); err != nil {
		t.Fatalf("CreateIdentity() failed, %v", err)
	}

	if _, err := dir.GetIdentityByID("lol"); err != identity.ErrNotFound {
		t.Errorf("GetIdentityByID() error = %v, want %v", err, identity.ErrNotFound)
	}
	got, err := dir.GetIdentityByID("id-1")
	if err != nil {
		t.Fatalf("GetIdentityByID() failed, %v", err)
	}
	if got.Email != idn.Email {
		t.Errorf("GetIdentityByID() = %+v", got)
	}

	if _, err := dir.GetIdentityByEmail("nobody@test.cd"); err != identity.ErrNotFound {
		t.Errorf("GetIdentityByEmail() error = %v, want %v", err, identity.ErrNotFound)
	}
	got, err = dir.GetIdentityByEmail("MIKE@Test.CD")
	if err != nil {
		t.Fatalf("GetIdentityByEmail() failed, %v", err)
	}
	if got.ID != "id-1" {
		t.Errorf("GetIdentityByEmail() = %+v", got)
	}

	all, err := dir.QueryAllIdentities()
	if err != nil {
		t.Fatalf("QueryAllIdentities() failed, %v", err)
	}
	if len(all) != 1 {
		t.Errorf("len = %d, want 1", len(all))
	}
}

func TestIdentityDirectory_UpdateIdentity(t *testing.T) {
	dir := setupDir(t)

	if _, err := dir.UpdateIdentity(identity.Identity{ID: "lol"}); err != identity.ErrNotFound {
		t.Fatalf("UpdateIdentity() error = %v, want %v", err, identity.ErrNotFound)
	}

	idn := identity.Identity{ID: "id-1", Email: "mike@test.cd", Name: "Mike", Role: identity.RoleStudent}
	if _, err := dir.CreateIdentity(idn); err != nil {
		t.Fatalf("CreateIdentity() failed, %v", err)
	}

	// unset fields keep their stored value
	got, err := dir.UpdateIdentity(identity.Identity{ID: "id-1", Name: "Michael", Verified: true})
	if err != nil {
		t.Fatalf("UpdateIdentity() failed, %v", err)
	}
	if got.Name != "Michael" {
		t.Errorf("name = %q, want Michael", got.Name)
	}
	if got.Email != "mike@test.cd" || got.Role != identity.RoleStudent {
		t.Errorf("unset fields overwritten, %+v", got)
	}
	if !got.Verified {
		t.Error("verified flag not saved")
	}
}
