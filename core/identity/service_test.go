package identity_test

import (
	"testing"

	"github.com/Evian1k/school12k/core"
	"github.com/Evian1k/school12k/core/identity"
	"github.com/Evian1k/school12k/storage/database/dummydb"
)

func setupService(t *testing.T) identity.Service {
	t.Helper()
	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("dummydb.Open() failed, %v", err)
	}
	return identity.NewService(dummydb.NewIdentityDirectory(db))
}

func TestService_Register(t *testing.T) {
	svc := setupService(t)

	pending, err := svc.Register(identity.NewIdentity{Email: " Mike@Test.CD ", Name: " Mike ", Role: identity.RoleStudent})
	if err != nil {
		t.Fatalf("Register() failed, %v", err)
	}
	if pending.ID == "" {
		t.Error("no ID assigned")
	}
	if pending.Email != "mike@test.cd" {
		t.Errorf("email = %q, want cleaned and lowered", pending.Email)
	}
	if pending.Name != "Mike" {
		t.Errorf("name = %q, want cleaned", pending.Name)
	}
	if pending.Verified {
		t.Error("pending identity must not be verified")
	}

	// pending identities are not durable
	if _, err := svc.FindByEmail("mike@test.cd"); err != identity.ErrNotFound {
		t.Errorf("FindByEmail() error = %v, want %v", err, identity.ErrNotFound)
	}
	if _, err := svc.GetByID(pending.ID); err != identity.ErrNotFound {
		t.Errorf("GetByID() error = %v, want %v", err, identity.ErrNotFound)
	}
}

func TestService_Materialize(t *testing.T) {
	svc := setupService(t)

	pending, err := svc.Register(identity.NewIdentity{Email: "mike@test.cd", Name: "Mike", Role: identity.RoleStudent})
	if err != nil {
		t.Fatalf("Register() failed, %v", err)
	}
	idn, err := svc.Materialize(pending)
	if err != nil {
		t.Fatalf("Materialize() failed, %v", err)
	}
	if !idn.Verified {
		t.Error("materialized identity not verified")
	}

	durable, err := svc.FindByEmail("mike@test.cd")
	if err != nil {
		t.Fatalf("FindByEmail() failed, %v", err)
	}
	if durable.ID != pending.ID {
		t.Errorf("ID = %s, want %s", durable.ID, pending.ID)
	}

	// the email is now taken for registration
	if err := svc.CheckEmailUniqueness("MIKE@test.cd"); err == nil {
		t.Error("CheckEmailUniqueness() passed for a taken email")
	} else if _, ok := err.(*core.ValidationError); !ok {
		t.Errorf("CheckEmailUniqueness() error = %T, want *core.ValidationError", err)
	}
}

func TestService_EnsureVerified(t *testing.T) {
	svc := setupService(t)

	pending, err := svc.Register(identity.NewIdentity{Email: "mike@test.cd", Name: "Mike", Role: identity.RoleStudent})
	if err != nil {
		t.Fatalf("Register() failed, %v", err)
	}
	idn, err := svc.Materialize(pending)
	if err != nil {
		t.Fatalf("Materialize() failed, %v", err)
	}

	// already verified: no-op
	same, err := svc.EnsureVerified(idn)
	if err != nil {
		t.Fatalf("EnsureVerified() failed, %v", err)
	}
	if !same.Verified {
		t.Error("identity lost its verified flag")
	}
}

func TestService_QueryAll(t *testing.T) {
	svc := setupService(t)

	for _, email := range []string{"a@test.cd", "b@test.cd", "c@test.cd"} {
		if _, err := svc.CreateVerified(identity.NewIdentity{Email: email, Name: "T", Role: identity.RoleTeacher}); err != nil {
			t.Fatalf("CreateVerified(%s) failed, %v", email, err)
		}
	}
	all, err := svc.QueryAll()
	if err != nil {
		t.Fatalf("QueryAll() failed, %v", err)
	}
	if len(all) != 3 {
		t.Errorf("len = %d, want 3", len(all))
	}
}
