package main

import (
	"log"
	"os"
	"testing"

	"github.com/Evian1k/school12k/core/identity"
	"github.com/Evian1k/school12k/storage/database/dummydb"
)

var idSvc identity.Service

func setup(t *testing.T) *commandLine {
	t.Helper()
	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags)

	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("dummydb.Open() failed, %v", err)
	}
	idSvc = identity.NewService(dummydb.NewIdentityDirectory(db))
	return &commandLine{idSvc: idSvc}
}

type cliTest struct {
	name    string
	args    []string // without program name
	wantErr error
	extra   interface{}
}

func Test_commandLine_addIdentity(t *testing.T) {
	cli := setup(t)

	type extra struct {
		pwd string
	}
	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no args", args: []string{"addidentity"}, wantErr: errHelp},
		{name: "missing name", args: []string{"addidentity", "-email", "awe@test.cd", "-role", "admin"}, wantErr: errHelp},
		{name: "bad role", args: []string{"addidentity", "-email", "awe@test.cd", "-name", "Awe", "-role", "boss"}, wantErr: errHelp},
		{name: "ok", args: []string{"addidentity", "-email", "awe@test.cd", "-name", "Awe", "-role", "teacher"}, extra: extra{pwd: "Tr0ub4dor&3"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		readPasswordFunc = func(fd int) ([]byte, error) {
			if extra, ok := tt.extra.(extra); ok {
				return []byte(extra.pwd), nil
			}
			return nil, nil
		}

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			if err == nil {
				idn, err := idSvc.FindByEmail("awe@test.cd")
				if err != nil {
					t.Fatalf("FindByEmail() failed, %v", err)
				}
				if !idn.Verified {
					t.Error("account not verified")
				}
				if idn.Role != identity.RoleTeacher {
					t.Errorf("role = %s, want %s", idn.Role, identity.RoleTeacher)
				}
				if err := idn.CheckPassword("Tr0ub4dor&3"); err != nil {
					t.Error("failed to set password")
				}
			} else if err != tt.wantErr {
				t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func Test_commandLine_seed(t *testing.T) {
	cli := setup(t)

	if err := cli.run([]string{"admin", "seed"}); err != nil {
		t.Fatalf("cli.run() error = %v", err)
	}
	for _, ni := range defaultIdentities {
		idn, err := idSvc.FindByEmail(ni.Email)
		if err != nil {
			t.Errorf("FindByEmail(%s) failed, %v", ni.Email, err)
			continue
		}
		if !idn.Verified {
			t.Errorf("%s not verified", ni.Email)
		}
		if idn.Role != ni.Role {
			t.Errorf("%s role = %s, want %s", ni.Email, idn.Role, ni.Role)
		}
	}

	// seeding again is a no-op
	if err := cli.run([]string{"admin", "seed"}); err != nil {
		t.Fatalf("second cli.run() error = %v", err)
	}
	all, err := idSvc.QueryAll()
	if err != nil {
		t.Fatalf("QueryAll() failed, %v", err)
	}
	if len(all) != len(defaultIdentities) {
		t.Errorf("identity count = %d, want %d", len(all), len(defaultIdentities))
	}
}
