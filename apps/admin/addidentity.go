package main

import (
	"github.com/Evian1k/school12k/core/identity"
)

// addIdentity creates a verified account directly, bypassing code verification.
func (cli *commandLine) addIdentity(email, name string, role identity.Role, pwd string) error {
	_, err := cli.idSvc.CreateVerified(identity.NewIdentity{
		Email:           email,
		Name:            name,
		Role:            role,
		Password:        pwd,
		PasswordConfirm: pwd,
	})
	return err
}
