package main

import (
	"github.com/Evian1k/school12k/core/identity"
)

var defaultIdentities = []identity.NewIdentity{
	{Email: "admin@school.com", Name: "John Admin", Role: identity.RoleAdmin},
	{Email: "teacher@school.com", Name: "Sarah Teacher", Role: identity.RoleTeacher},
	{Email: "student@school.com", Name: "Mike Student", Role: identity.RoleStudent},
	{Email: "parent@school.com", Name: "Lisa Parent", Role: identity.RoleGuardian},
}

// seed creates the default accounts, skipping the ones that already exist.
func (cli *commandLine) seed() error {
	for _, ni := range defaultIdentities {
		if err := cli.idSvc.CheckEmailUniqueness(ni.Email); err != nil {
			continue
		}
		if _, err := cli.idSvc.CreateVerified(ni); err != nil {
			return err
		}
		logger.Printf("created %s account %s", ni.Role, ni.Email)
	}
	return nil
}
