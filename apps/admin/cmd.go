package main

import (
	"errors"
	"flag"
	"fmt"
	"syscall"

	"golang.org/x/term"

	"github.com/Evian1k/school12k/core/identity"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	idSvc identity.Service
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  addidentity -email EMAIL -name NAME -role ROLE - create a verified account. The password will be prompted next.")
	fmt.Println("  seed                                           - create the default accounts")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addIdentityCmd := flag.NewFlagSet("addidentity", flag.ExitOnError)
	addIdentityEmail := addIdentityCmd.String("email", "", "The account's email.")
	addIdentityName := addIdentityCmd.String("name", "", "The account's display name.")
	addIdentityRole := addIdentityCmd.String("role", "", "One of: admin, teacher, student, guardian.")

	switch args[1] {
	case "addidentity":
		if err := addIdentityCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addIdentityEmail == "" || *addIdentityName == "" {
			addIdentityCmd.Usage()
			return errHelp
		}
		role := identity.Role(*addIdentityRole)
		if !role.Valid() {
			addIdentityCmd.Usage()
			return errHelp
		}
		fmt.Print("Enter password:")
		pwd, err := readPasswordFunc(syscall.Stdin)
		fmt.Println()
		if err != nil {
			return err
		}
		return cli.addIdentity(*addIdentityEmail, *addIdentityName, role, string(pwd))
	case "seed":
		return cli.seed()
	default:
		cli.printUsage()
		return errHelp
	}
}
