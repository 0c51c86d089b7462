package main

import (
	"errors"
	"fmt"
	"io"
	"syscall"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/trezcool/masomo-chat/core/chat"
	"github.com/trezcool/masomo-chat/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db       *sqlx.DB
	usrRepo  user.Repository
	chatRepo chat.Repository
	out      io.Writer
}

func (cli *commandLine) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "admin",
		Short:         "Masomo chat administration",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = cmd.Usage()
			return errHelp
		},
	}
	root.AddCommand(cli.migrateCmd(), cli.addUserCmd(), cli.resetPasswordCmd(), cli.roomsCmd())
	return root
}

func (cli *commandLine) run(args []string) error {
	root := cli.rootCmd()
	root.SetOut(cli.out)
	root.SetErr(cli.out)
	if len(args) > 0 {
		args = args[1:] // drop program name
	}
	root.SetArgs(args)
	return root.Execute()
}

// promptPassword reads a password from the terminal without echoing it.
func (cli *commandLine) promptPassword(cmd *cobra.Command) (string, error) {
	_, _ = fmt.Fprint(cli.out, "Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	_, _ = fmt.Fprintln(cli.out)
	if err != nil {
		return "", err
	}
	if len(pwd) == 0 {
		_ = cmd.Usage()
		return "", errHelp
	}
	return string(pwd), nil
}
