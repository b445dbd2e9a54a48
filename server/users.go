package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "List registered users",
	RunE:  runUsers,
}

var adminCmd = &cobra.Command{
	Use:   "admin <username>",
	Short: "Grant or revoke admin rights",
	Args:  cobra.ExactArgs(1),
	RunE:  runAdmin,
}

var revoke bool

func init() {
	rootCmd.AddCommand(usersCmd, adminCmd)
	adminCmd.Flags().BoolVar(&revoke, "revoke", false, "remove admin rights instead of granting them")
}

func runUsers(cmd *cobra.Command, args []string) error {
	db, err := openDatabase(cmd.Context())
	if err != nil {
		return err
	}
	users, err := db.ListUsersForAdmin(cmd.Context())
	if err != nil {
		return err
	}
	if len(users) == 0 {
		color.Yellow("No users yet")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tUSERNAME\tEMAIL\tADMIN\tJOINED")
	for _, u := range users {
		admin := ""
		if u.IsAdmin {
			admin = color.GreenString("yes")
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", u.ID, u.Username, u.Email, admin, u.CreatedAt.Format("2006-01-02"))
	}
	return w.Flush()
}

func runAdmin(cmd *cobra.Command, args []string) error {
	db, err := openDatabase(cmd.Context())
	if err != nil {
		return err
	}
	ident, ok, err := db.UserByUsername(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("user not found: %s", args[0])
	}
	if err := db.SetAdmin(cmd.Context(), ident.UserID, !revoke); err != nil {
		return err
	}
	if revoke {
		color.Yellow("Revoked admin rights from %s", ident.Username)
	} else {
		color.Green("Granted admin rights to %s", ident.Username)
	}
	return nil
}
