package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/gardenhub/shoot-events/config"
	"github.com/gardenhub/shoot-events/globals"
	"github.com/gardenhub/shoot-events/persistence"
	"github.com/gardenhub/shoot-events/types"
	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// A very simple CLI tool for the administration of projects, project members
// and administrators.

var (
	configPath = pflag.StringP("config", "c", "", "path to config file or directory")
)

func main() {
	log.SetFlags(0)

	flagSet := config.GetFlagSet()
	pflag.CommandLine.AddFlagSet(flagSet)

	pflag.Parse()

	globalConfig, err := config.ReadConfiguration(*configPath, flagSet)
	if err != nil {
		panic(err)
	}

	globals.AppLogger.SetLevel(hclog.LevelFromString(globalConfig.LogLevel))

	store, err := persistence.NewGormStore(globalConfig)
	if err != nil {
		panic(err)
	}
	if store == nil {
		panic("no persistence configured")
	}
	defer store.Close()

	ctx := context.Background()

	var cmdShow = &cobra.Command{
		Use:   "show",
		Short: "Show projects or administrators",
		Args:  cobra.MinimumNArgs(0),
	}
	var cmdShowProjects = &cobra.Command{
		Use:   "projects",
		Short: "Show projects",
		Long:  `show projects lists all projects including their members.`,
		Args:  cobra.MinimumNArgs(0),
		Run: func(cmd *cobra.Command, args []string) {
			projects, err := store.ListAllProjects(ctx)
			if err != nil {
				globals.AppLogger.Error("could not get projects", "error", err)
				return
			}
			p, err := json.Marshal(projects)
			if err != nil {
				globals.AppLogger.Error("could not marshal projects", "error", err)
				return
			}
			fmt.Println(string(p))
		},
	}
	var cmdShowAdmins = &cobra.Command{
		Use:   "admins",
		Short: "Show administrators",
		Long:  `show admins lists all administrator e-mails.`,
		Args:  cobra.MinimumNArgs(0),
		Run: func(cmd *cobra.Command, args []string) {
			admins, err := store.ListAdministrators(ctx)
			if err != nil {
				globals.AppLogger.Error("could not get administrators", "error", err)
				return
			}
			a, err := json.Marshal(admins)
			if err != nil {
				globals.AppLogger.Error("could not marshal administrators", "error", err)
				return
			}
			fmt.Println(string(a))
		},
	}
	var cmdSet = &cobra.Command{
		Use:   "set",
		Short: "create/update a project, member or administrator",
		Args:  cobra.MinimumNArgs(0),
	}
	var cmdSetProject = &cobra.Command{
		Use:   "project [project definition]",
		Short: "Set project",
		Long:  `set project creates or updates a project. If the project definition is "-", the definition is read from STDIN.`,
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			var r io.Reader
			if args[0] == "-" {
				r = os.Stdin
			} else {
				r = bytes.NewReader([]byte(args[0]))
			}
			dec := json.NewDecoder(r)
			project := types.Project{}
			err := dec.Decode(&project)
			if err != nil {
				globals.AppLogger.Error("could not decode project", "error", err)
				return
			}
			if project.Namespace == "" {
				globals.AppLogger.Error("no project namespace")
				return
			}
			err = store.StoreProject(ctx, project)
			if err != nil {
				globals.AppLogger.Error("could not store project", "error", err)
				return
			}
			for _, email := range project.Members {
				if err := store.AddProjectMember(ctx, project.Namespace, email); err != nil {
					globals.AppLogger.Error("could not add project member", "member", email, "error", err)
					return
				}
			}
		},
	}
	var cmdSetMember = &cobra.Command{
		Use:   "member [namespace] [email]",
		Short: "Add project member",
		Long:  `set member adds the given e-mail to the members of the project with the given namespace.`,
		Args:  cobra.MinimumNArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			err := store.AddProjectMember(ctx, args[0], args[1])
			if err != nil {
				globals.AppLogger.Error("could not add project member", "error", err)
				return
			}
		},
	}
	var cmdSetAdmin = &cobra.Command{
		Use:   "admin [email]",
		Short: "Add administrator",
		Long:  `set admin grants administrator rights to the given e-mail.`,
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			err := store.StoreAdministrator(ctx, args[0])
			if err != nil {
				globals.AppLogger.Error("could not store administrator", "error", err)
				return
			}
		},
	}
	var cmdImport = &cobra.Command{
		Use:   "import",
		Short: "import journal data",
		Args:  cobra.MinimumNArgs(0),
	}
	var cmdImportIssues = &cobra.Command{
		Use:   "issues [issues definition]",
		Short: "Import issues",
		Long:  `import issues creates or updates issues and their comments from a JSON array of {issue, comments} objects. If the definition is "-", it is read from STDIN. The server picks up imported issues with its next journal sync.`,
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			var r io.Reader
			if args[0] == "-" {
				r = os.Stdin
			} else {
				r = bytes.NewReader([]byte(args[0]))
			}
			dec := json.NewDecoder(r)
			imports := make([]types.IssueImport, 0)
			err := dec.Decode(&imports)
			if err != nil {
				globals.AppLogger.Error("could not decode issues", "error", err)
				return
			}
			for _, imp := range imports {
				if imp.Issue.Number == 0 {
					globals.AppLogger.Error("issue without a number, skipping", "title", imp.Issue.Title)
					continue
				}
				if err := store.StoreIssue(ctx, imp.Issue); err != nil {
					globals.AppLogger.Error("could not store issue", "issue", imp.Issue.Number, "error", err)
					return
				}
				for _, comment := range imp.Comments {
					if comment.Number == 0 {
						comment.Number = imp.Issue.Number
					}
					if err := store.StoreComment(ctx, comment); err != nil {
						globals.AppLogger.Error("could not store comment", "issue", imp.Issue.Number, "comment", comment.Id, "error", err)
						return
					}
				}
			}
		},
	}
	var cmdDelete = &cobra.Command{
		Use:   "delete",
		Short: "delete a member or administrator",
		Args:  cobra.MinimumNArgs(0),
	}
	var cmdDeleteMember = &cobra.Command{
		Use:   "member [namespace] [email]",
		Short: "Remove project member",
		Long:  `delete member removes the given e-mail from the members of the project with the given namespace.`,
		Args:  cobra.MinimumNArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			err := store.RemoveProjectMember(ctx, args[0], args[1])
			if err != nil {
				globals.AppLogger.Error("could not remove project member", "error", err)
				return
			}
		},
	}
	var cmdDeleteAdmin = &cobra.Command{
		Use:   "admin [email]",
		Short: "Remove administrator",
		Long:  `delete admin revokes administrator rights from the given e-mail.`,
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			err := store.RemoveAdministrator(ctx, args[0])
			if err != nil {
				globals.AppLogger.Error("could not remove administrator", "error", err)
				return
			}
		},
	}

	var rootCmd = &cobra.Command{Use: "shoot-events-admin"}
	rootCmd.AddCommand(cmdShow, cmdSet, cmdImport, cmdDelete)
	cmdShow.AddCommand(cmdShowProjects, cmdShowAdmins)
	cmdSet.AddCommand(cmdSetProject, cmdSetMember, cmdSetAdmin)
	cmdImport.AddCommand(cmdImportIssues)
	cmdDelete.AddCommand(cmdDeleteMember, cmdDeleteAdmin)
	if err := rootCmd.Execute(); err != nil {
		globals.AppLogger.Error("could not execute command", "error", err)
	}
}
