// cmd/revview/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"revview/internal/config"
	"revview/internal/content"
	"revview/internal/filetree"
	"revview/internal/identity"
	"revview/internal/review"
	"revview/internal/session"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	logger, _  = zap.NewDevelopment()
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "revview",
	Short: "revview browses code review changes from the terminal",
	Long: `revview fetches a change from the review service, shows its files as a
collapsed tree and resolves the virtual documents a diff viewer opens.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.json", "path to the config file")

	var treeCmd = &cobra.Command{
		Use:   "tree <change>",
		Short: "Show the files of a change as a tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, closeFn, err := openSession()
			if err != nil {
				return err
			}
			defer closeFn()

			change, err := s.Change(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if change == nil {
				fmt.Println("Change not available")
				return nil
			}
			items, err := s.Tree(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			color.New(color.Bold).Println(change.Label())
			fmt.Println(change.Description())
			printTree(items, "")
			return nil
		},
	}

	var uriCmd = &cobra.Command{
		Use:   "uri <change> <path>",
		Short: "Print the document URIs of both diff sides of a file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, closeFn, err := openSession()
			if err != nil {
				return err
			}
			defer closeFn()

			uris, err := s.DiffURIs(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Println(uris.Title)
			if uris.Old == "" {
				fmt.Printf("old: %s\n", color.YellowString("(base unavailable)"))
			} else {
				fmt.Printf("old: %s\n", uris.Old)
			}
			if uris.LocalNew {
				fmt.Printf("new: %s %s\n", uris.New, color.GreenString("(local)"))
			} else {
				fmt.Printf("new: %s\n", uris.New)
			}
			return nil
		},
	}

	var showCmd = &cobra.Command{
		Use:   "show <token|uri>",
		Short: "Print the content a token or virtual URI addresses",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, closeFn, err := openSession()
			if err != nil {
				return err
			}
			defer closeFn()

			token := args[0]
			if strings.HasPrefix(token, content.URIScheme+":") {
				id, err := content.ParseVirtualURI(token)
				if err != nil {
					return err
				}
				token = identity.MustEncode(id)
			}

			blob, err := s.Content(cmd.Context(), token)
			if err != nil {
				return err
			}
			if blob == nil {
				return fmt.Errorf("content not available")
			}
			if blob.IsEmpty() {
				color.New(color.Faint).Println("(no content on this side)")
				return nil
			}
			_, err = os.Stdout.Write(blob.Buffer)
			return err
		},
	}

	var commentsCmd = &cobra.Command{
		Use:   "comments <change>",
		Short: "List the comments and drafts on a change",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, closeFn, err := openSession()
			if err != nil {
				return err
			}
			defer closeFn()

			threads, err := s.Comments(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if len(threads) == 0 {
				fmt.Println("No comments")
				return nil
			}
			printComments(threads)
			return nil
		},
	}

	var (
		project, change, commit, path, side string
		base                                int
	)
	var tokenCmd = &cobra.Command{
		Use:   "token",
		Short: "Encode a file identity into a token",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := identity.ParseSide(strings.ToUpper(side))
			if err != nil {
				return err
			}
			id := identity.FileIdentity{Project: project, ChangeID: change, Commit: commit, FilePath: path, Side: s}
			if base > 0 {
				id.BaseRevision = identity.Revision(base)
			}
			token, err := identity.Encode(id)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
	tokenCmd.Flags().StringVar(&project, "project", "", "project name")
	tokenCmd.Flags().StringVar(&change, "change", "", "change id")
	tokenCmd.Flags().StringVar(&commit, "commit", "", "commit sha, empty for no content")
	tokenCmd.Flags().StringVar(&path, "path", "", "file path")
	tokenCmd.Flags().StringVar(&side, "side", "", "diff side: BOTH, BASE, LEFT or RIGHT")
	tokenCmd.Flags().IntVar(&base, "base", 0, "base patch set")
	tokenCmd.MarkFlagRequired("path")

	rootCmd.AddCommand(treeCmd, uriCmd, showCmd, commentsCmd, tokenCmd)
}

func openSession() (*session.Session, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	s, closeFn, err := session.Open(cfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("opening session: %w", err)
	}
	return s, closeFn, nil
}

func printTree(items []filetree.Item[review.ChangedFile], indent string) {
	folder := color.New(color.FgBlue, color.Bold).SprintFunc()
	added := color.New(color.FgGreen).SprintFunc()
	deleted := color.New(color.FgRed).SprintFunc()
	other := color.New(color.FgYellow).SprintFunc()

	for _, item := range items {
		if item.Kind == filetree.FolderItem {
			fmt.Printf("%s%s/\n", indent, folder(item.Name))
			printTree(item.Children, indent+"  ")
			continue
		}

		f := item.Record
		var status string
		switch f.Status {
		case review.StatusAdded:
			status = added(f.Status.Letter())
		case review.StatusDeleted:
			status = deleted(f.Status.Letter())
		default:
			status = other(f.Status.Letter())
		}
		fmt.Printf("%s%s %s  +%d -%d\n", indent, status, item.Name, f.LinesInserted, f.LinesDeleted)
	}
}

func printComments(threads []session.Thread) {
	path := color.New(color.FgCyan, color.Bold)
	author := color.New(color.Bold).SprintFunc()
	draft := color.New(color.FgYellow).SprintFunc()

	current := ""
	for _, t := range threads {
		if t.FilePath != current {
			current = t.FilePath
			fmt.Println()
			path.Println(current)
		}
		label := ""
		if l := t.Label(); l != "" {
			label = " " + draft("["+l+"]")
		}
		fmt.Printf("  %s%s line %d (%s)\n", author(t.AuthorName), label, t.Line, t.Handle)
		for _, line := range strings.Split(t.Body(), "\n") {
			fmt.Printf("    %s\n", line)
		}
	}
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
