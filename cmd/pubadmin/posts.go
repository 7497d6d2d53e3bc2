package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/eringen/pubadmin"
)

func postsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "posts",
		Short: "List, show, create and delete posts",
	}
	cmd.AddCommand(postsListCmd())
	cmd.AddCommand(postsShowCmd())
	cmd.AddCommand(postsNewCmd())
	cmd.AddCommand(postsDeleteCmd())
	return cmd
}

// withStore runs fn against the configured store.
func withStore(cmd *cobra.Command, fn func(ctx context.Context, s pubadmin.PostStore) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	store, closeFn, err := connect(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = closeFn() }()
	return fn(ctx, store)
}

func postsListCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List posts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(ctx context.Context, s pubadmin.PostStore) error {
				refs, err := s.List(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if asJSON {
					enc := json.NewEncoder(out)
					enc.SetIndent("", "  ")
					return enc.Encode(refs)
				}
				w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "KEY\tREVISION\tTITLE")
				for _, r := range refs {
					fmt.Fprintf(w, "%s\t%s\t%s\n", r.Key, r.Revision, r.Title)
				}
				return w.Flush()
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func postsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <key>",
		Short: "Print a post as a frontmatter document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(ctx context.Context, s pubadmin.PostStore) error {
				p, err := s.Read(ctx, pubadmin.PostRef{Key: args[0]})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "revision %s\n", p.Revision)
				_, err = io.WriteString(cmd.OutOrStdout(), pubadmin.SerializePost(p.Title, p.Tags, p.Body))
				return err
			})
		},
	}
}

func postsNewCmd() *cobra.Command {
	var title, tags, bodyFile string
	cmd := &cobra.Command{
		Use:   "new",
		Short: "Create a post",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := readBody(cmd.InOrStdin(), bodyFile)
			if err != nil {
				return err
			}
			d := pubadmin.Draft{Title: title, Body: body, TagsText: tags}
			if err := pubadmin.ValidateDraft(d); err != nil {
				return err
			}
			return withStore(cmd, func(ctx context.Context, s pubadmin.PostStore) error {
				p, err := s.Create(ctx, d)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created %s (revision %s)\n", p.Key, p.Revision)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "Post title")
	cmd.Flags().StringVar(&tags, "tags", "", "Comma separated tags")
	cmd.Flags().StringVar(&bodyFile, "body-file", "-", "File holding the markdown body (- for stdin)")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func postsDeleteCmd() *cobra.Command {
	var revision string
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete <key>",
		Short: "Delete a post",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("refusing to delete without --yes")
			}
			return withStore(cmd, func(ctx context.Context, s pubadmin.PostStore) error {
				ref := pubadmin.PostRef{Key: args[0], Revision: revision}
				if ref.Revision == "" {
					p, err := s.Read(ctx, ref)
					if err != nil {
						return err
					}
					ref = p.Ref()
				}
				if err := s.Delete(ctx, ref); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", ref.Key)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&revision, "revision", "", "Expected revision (default: the current one)")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Confirm the deletion")
	return cmd
}

func readBody(stdin io.Reader, name string) (string, error) {
	var (
		b   []byte
		err error
	)
	if name == "" || name == "-" {
		b, err = io.ReadAll(stdin)
	} else {
		b, err = os.ReadFile(name)
	}
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	body := strings.TrimRight(string(b), "\n")
	if body == "" {
		return "", nil
	}
	return body + "\n", nil
}
