package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kochabx/blogkit/api"
	"github.com/kochabx/blogkit/app"
	"github.com/kochabx/blogkit/client"
	"github.com/kochabx/blogkit/session"
)

func newLoginCmd(o *rootOptions) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and persist the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv("BLOGKIT_PASSWORD")
			}
			if password == "" {
				p, err := readLine(cmd, "Password: ")
				if err != nil {
					return err
				}
				password = p
			}

			return o.withClient(cmd, func(c *client.Client) error {
				sess, err := c.Login(cmd.Context(), email, password)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "logged in, session expires at %s\n", sess.ExpiresAt.Format(time.RFC3339))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "account email")
	cmd.Flags().StringVarP(&password, "password", "p", "", "account password, falls back to $BLOGKIT_PASSWORD or a prompt")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func readLine(cmd *cobra.Command, prompt string) (string, error) {
	fmt.Fprint(cmd.ErrOrStderr(), prompt)
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func newLogoutCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear the local session and notify the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withClient(cmd, func(c *client.Client) error {
				err := c.Logout(cmd.Context())
				fmt.Fprintln(cmd.OutOrStdout(), "logged out")
				// 本地已经清除，服务端通知失败只提示
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
				}
				return nil
			})
		},
	}
}

func newStatusCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the session state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withClient(cmd, func(c *client.Client) error {
				st := c.Status()
				out := map[string]any{"state": st.State.String()}
				if st.State != session.StateAnonymous {
					out["expiresAt"] = st.ExpiresAt
				}
				return printJSON(cmd.OutOrStdout(), out)
			})
		},
	}
}

func newWhoamiCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withClient(cmd, func(c *client.Client) error {
				u, err := api.Get[api.User](cmd.Context(), c.Cache(), c.API().Me())
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), u)
			})
		},
	}
}

func newSearchCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "search <keyword>",
		Short: "Search blogs, users and categories",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withClient(cmd, func(c *client.Client) error {
				res, err := api.Get[api.SearchResult](cmd.Context(), c.Cache(), c.API().Search(strings.Join(args, " ")))
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			})
		},
	}
}

func newCategoriesCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List categories",
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withClient(cmd, func(c *client.Client) error {
				cats, err := api.Get[[]api.Category](cmd.Context(), c.Cache(), c.API().Categories())
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), cats)
			})
		},
	}
}

func newBlogsCmd(o *rootOptions) *cobra.Command {
	var params api.BlogListParams
	var author string
	cmd := &cobra.Command{
		Use:   "blogs",
		Short: "List blogs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withClient(cmd, func(c *client.Client) error {
				if author != "" {
					blogs, err := api.Get[[]api.Blog](cmd.Context(), c.Cache(), c.API().BlogsByUser(author))
					if err != nil {
						return err
					}
					return printJSON(cmd.OutOrStdout(), blogs)
				}
				page, err := api.Get[api.BlogPage](cmd.Context(), c.Cache(), c.API().Blogs(params))
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), page)
			})
		},
	}
	cmd.Flags().IntVar(&params.Page, "page", 0, "page number, starting at 1")
	cmd.Flags().StringVar(&params.Category, "category", "", "category id or title")
	cmd.Flags().StringVar(&author, "author", "", "list blogs of this user id instead")
	return cmd
}

func newReactCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "react <blog-id> <reaction>",
		Short: "React to a blog",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withClient(cmd, func(c *client.Client) error {
				b, err := c.API().React(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), b.Reactions)
			})
		},
	}
}

// newWatchCmd 常驻运行：定时刷新会话，并打印会话变化和当前用户
func newWatchCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Keep the session fresh and print changes until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := o.client(cmd.Context())
			if err != nil {
				return err
			}
			if c.Refresher() == nil {
				_ = c.Close()
				return errors.New("session.refresh_before is 0, nothing to watch")
			}

			out := cmd.OutOrStdout()
			unsubscribe := c.Session().Store().Subscribe(func(prev, next session.Session) {
				switch {
				case next.IsZero():
					fmt.Fprintln(out, "session cleared")
				case prev.Token != next.Token:
					fmt.Fprintf(out, "session updated, expires at %s\n", next.ExpiresAt.Format(time.RFC3339))
				}
			})

			me, err := c.Cache().Subscribe(c.API().Me())
			if err != nil {
				unsubscribe()
				_ = c.Close()
				return err
			}
			go func() {
				for snap := range me.Updates() {
					if !snap.Settled() {
						continue
					}
					if u, ok := snap.Data.(api.User); ok && snap.Err == nil {
						fmt.Fprintf(out, "user: %s <%s>\n", u.Name, u.Email)
					}
				}
			}()

			application := app.New(
				app.WithContext(cmd.Context()),
				app.WithLogger(c.Logger()),
				app.WithServer(c.Refresher()),
				app.WithClose("client", func(context.Context) error {
					me.Unsubscribe()
					unsubscribe()
					return c.Close()
				}, 5*time.Second),
			)
			return application.Start()
		},
	}
}
