package main

import (
	"context"
	"encoding/json"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kochabx/blogkit/client"
	"github.com/kochabx/blogkit/config"
)

type rootOptions struct {
	configFile string
	baseURL    string
	storage    string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	o := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "blogkit",
		Short:         "Command line client for the blog API",
		SilenceUsage:  true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&o.configFile, "config", "c", "", "config file, defaults to ./blogkit.yaml or $HOME/.blogkit/blogkit.yaml")
	flags.StringVar(&o.baseURL, "base-url", "", "override api.base_url")
	flags.StringVar(&o.storage, "storage", "", "override storage.driver (memory, db, redis, etcd, mongo)")
	flags.StringVar(&o.logLevel, "log-level", "", "override log.level")

	cmd.AddCommand(
		newLoginCmd(o),
		newLogoutCmd(o),
		newStatusCmd(o),
		newWhoamiCmd(o),
		newSearchCmd(o),
		newCategoriesCmd(o),
		newBlogsCmd(o),
		newReactCmd(o),
		newWatchCmd(o),
	)
	return cmd
}

func (o *rootOptions) settings() (*client.Settings, error) {
	var opts []config.Option
	if o.configFile != "" {
		opts = append(opts, config.WithFile(filepath.Base(o.configFile), filepath.Dir(o.configFile)))
	}
	s, _, err := client.LoadSettings(opts...)
	if err != nil {
		return nil, err
	}

	if o.baseURL != "" {
		s.API.BaseURL = o.baseURL
	}
	if o.storage != "" {
		s.Storage.Driver = o.storage
	}
	if o.logLevel != "" {
		s.Log.Level = o.logLevel
	}
	return s, nil
}

func (o *rootOptions) client(ctx context.Context) (*client.Client, error) {
	s, err := o.settings()
	if err != nil {
		return nil, err
	}
	return client.New(ctx, s)
}

// withClient 打开客户端执行 fn，结束后关闭
func (o *rootOptions) withClient(cmd *cobra.Command, fn func(*client.Client) error) error {
	c, err := o.client(cmd.Context())
	if err != nil {
		return err
	}
	defer c.Close()
	return fn(c)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
