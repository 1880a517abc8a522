// mockapi 在本地启动内存版博客后端，配合 blogkit 命令行调试。
package main

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/kochabx/blogkit/app"
	"github.com/kochabx/blogkit/config"
	"github.com/kochabx/blogkit/internal/mockapi"
	"github.com/kochabx/blogkit/log"
	transporthttp "github.com/kochabx/blogkit/transport/http"
)

type settings struct {
	Addr    string                      `mapstructure:"addr" default:":8080"`
	Mock    mockapi.Config              `mapstructure:"mock"`
	Log     log.Config                  `mapstructure:"log"`
	Metrics transporthttp.MetricsOption `mapstructure:"metrics"`
	Health  transporthttp.HealthOption  `mapstructure:"health"`
	// Users 启动时创建的账号，方便直接登录
	Users []seedUser `mapstructure:"users"`
}

type seedUser struct {
	Name     string `mapstructure:"name"`
	Email    string `mapstructure:"email" validate:"required,email"`
	Password string `mapstructure:"password" validate:"required"`
}

func main() {
	if err := newCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newCmd() *cobra.Command {
	var configFile, addr string
	cmd := &cobra.Command{
		Use:          "mockapi",
		Short:        "Run the in-memory blog backend",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s := &settings{}
			// 开发用密钥，配置文件或 MOCKAPI_MOCK_JWT_SECRET 可以覆盖
			s.Mock.JWT.Secret = "blogkit-dev-secret"
			s.Metrics.Enabled, s.Metrics.GoRuntime = true, true
			s.Health.Enabled = true

			opts := []config.Option{config.WithEnvPrefix("MOCKAPI"), config.WithDotenv()}
			if configFile != "" {
				opts = append(opts, config.WithFile(filepath.Base(configFile), filepath.Dir(configFile)))
			} else {
				opts = append(opts, config.WithFile("mockapi.yaml", "."))
			}
			if err := config.New(s, opts...).Load(); err != nil {
				return err
			}
			if addr != "" {
				s.Addr = addr
			}
			return run(cmd.Context(), s)
		},
	}
	cmd.Flags().StringVarP(&configFile, "config", "c", "", "config file, defaults to ./mockapi.yaml")
	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides addr")
	return cmd
}

func run(ctx context.Context, s *settings) error {
	logger, err := log.FromConfig(s.Log)
	if err != nil {
		return err
	}
	gin.SetMode(gin.ReleaseMode)

	reg := prometheus.NewRegistry()
	backend, err := mockapi.New(&s.Mock,
		mockapi.WithLogger(logger.Component("mockapi")),
		mockapi.WithRegisterer(reg),
	)
	if err != nil {
		_ = logger.Close()
		return err
	}
	for _, u := range s.Users {
		if _, err := backend.SeedUser(u.Name, u.Email, u.Password); err != nil {
			logger.Warn().Err(err).Str("email", u.Email).Msg("seed user skipped")
		}
	}

	srv := transporthttp.NewServer(s.Addr, backend.Handler(),
		transporthttp.WithMeta(transporthttp.Meta{Name: "mockapi"}),
		transporthttp.WithLogger(logger),
		transporthttp.WithMetricsOptions(s.Metrics, reg),
		transporthttp.WithHealthOptions(s.Health),
	)

	return app.New(
		app.WithContext(ctx),
		app.WithLogger(logger),
		app.WithShutdownTimeout(10*time.Second),
		app.WithServer(srv),
		app.WithClose("logger", func(context.Context) error { return logger.Close() }, time.Second),
	).Start()
}
