package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"SyncProject/global"
	"SyncProject/global/config"
	"SyncProject/logger"
	mid "SyncProject/middleware"
	"SyncProject/service/chat"
	"SyncProject/service/chat/handlers"
	"SyncProject/tools/safe"
)

type serverFlags struct {
	config string
	port   int
	nacos  bool
}

func main() {
	f := &serverFlags{}
	cmd := &cobra.Command{
		Use:           "syncserver",
		Short:         "Channel broadcast server for lockstep simulation clients",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), f, cmd.Flags().Changed("port"))
		},
	}
	cmd.Flags().StringVarP(&f.config, "config", "c", "", "YAML config file")
	cmd.Flags().IntVarP(&f.port, "port", "p", 0, "listen port (overrides config and WS_PORT)")
	cmd.Flags().BoolVar(&f.nacos, "nacos", false, "overlay and watch the config stored in nacos")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "syncserver:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, f *serverFlags, portSet bool) error {
	defer logger.Sync()

	c, err := config.Load(f.config)
	if err != nil {
		return err
	}
	if portSet {
		c.Server.Port = f.port
	}
	if f.nacos || c.Nacos.Enabled {
		cli, err := config.NewNacosClient(c.Nacos)
		if err != nil {
			return err
		}
		w := config.NewWatcher(cli, c)
		if c, err = w.Start(); err != nil {
			return err
		}
		defer w.Stop()
	}

	rt, err := global.ConfigAll(ctx, c)
	if err != nil {
		return err
	}

	srv := chat.NewServer(rt.ServerOptions())
	handlers.RegisterAll(srv)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	mid.Manager().Add(mid.Origin(c.Server.AllowedOrigins))
	if c.Server.AccessLog {
		mid.Manager().Add(mid.AccessLog(logger.Named("http")))
	}
	r.Use(mid.Manager().Use())
	srv.Routes(r)

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", c.Server.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 2)
	safe.SafeGo("http.serve", func() {
		logger.Info("http listening", zap.String("addr", httpSrv.Addr), zap.String("gatewayId", rt.GatewayID))
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	})

	var gs *grpc.Server
	if c.Grpc.Addr != "" {
		lis, err := net.Listen("tcp", c.Grpc.Addr)
		if err != nil {
			return err
		}
		gs = grpc.NewServer()
		hs := health.NewServer()
		healthpb.RegisterHealthServer(gs, hs)
		hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
		hs.SetServingStatus("sync.Channel", healthpb.HealthCheckResponse_SERVING)
		safe.SafeGo("grpc.serve", func() {
			logger.Info("grpc health listening", zap.String("addr", c.Grpc.Addr))
			if err := gs.Serve(lis); err != nil {
				errCh <- err
			}
		})
	}

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err = <-errCh:
		logger.Error("listener failed", zap.Error(err))
	}

	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if gs != nil {
		gs.GracefulStop()
	}
	if serr := httpSrv.Shutdown(sctx); serr != nil {
		logger.Warn("http shutdown", zap.Error(serr))
	}
	if serr := srv.Shutdown(sctx); serr != nil {
		logger.Warn("session shutdown", zap.Error(serr))
	}
	if serr := rt.Close(sctx); serr != nil {
		logger.Warn("runtime close", zap.Error(serr))
	}
	return err
}
