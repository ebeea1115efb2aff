package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"SyncProject/logger"
	"SyncProject/module/sim"
	"SyncProject/module/syncengine"
	"SyncProject/service/syncclient"
)

type clientFlags struct {
	url      string
	channel  string
	addEvery time.Duration
	report   time.Duration
	runFor   time.Duration
	level    string
}

var colors = []string{"#e4572e", "#29335c", "#f3a712", "#a8c686", "#669bbc"}

func main() {
	f := &clientFlags{}
	cmd := &cobra.Command{
		Use:           "syncclient",
		Short:         "Join a channel and run the shared simulation headless",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), f)
		},
	}
	cmd.Flags().StringVarP(&f.url, "url", "u", "ws://127.0.0.1:7071/ws", "server websocket url")
	cmd.Flags().StringVarP(&f.channel, "channel", "c", "", "channel id to join (required)")
	cmd.Flags().DurationVar(&f.addEvery, "add-every", 0, "add a random body at this interval once live")
	cmd.Flags().DurationVar(&f.report, "report", 5*time.Second, "log world state at this interval")
	cmd.Flags().DurationVar(&f.runFor, "for", 0, "exit after this long (0 runs until interrupted)")
	cmd.Flags().StringVar(&f.level, "log-level", "info", "log level")
	_ = cmd.MarkFlagRequired("channel")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "syncclient:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, f *clientFlags) error {
	defer logger.Sync()
	if err := logger.SetLevel(f.level); err != nil {
		return err
	}
	log := logger.Named("syncclient")

	if f.runFor > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.runFor)
		defer cancel()
	}

	world := sim.New(sim.Config{})
	cli, err := syncclient.Dial(ctx, syncclient.Config{
		URL:       f.url,
		ChannelID: f.channel,
		Engine: syncengine.Config{
			OnStatus: func(s string) { log.Info("status", zap.String("status", s)) },
		},
	}, world)
	if err != nil {
		return err
	}
	defer cli.Close()

	var addC <-chan time.Time
	if f.addEvery > 0 {
		t := time.NewTicker(f.addEvery)
		defer t.Stop()
		addC = t.C
	}
	report := time.NewTicker(f.report)
	defer report.Stop()
	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-cli.Done():
			return errors.New("connection closed")
		case <-addC:
			x, y := rnd.Float64()*10-5, 5+rnd.Float64()*5
			if err := cli.AddBody(x, y, colors[rnd.Intn(len(colors))]); err != nil {
				if errors.Is(err, syncclient.ErrNotLive) {
					continue
				}
				return err
			}
		case <-report.C:
			eng := cli.Engine()
			clk := eng.Clock()
			log.Info("world",
				zap.String("clientId", cli.ClientID()),
				zap.String("status", eng.Status()),
				zap.Uint64("steps", world.Steps()),
				zap.Int("bodies", len(eng.Bodies())),
				zap.Int("pending", eng.Pending()),
				zap.Int64("serverLatencyMs", clk.ServerLatency()),
				zap.String("checksum", fmt.Sprintf("%016x", world.Checksum())))
		}
	}
}
