package commands

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/WilliamStanton/vibe-build/internal/peer"
	"github.com/WilliamStanton/vibe-build/internal/protocol"
	"github.com/WilliamStanton/vibe-build/pkg/types"
)

var (
	peerURL       string
	peerName      string
	peerPos       []float64
	peerReconnect bool
	peerStay      bool
	peerDeltas    bool
	peerNoColor   bool
)

var peerCmd = &cobra.Command{
	Use:   "peer [prompt]",
	Short: "Connect a simulated game client",
	Long: `Connect to a running server as a game client, optionally submit a
build request, and answer every action call as a dry run.

The first Ctrl-C cancels the current build, the second one exits.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPeer,
}

func init() {
	peerCmd.Flags().StringVar(&peerURL, "url", peer.DefaultURL, "Server WebSocket URL")
	peerCmd.Flags().StringVar(&peerName, "player", "DevPlayer", "Player name to register")
	peerCmd.Flags().Float64SliceVar(&peerPos, "pos", nil, "Player position as x,y,z")
	peerCmd.Flags().BoolVar(&peerReconnect, "reconnect", false, "Reconnect with backoff when the connection drops")
	peerCmd.Flags().BoolVar(&peerStay, "stay", false, "Keep running after the build finishes")
	peerCmd.Flags().BoolVar(&peerDeltas, "deltas", false, "Print raw streamed tokens")
	peerCmd.Flags().BoolVar(&peerNoColor, "no-color", false, "Disable colored output")
}

func runPeer(cmd *cobra.Command, args []string) error {
	cfg := peer.Config{
		URL:        peerURL,
		PlayerName: peerName,
		Reconnect:  peerReconnect,
	}
	if len(args) == 1 {
		cfg.Prompt = args[0]
		cfg.ExitOnDone = !peerStay
	}
	if len(peerPos) > 0 {
		if len(peerPos) != 3 {
			return errors.New("--pos takes exactly three values: x,y,z")
		}
		cfg.Position = &types.Vec3{X: peerPos[0], Y: peerPos[1], Z: peerPos[2]}
	}

	printer := peer.NewPrinter(cmd.OutOrStdout(), peerDeltas, peerNoColor)
	cfg.OnFrame = printer.Frame
	client := peer.New(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)
	go func() {
		for n := 0; ; n++ {
			select {
			case <-ctx.Done():
				return
			case <-sigs:
				if n == 0 && client.Cancel() == nil {
					printer.Frame(protocol.ServerFrame{Type: "cancel", Content: "sent, press Ctrl-C again to exit"})
					continue
				}
				cancel()
				return
			}
		}
	}()

	err := client.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
