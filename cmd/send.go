package cmd

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/smazurov/framegate/internal/ingest"
	"github.com/smazurov/framegate/internal/logging"
	"github.com/spf13/cobra"
)

// CreateSendCmd creates the send command, a test producer for the ingest socket.
func CreateSendCmd() *cobra.Command {
	var (
		addr     string
		chunk    int
		fps      int
		gop      int
		realtime bool
	)

	cmd := &cobra.Command{
		Use:   "send <file|->",
		Short: "Stream a file to a running instance as framed input",
		Long: `Cuts the input into fixed-size frames with synthetic timestamps and ` +
			`writes them to the ingest address of a running instance.`,
		Args: cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			if fps <= 0 {
				return fmt.Errorf("--fps must be positive")
			}

			ctx, stop := signal.NotifyContext(c.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			var in io.Reader = os.Stdin
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}

			conn, err := ingest.Dial(ctx, addr)
			if err != nil {
				return err
			}
			defer conn.Close()

			start := time.Now()
			n, err := ingest.Produce(ctx, in, conn, ingest.ProducerOptions{
				ChunkSize: chunk,
				Interval:  time.Second / time.Duration(fps),
				GOP:       gop,
				Realtime:  realtime,
			})
			logging.GetLogger("send").Info("Send finished", "addr", addr, "frames", n, "duration", time.Since(start))
			return err
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Ingest address (unix:/path, tcp:host:port or host:port)")
	cmd.Flags().IntVar(&chunk, "chunk", ingest.DefaultChunkSize, "Payload bytes per frame")
	cmd.Flags().IntVar(&fps, "fps", 30, "Frame rate used for timestamps and pacing")
	cmd.Flags().IntVar(&gop, "gop", 1, "Mark every Nth frame as a keyframe")
	cmd.Flags().BoolVar(&realtime, "realtime", false, "Pace frames at --fps")
	_ = cmd.MarkFlagRequired("addr")
	return cmd
}
