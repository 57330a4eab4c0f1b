package cmd

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/smazurov/framegate/internal/logging"
	"github.com/smazurov/framegate/internal/transcode"
	"github.com/spf13/cobra"
)

// CreateTranscodeCmd creates the transcode command. cfg is read after flags
// and the config file have been applied.
func CreateTranscodeCmd(cfg func() transcode.Config) *cobra.Command {
	var ext string

	cmd := &cobra.Command{
		Use:   "transcode <raw-file|dir>...",
		Short: "Convert leftover raw recordings",
		Long: `Converts raw detection recordings with the configured transcode settings. ` +
			`Directories are searched recursively for files with the raw extension. ` +
			`Each raw file is removed once its conversion succeeds.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(c.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			files, err := CollectRaw(args, ext)
			if err != nil {
				return err
			}
			logger := logging.GetLogger("transcode")
			if len(files) == 0 {
				logger.Info("No raw recordings found", "ext", ext)
				return nil
			}

			tr := transcode.New(cfg(), nil, logger)
			defer tr.Close()

			return TranscodeAll(ctx, tr, files, logger)
		},
	}

	cmd.Flags().StringVar(&ext, "ext", "mjpeg", "Raw recording extension searched for in directories")
	return cmd
}

// Converter converts one raw file.
type Converter interface {
	Transcode(ctx context.Context, rawPath string) error
}

// TranscodeAll converts files in order and keeps going past failures.
func TranscodeAll(ctx context.Context, c Converter, files []string, logger logging.Logger) error {
	failed := 0
	for _, f := range files {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := c.Transcode(ctx, f); err != nil {
			logger.Error("Conversion failed", "input", f, "error", err)
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d conversions failed", failed, len(files))
	}
	return nil
}

// CollectRaw expands args into raw file paths. Files are taken as given,
// directories are walked for *.ext.
func CollectRaw(args []string, ext string) ([]string, error) {
	suffix := "." + strings.TrimPrefix(ext, ".")
	seen := make(map[string]bool)
	var files []string

	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			files = append(files, p)
		}
	}

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			add(arg)
			continue
		}

		var found []string
		err = filepath.WalkDir(arg, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && strings.HasSuffix(d.Name(), suffix) {
				found = append(found, p)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", arg, err)
		}
		sort.Strings(found)
		for _, p := range found {
			add(p)
		}
	}
	return files, nil
}
