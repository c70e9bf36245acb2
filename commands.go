package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/chrisuehlinger/viewwatch/config"
	"github.com/chrisuehlinger/viewwatch/js"
	"github.com/chrisuehlinger/viewwatch/network"
	"github.com/chrisuehlinger/viewwatch/replay"
	"github.com/chrisuehlinger/viewwatch/scene"
	"github.com/chrisuehlinger/viewwatch/ui"
	"github.com/chrisuehlinger/viewwatch/watch"
)

var (
	debounce       time.Duration
	scriptDuration time.Duration
	source         = network.NewSource(nil)
)

// runCmd replays the config script once
var runCmd = &cobra.Command{
	Use:   "run [scene]",
	Short: "Replay the config script against a scene and print each batch",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()
		return replayOnce(ctx, args[0], cfg, cmd.OutOrStdout())
	},
}

// watchCmd reruns the replay whenever the scene or config changes
var watchCmd = &cobra.Command{
	Use:   "watch [scene]",
	Short: "Rerun the replay whenever the scene or the config file changes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		var paths []string
		if p, ok := network.IsLocal(args[0]); ok {
			paths = append(paths, p)
		}
		if configPath != "" {
			paths = append(paths, configPath)
		}
		if len(paths) == 0 {
			return errors.Errorf("nothing to watch: %s is not a local file and no config was given", args[0])
		}

		out := cmd.OutOrStdout()
		run := 0
		w, err := watch.New(paths, func(ctx context.Context) error {
			run++
			fmt.Fprintf(out, "--- run %d ---\n", run)
			current := cfg
			if configPath != "" {
				reloaded, err := config.Load(configPath)
				if err != nil {
					return err
				}
				current = reloaded
			}
			return replayOnce(ctx, args[0], current, out)
		}, debounce, logger)
		if err != nil {
			return err
		}

		logger.Info("Watching for changes", zap.Strings("paths", paths))
		return w.Run(ctx)
	},
}

// viewCmd opens the scene in a window
var viewCmd = &cobra.Command{
	Use:   "view [scene]",
	Short: "Open the scene in a window and highlight visible elements while scrolling",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := loadScene(cmd.Context(), args[0], cfg)
		if err != nil {
			return err
		}

		a := app.New()
		w := a.NewWindow("viewwatch - " + args[0])
		w.Resize(fyne.NewSize(float32(cfg.Display.Width), float32(cfg.Display.Height)))

		v := ui.NewViewer(doc, logger)
		defer v.Close()
		if err := v.Attach(cfg.Observer, cfg.Observe, nil); err != nil {
			return err
		}

		w.SetContent(v.Content())
		w.ShowAndRun()
		return nil
	},
}

// scriptCmd runs a script against the JavaScript host on a virtual clock
var scriptCmd = &cobra.Command{
	Use:   "script [file.js]",
	Short: "Run a script that uses IntersectionObserver and print its console output",
	Long: `script runs a JavaScript file in a window sized by the config's display
section. After the script returns, the virtual clock is advanced by --duration
so that its timers run. Any error the script raises fails the command.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		code, err := source.Fetch(ctx, args[0])
		if err != nil {
			return err
		}

		r := js.NewRuntime(logger.Named("script"))
		r.SetConsoleOutput(cmd.OutOrStdout())
		size := cfg.Display.Size()
		if err := r.Resize(size.Width, size.Height); err != nil {
			return err
		}
		if err := r.RunScript(string(code), scriptDuration); err != nil {
			return errors.Wrap(err, args[0])
		}
		logger.Debug("Script finished", zap.Duration("virtualTime", r.Timers().Now()))
		return nil
	},
}

// loadScene fetches and parses the scene named by ref.
func loadScene(ctx context.Context, ref string, c *config.Config) (*scene.Document, error) {
	data, err := source.Fetch(ctx, ref)
	if err != nil {
		return nil, err
	}
	doc, err := scene.Parse(bytes.NewReader(data), c.Display.Size())
	if err != nil {
		return nil, errors.Wrapf(err, "loading %s", ref)
	}
	return doc, nil
}

func replayOnce(ctx context.Context, ref string, c *config.Config, out io.Writer) error {
	doc, err := loadScene(ctx, ref, c)
	if err != nil {
		return err
	}
	batches, err := replay.Run(ctx, doc, c, out, logger)
	if err != nil {
		return err
	}
	logger.Debug("Replay finished", zap.Int("batches", len(batches)))
	return nil
}
