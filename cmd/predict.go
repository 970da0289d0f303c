package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/briandowns/spinner"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/gomcpgo/media_predict/pkg/client"
	"github.com/gomcpgo/media_predict/pkg/config"
	"github.com/gomcpgo/media_predict/pkg/media"
	"github.com/gomcpgo/media_predict/pkg/predict"
	"github.com/gomcpgo/media_predict/pkg/storage"
	"github.com/gomcpgo/media_predict/pkg/types"
)

// predictOptions holds the flags of the predict command
type predictOptions struct {
	MimeType        string
	FramesPerSecond float64
	Timeout         time.Duration
	PollInterval    time.Duration
	Save            bool
	JSON            bool
}

var predictOpts predictOptions

var predictCmd = &cobra.Command{
	Use:   "predict <path|url>...",
	Short: "Upload media and wait for its predictions",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPredict(cmd.Context(), args, predictOpts)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status <prediction-task-uuid>",
	Short: "Show the state of a prediction task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := client.NewFromConfig(cfg)
		if err != nil {
			return err
		}
		status, err := c.GetStatus(cmd.Context(), types.PredictionTaskUUID(args[0]))
		if err != nil {
			return err
		}
		fmt.Printf("%s %s\n", consoleUI.title("Task"), status.PredictionTaskUUID)
		fmt.Printf("  type:  %s\n", status.PredictionType)
		fmt.Printf("  state: %s\n", colorState(status.State))
		return nil
	},
}

var resultsType string

var resultsCmd = &cobra.Command{
	Use:   "results <prediction-task-uuid>",
	Short: "Fetch the results of a completed prediction task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		c, err := client.NewFromConfig(cfg)
		if err != nil {
			return err
		}
		taskUUID := types.PredictionTaskUUID(args[0])

		predictionType := types.PredictionType(resultsType)
		if predictionType == "" {
			status, err := c.GetStatus(ctx, taskUUID)
			if err != nil {
				return err
			}
			predictionType = status.PredictionType
		}
		if !predictionType.Valid() {
			return fmt.Errorf("unknown prediction type %q (use image or video)", predictionType)
		}

		results, err := c.GetResults(ctx, taskUUID, predictionType)
		if err != nil {
			return err
		}
		return printJSON(results.Payload())
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List prediction results saved on disk",
	RunE: func(cmd *cobra.Command, args []string) error {
		infos, err := storage.NewStorage(cfg.ResultsRoot).ListResults()
		if err != nil {
			return err
		}
		if len(infos) == 0 {
			fmt.Println("No saved results found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "TASK\tTYPE\tMODEL\tSTATE\tOBJECTS\tSAVED")
		fmt.Fprintln(w, "----\t----\t-----\t-----\t-------\t-----")
		for _, info := range infos {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n", info.PredictionTaskUUID, info.PredictionType, info.Model,
				info.State, info.ObjectCount, info.Timestamp.Local().Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

func init() {
	f := predictCmd.Flags()
	f.StringVar(&predictOpts.MimeType, "mime-type", "", "Explicit MIME type, overriding detection")
	f.Float64Var(&predictOpts.FramesPerSecond, "fps", 0, "Frames per second to sample (video only)")
	f.DurationVar(&predictOpts.Timeout, "timeout", 0, "Give up waiting after this long (default: wait indefinitely)")
	f.DurationVar(&predictOpts.PollInterval, "poll-interval", 0, "Pause between status checks (default 1s)")
	f.BoolVar(&predictOpts.Save, "save", false, "Save results under the results root")
	f.BoolVar(&predictOpts.JSON, "json", false, "Print raw results JSON")

	resultsCmd.Flags().StringVar(&resultsType, "type", "", "Prediction type: image or video (default: from task status)")

	rootCmd.AddCommand(predictCmd, statusCmd, resultsCmd, listCmd)
}

func runPredict(ctx context.Context, sources []string, o predictOptions) error {
	if cfg.Model == "" {
		return fmt.Errorf("model is required: pass --model or set model in the config file")
	}
	c, err := client.NewFromConfig(cfg)
	if err != nil {
		return err
	}

	defaults := predict.FromTimeouts(config.LoadTimeouts())
	if o.PollInterval > 0 {
		defaults = append(defaults, predict.WithPollInterval(o.PollInterval))
	}
	if o.Timeout > 0 {
		defaults = append(defaults, predict.WithTimeout(o.Timeout))
	}
	defaults = append(defaults, predict.WithFramesPerSecond(o.FramesPerSecond))
	predictor := predict.New(c, defaults...)

	var store *storage.Storage
	if o.Save {
		store = storage.NewStorage(cfg.ResultsRoot)
	}

	var openOpts []media.Option
	if o.MimeType != "" {
		openOpts = append(openOpts, media.WithMimeType(o.MimeType))
	}

	if len(sources) == 1 {
		return predictOne(ctx, predictor, store, sources[0], openOpts, o)
	}

	bar := progressbar.NewOptions(len(sources),
		progressbar.OptionSetDescription("Predicting"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
	failed := 0
	for _, source := range sources {
		results, err := runOne(ctx, predictor, store, source, openOpts, nil)
		_ = bar.Add(1)
		if err != nil {
			failed++
			fmt.Printf("%s %s: %v\n", consoleUI.err("[FAIL]"), source, err)
			continue
		}
		printSummary(source, results, o.JSON)
	}
	_ = bar.Finish()

	if failed > 0 {
		return fmt.Errorf("%d of %d predictions failed", failed, len(sources))
	}
	return nil
}

func predictOne(ctx context.Context, predictor *predict.Predictor, store *storage.Storage, source string, openOpts []media.Option, o predictOptions) error {
	spin := spinner.New(spinner.CharSets[14], 120*time.Millisecond, spinner.WithWriter(os.Stderr))
	spin.Suffix = " Uploading " + source + "..."
	spin.Start()

	hook := func(attempt int, status *types.TaskStatus) {
		spin.Lock()
		spin.Suffix = fmt.Sprintf(" Waiting for %s: %s (check %d)", status.PredictionTaskUUID, status.State, attempt)
		spin.Unlock()
	}
	results, err := runOne(ctx, predictor, store, source, openOpts, hook)
	spin.Stop()
	if err != nil {
		return err
	}

	if o.JSON {
		return printJSON(results.Payload())
	}
	printSummary(source, results, false)
	return nil
}

// runOne opens source and predicts it, saving results when store is set
func runOne(ctx context.Context, predictor *predict.Predictor, store *storage.Storage, source string, openOpts []media.Option, hook func(int, *types.TaskStatus)) (*types.PredictionResults, error) {
	m, err := media.Open(ctx, source, openOpts...)
	if err != nil {
		return nil, err
	}

	var extra []predict.Option
	if hook != nil {
		extra = append(extra, predict.WithWaitOptions(client.WithPollHook(hook)))
	}

	started := time.Now()
	results, err := predictor.Predict(ctx, cfg.Model, m, extra...)
	if err != nil {
		return nil, err
	}

	if store != nil {
		path, err := store.SaveResults(&types.TaskMetadata{
			PredictionTaskUUID: results.TaskUUID(),
			PredictionType:     results.Type,
			Model:              cfg.Model,
			Source:             source,
			MimeType:           m.MimeType(),
			StartedAt:          started,
		}, results)
		if err != nil {
			return nil, fmt.Errorf("failed to save results: %w", err)
		}
		fmt.Fprintf(os.Stderr, "%s %s\n", consoleUI.dim("saved"), path)
	}
	return results, nil
}

func printSummary(source string, results *types.PredictionResults, asJSON bool) {
	if asJSON {
		_ = printJSON(results.Payload())
		return
	}
	fmt.Printf("%s %s\n", consoleUI.ok("[OK]"), source)
	fmt.Printf("  task:    %s\n", consoleUI.info(results.TaskUUID()))
	fmt.Printf("  type:    %s\n", results.Type)
	fmt.Printf("  objects: %d\n", results.ObjectCount())
}

func colorState(state types.PredictionTaskState) string {
	switch {
	case state.IsSuccessful():
		return consoleUI.ok(state)
	case state.IsFailed():
		return consoleUI.err(state)
	}
	return consoleUI.warn(state)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
