// churn-train fits a churn classifier and publishes it to the artifact
// store under a version identifier.
//
// Usage:
//
//	churn-train run [--version v1] [--kind logistic_regression] [--dataset data.csv] [--unversioned]
//	churn-train runs [--version v1]
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"churn-serving/internal/cfg"
	"churn-serving/internal/model"
	"churn-serving/internal/storage"
	"churn-serving/internal/store"
	"churn-serving/internal/training"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	app := &cli.App{
		Name:  "churn-train",
		Usage: "Train churn models and publish versioned artifacts",
		Commands: []*cli.Command{
			runCommand(),
			runsCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("churn-train failed")
	}
}

func loadSettings() (cfg.Settings, error) {
	c, err := cfg.Load()
	if err != nil {
		return cfg.Settings{}, err
	}
	zerolog.SetGlobalLevel(c.Level())
	return c, nil
}

func runCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Fit a model and write it to the artifact store",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "version",
				Usage: "Version identifier to publish under (default MODEL_VERSION)",
			},
			&cli.StringFlag{
				Name:  "kind",
				Usage: "Classifier kind: logistic_regression or nearest_centroid (default MODEL_KIND)",
			},
			&cli.StringFlag{
				Name:    "dataset",
				Aliases: []string{"d"},
				Usage:   "CSV dataset with a header row and the label last (default: built-in demo set)",
			},
			&cli.BoolFlag{
				Name:  "demo-single-feature",
				Usage: "Train on the one-feature demo set",
			},
			&cli.Float64Flag{
				Name:  "test-ratio",
				Usage: "Fraction of rows held out for evaluation (default TEST_RATIO)",
			},
			&cli.Int64Flag{
				Name:  "seed",
				Usage: "Seed for the train/test split (default SEED)",
			},
			&cli.BoolFlag{
				Name:  "unversioned",
				Usage: "Write the single artifact served in preload mode instead of a versioned one",
			},
		},
		Action: runAction,
	}
}

func runAction(c *cli.Context) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}

	version := settings.ModelVersion
	if c.IsSet("version") {
		version = c.String("version")
	}
	kindName := settings.ModelKind
	if c.IsSet("kind") {
		kindName = c.String("kind")
	}
	kind, err := model.ParseKind(kindName)
	if err != nil {
		return err
	}
	testRatio := settings.TestRatio
	if c.IsSet("test-ratio") {
		testRatio = c.Float64("test-ratio")
	}
	seed := settings.Seed
	if c.IsSet("seed") {
		seed = c.Int64("seed")
	}

	ds, err := loadDataset(c, settings)
	if err != nil {
		return err
	}

	unversioned := c.Bool("unversioned")
	root, name := settings.ModelsRoot, settings.ArtifactName
	if unversioned {
		root, name = settings.ArtifactsRoot, settings.PreloadArtifact
	}
	s, err := store.NewOS(root, name)
	if err != nil {
		return err
	}

	var recorder training.RunRecorder
	if settings.DataPath != "" {
		ledger, err := storage.New(settings.DataPath)
		if err != nil {
			return fmt.Errorf("open run ledger: %w", err)
		}
		defer ledger.Close()
		recorder = ledger
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := training.NewProducer(s, recorder).Run(ctx, ds, training.Options{
		Version:     version,
		Kind:        kind,
		TestRatio:   testRatio,
		Seed:        seed,
		Unversioned: unversioned,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(c.App.Writer, "Accuracy: %.4f\n", res.Accuracy)
	fmt.Fprintf(c.App.Writer, "Saved model to %s\n", res.Location)
	fmt.Fprintf(c.App.Writer, "Model version: %s\n", res.Version)
	return nil
}

func loadDataset(c *cli.Context, settings cfg.Settings) (training.Dataset, error) {
	path := settings.DatasetPath
	if c.IsSet("dataset") {
		path = c.String("dataset")
	}
	switch {
	case path != "":
		return training.LoadCSV(path)
	case c.Bool("demo-single-feature"):
		return training.DemoSingleFeature(), nil
	default:
		return training.DemoChurn(), nil
	}
}

func runsCommand() *cli.Command {
	return &cli.Command{
		Name:  "runs",
		Usage: "List tracked training runs from the run ledger (requires DATA_PATH)",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "version",
				Usage: "Only list runs for this version",
			},
		},
		Action: func(c *cli.Context) error {
			settings, err := loadSettings()
			if err != nil {
				return err
			}
			if settings.DataPath == "" {
				return fmt.Errorf("DATA_PATH is not set, no run ledger to read")
			}

			ledger, err := storage.New(settings.DataPath)
			if err != nil {
				return fmt.Errorf("open run ledger: %w", err)
			}
			defer ledger.Close()

			var runs []storage.Run
			if v := c.String("version"); v != "" {
				runs, err = ledger.Runs(v)
			} else {
				runs, err = ledger.AllRuns()
			}
			if err != nil {
				return err
			}

			return printRuns(c, runs)
		},
	}
}

func printRuns(c *cli.Context, runs []storage.Run) error {
	if len(runs) == 0 {
		fmt.Fprintln(c.App.Writer, "no runs recorded")
		return nil
	}

	w := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STARTED\tVERSION\tKIND\tACCURACY\tROWS\tLOCATION\tRUN ID")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.4f\t%d/%d\t%s\t%s\n",
			r.StartedAt.Local().Format(time.RFC3339),
			r.Version, r.Kind, r.Accuracy, r.TrainRows, r.TestRows, r.Location, r.ID)
	}
	return w.Flush()
}

