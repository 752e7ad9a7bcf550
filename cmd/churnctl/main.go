// churnctl talks to a running churn-api.
//
// Usage:
//
//	churnctl health
//	churnctl predict --version v1 --tenure 6 --monthly-charges 90
//	churnctl models [--version v1]
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"churn-serving/internal/client"
	"churn-serving/internal/common"
	"churn-serving/internal/ml"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	app := &cli.App{
		Name:  "churnctl",
		Usage: "Query the churn prediction API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "url",
				Value:   common.DefaultAPIURL,
				Usage:   "Base URL of the churn API",
				EnvVars: []string{common.EnvAPIURL},
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Value: 5 * time.Second,
				Usage: "Request timeout",
			},
		},
		Commands: []*cli.Command{
			healthCommand(),
			predictCommand(),
			modelsCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("churnctl failed")
	}
}

func newClient(c *cli.Context) *client.Client {
	return client.NewClient(c.String("url"), c.Duration("timeout"))
}

func healthCommand() *cli.Command {
	return &cli.Command{
		Name:  "health",
		Usage: "Check that the API is up",
		Action: func(c *cli.Context) error {
			status, err := newClient(c).Health(c.Context)
			if err != nil {
				return err
			}
			fmt.Fprintln(c.App.Writer, status)
			return nil
		},
	}
}

func predictCommand() *cli.Command {
	return &cli.Command{
		Name:  "predict",
		Usage: "Request a churn prediction",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "version",
				Usage: "Model version (default: the server's default version)",
			},
			&cli.Float64Flag{
				Name:  "tenure",
				Usage: "Customer tenure in months",
			},
			&cli.Float64Flag{
				Name:  "monthly-charges",
				Usage: "Monthly charges",
			},
			&cli.Float64SliceFlag{
				Name:  "feature",
				Usage: "Ordered feature value, repeatable; overrides --tenure/--monthly-charges",
			},
			&cli.StringFlag{
				Name:  "output",
				Usage: "probability, label or raw (default: server setting)",
			},
		},
		Action: func(c *cli.Context) error {
			req := ml.PredictionRequest{
				Version:  c.String("version"),
				Output:   c.String("output"),
				Features: c.Float64Slice("feature"),
			}
			if len(req.Features) == 0 {
				if !c.IsSet("tenure") || !c.IsSet("monthly-charges") {
					return fmt.Errorf("either --feature or both --tenure and --monthly-charges are required")
				}
				tenure, charges := c.Float64("tenure"), c.Float64("monthly-charges")
				req.Tenure = &tenure
				req.MonthlyCharges = &charges
			}

			resp, err := newClient(c).Predict(c.Context, req)
			if err != nil {
				return err
			}
			return printJSON(c, resp)
		},
	}
}

func modelsCommand() *cli.Command {
	return &cli.Command{
		Name:  "models",
		Usage: "List model versions, or describe one with --version",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "version",
				Usage: "Describe this version",
			},
		},
		Action: func(c *cli.Context) error {
			cl := newClient(c)
			if v := c.String("version"); v != "" {
				info, err := cl.Model(c.Context, v)
				if err != nil {
					return err
				}
				return printJSON(c, info)
			}

			def, versions, err := cl.Models(c.Context)
			if err != nil {
				return err
			}
			for _, v := range versions {
				marker := ""
				if v == def {
					marker = " (default)"
				}
				fmt.Fprintf(c.App.Writer, "%s%s\n", v, marker)
			}
			return nil
		},
	}
}

func printJSON(c *cli.Context, v interface{}) error {
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
