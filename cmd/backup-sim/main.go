// Package main backs a simulated robot up in a small world and reports the result.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"os"
	"os/signal"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"go.viam.com/recovery/components/base/fake"
	"go.viam.com/recovery/config"
	"go.viam.com/recovery/logging"
	"go.viam.com/recovery/services/recovery"
	"go.viam.com/recovery/services/recovery/action"
	"go.viam.com/recovery/services/recovery/backup"
	"go.viam.com/recovery/spatialmath"
)

const (
	// Flags.
	flagConfig        = "config"
	flagDebug         = "debug"
	flagDebugGoal     = "debug-goal"
	flagDistance      = "distance"
	flagTolerance     = "tolerance"
	flagSpeed         = "speed"
	flagTimeAllowance = "time-allowance"
	flagObstacle      = "obstacle"
	flagLogFile       = "log-file"

	obstacleThickness    = 0.1
	defaultTimeAllowance = 10 * time.Second
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "backup-sim",
		Usage: "drive a simulated base a signed distance and report how the backup ended",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Usage:   "load configuration from `FILE`",
			},
			&cli.BoolFlag{
				Name:  flagDebug,
				Usage: "enable debug logging",
			},
			&cli.BoolFlag{
				Name:  flagDebugGoal,
				Usage: "log debug details of the goal without enabling debug logging everywhere",
			},
			&cli.Float64Flag{
				Name:  flagDistance,
				Value: -0.2,
				Usage: "signed distance to travel in meters, negative backs up",
			},
			&cli.Float64Flag{
				Name:  flagTolerance,
				Usage: "accepted distance error in meters, 0 uses the configured default",
			},
			&cli.Float64Flag{
				Name:  flagSpeed,
				Value: 0.25,
				Usage: "speed limit in meters per second",
			},
			&cli.DurationFlag{
				Name:  flagTimeAllowance,
				Value: defaultTimeAllowance,
				Usage: "how long the backup may take",
			},
			&cli.Float64Flag{
				Name:  flagObstacle,
				Usage: "place a wall this many meters behind the robot, 0 for none",
			},
			&cli.StringFlag{
				Name:  flagLogFile,
				Usage: "also write logs to `FILE`, rotated as it grows",
			},
		},
		Action: runBackup,
		Commands: []*cli.Command{
			{
				Name:   "schema",
				Usage:  "print the JSON schema of the configuration file",
				Action: printSchema,
			},
		},
	}
}

func runBackup(c *cli.Context) error {
	cfg := config.Default()
	if path := c.String(flagConfig); path != "" {
		var err error
		if cfg, err = config.Read(path); err != nil {
			return err
		}
	}
	if d := c.Float64(flagObstacle); d > 0 {
		cfg.Obstacles = append(cfg.Obstacles, config.Obstacle{
			Name: "cli-wall",
			MinX: -d - obstacleThickness,
			MaxX: -d,
			MinY: -cfg.Backup.FootprintWidth * 2,
			MaxY: cfg.Backup.FootprintWidth * 2,
		})
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	var logger logging.Logger
	if c.Bool(flagDebug) {
		logger = logging.NewDebugLogger("backup-sim")
	} else {
		logger = logging.NewLogger("backup-sim")
		logger.SetLevel(cfg.Level())
	}
	if path := c.String(flagLogFile); path != "" {
		fileAppender := logging.NewFileAppender(path)
		logger.AddAppender(fileAppender)
		defer func() {
			_ = fileAppender.Close()
		}()
	}
	defer func() {
		_ = logger.Sync()
	}()
	defer logging.ReplaceGlobal(logging.Global())
	logging.ReplaceGlobal(logger)

	grid, err := cfg.BuildGrid()
	if err != nil {
		return err
	}
	sim := fake.NewBase(nil, spatialmath.NewZeroPose(), nil)
	behavior, err := backup.NewBehavior(cfg.Backup, sim, sim, grid, nil, nil)
	if err != nil {
		return err
	}
	server, err := action.NewServer(cfg.Action, behavior, nil, nil)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt)
	defer stop()
	if c.Bool(flagDebugGoal) {
		ctx = logging.EnableDebugMode(ctx, "")
	}

	handle, err := server.Submit(ctx, recovery.Goal{
		TargetDistance: c.Float64(flagDistance),
		SpeedLimit:     c.Float64(flagSpeed),
		TimeAllowance:  c.Duration(flagTimeAllowance),
		Tolerance:      c.Float64(flagTolerance),
	})
	if err != nil {
		return errors.Wrap(err, "goal was not accepted")
	}
	stopCancel := context.AfterFunc(ctx, handle.Cancel)
	defer stopCancel()

	for fb := range handle.Feedback() {
		logger.Debugw("feedback", "distance_traveled", fb.DistanceTraveled)
	}
	result, err := handle.Wait(context.Background())
	if err != nil {
		return err
	}
	if err := server.Close(context.Background()); err != nil {
		return err
	}

	printResult(c, result, sim)
	if result.Status != recovery.StatusSucceeded {
		return cli.Exit(fmt.Sprintf("backup %s", result.Status), 1)
	}
	return nil
}

func printResult(c *cli.Context, result recovery.Result, sim *fake.Base) {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Field", "Value"})
	t.AppendRow(table.Row{"status", result.Status.String()})
	t.AppendRow(table.Row{"error_code", result.ErrorCode.String()})
	t.AppendRow(table.Row{"distance_traveled", fmt.Sprintf("%.3f m", result.DistanceTraveled)})
	t.AppendRow(table.Row{"elapsed", result.TotalElapsedTime.String()})
	t.AppendRow(table.Row{"final_pose", sim.Pose().String()})

	speeds := stats.Float64Data{}
	for _, cmd := range sim.Commands() {
		speeds = append(speeds, math.Abs(cmd.Linear))
	}
	if mean, err := speeds.Mean(); err == nil {
		peak, _ := speeds.Max()
		t.AppendRow(table.Row{"mean_speed", fmt.Sprintf("%.3f m/s", mean)})
		t.AppendRow(table.Row{"peak_speed", fmt.Sprintf("%.3f m/s", peak)})
	}
	if result.ErrorMessage != "" {
		t.AppendRow(table.Row{"message", result.ErrorMessage})
	}
	fmt.Fprintln(c.App.Writer, t.Render())
}

func printSchema(c *cli.Context) error {
	out, err := json.MarshalIndent(config.Schema(), "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, string(out))
	return nil
}
