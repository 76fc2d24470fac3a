// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "docpipe",
		Usage: "Staged PDF processing: extract, embed, index, summarize",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a config file (TOML, YAML, JSON or .env)",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "process",
				Usage:     "Upload a local PDF and run the pipeline on it",
				ArgsUsage: "<file.pdf>",
				Action:    processCommand,
			},
			{
				Name:   "run",
				Usage:  "Run the pipeline on an object already in the bucket",
				Action: runCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "key",
						Aliases:  []string{"k"},
						Usage:    "Object key, e.g. uploads/report.pdf",
						Required: true,
					},
				},
			},
			{
				Name:   "stage",
				Usage:  "Re-run a single stage from persisted artifacts",
				Action: stageCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "stage",
						Aliases:  []string{"s"},
						Usage:    "Stage to run (extract, embed, index, summarize)",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "doc",
						Aliases:  []string{"d"},
						Usage:    "Document id",
						Required: true,
					},
				},
			},
			{
				Name:   "replay",
				Usage:  "Re-run the pipeline on every stored upload",
				Action: replayCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of uploads to list in each batch",
						Value: 20,
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Number of documents processed concurrently",
						Value: 2,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N documents",
						Value: 10,
					},
				},
			},
			{
				Name:   "lineage",
				Usage:  "Show which stage artifacts exist for a document",
				Action: lineageCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "doc",
						Aliases:  []string{"d"},
						Usage:    "Document id",
						Required: true,
					},
				},
			},
			{
				Name:   "runs",
				Usage:  "List recorded runs",
				Action: runsCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "doc",
						Aliases: []string{"d"},
						Usage:   "Only runs of this document id",
					},
				},
			},
			{
				Name:   "watch",
				Usage:  "Watch a local directory and process new PDFs",
				Action: watchCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "dir",
						Usage:    "Inbox directory",
						Required: true,
					},
					&cli.DurationFlag{
						Name:  "settle",
						Usage: "Quiet period before a written file is picked up",
						Value: 500 * time.Millisecond,
					},
					executorFlag(),
					workersFlag(),
				},
			},
			{
				Name:   "listen",
				Usage:  "Process objects as they are created in the MinIO bucket",
				Action: listenCommand,
				Flags: []cli.Flag{
					executorFlag(),
					workersFlag(),
				},
			},
			{
				Name:   "worker",
				Usage:  "Run queued jobs from Redis",
				Action: workerCommand,
			},
			{
				Name:   "enqueue",
				Usage:  "Queue a pipeline run in Redis",
				Action: enqueueCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "key",
						Aliases:  []string{"k"},
						Usage:    "Object key, e.g. uploads/report.pdf",
						Required: true,
					},
				},
			},
			{
				Name:   "temporal-worker",
				Usage:  "Serve the DocumentPipeline workflow and stage activities",
				Action: temporalWorkerCommand,
			},
		},
	}
}

func executorFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "executor",
		Usage: "Where runs execute (local, queue, temporal)",
		Value: executorLocal,
	}
}

func workersFlag() cli.Flag {
	return &cli.IntFlag{
		Name:  "workers",
		Usage: "Concurrent runs for the local executor",
		Value: 2,
	}
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
