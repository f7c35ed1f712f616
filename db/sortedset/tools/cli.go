package main

import (
	"context"
	"log"
	"os"

	"github.com/urfave/cli/v3"
)

func main() {
	app := &cli.Command{
		Name:  "zset_tools",
		Usage: "inspect and exercise sorted-set representations",
		Commands: []*cli.Command{
			{
				Name:   "gen",
				Usage:  "load generated members and report representation changes",
				Action: generateMembers,
				Flags: []cli.Flag{
					&cli.UintFlag{
						Name:        "count",
						DefaultText: "1000",
						Value:       1000,
						Usage:       "number of members to generate",
					},
					&cli.IntFlag{
						Name:  "seed",
						Usage: "seed for score generation (0 = time-based)",
					},
					&cli.BoolFlag{
						Name:  "verbose",
						Usage: "log every conversion and batch",
					},
				},
			},
			{
				Name:   "dump",
				Usage:  "read values from stdin and dump the packed-sequence layout",
				Action: dumpPackedSequence,
			},
			{
				Name:   "range",
				Usage:  "read 'member score' lines from stdin and query a score range",
				Action: queryScoreRange,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "min",
						Value: "-inf",
						Usage: "minimum score bound ('(' prefix for exclusive)",
					},
					&cli.StringFlag{
						Name:  "max",
						Value: "+inf",
						Usage: "maximum score bound ('(' prefix for exclusive)",
					},
					&cli.BoolFlag{
						Name:  "reverse",
						Usage: "emit highest scores first",
					},
				},
			},
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
