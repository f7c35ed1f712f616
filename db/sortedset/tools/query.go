package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v3"

	"github.com/ordkv/ordkv/db/sortedset"
)

// queryScoreRange loads 'member score' lines from stdin and prints the
// members inside the requested score range.
func queryScoreRange(ctx context.Context, cmd *cli.Command) error {
	scoreRange, err := sortedset.ParseScoreRange(cmd.String("min"), cmd.String("max"))
	if err != nil {
		return err
	}

	set := sortedset.New(sortedset.Args{})

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		fragments := strings.Fields(scanner.Text())
		if len(fragments) != 2 {
			fmt.Fprintf(os.Stderr, "Entry must be in \"member score\" format\n")
			continue
		}

		score, err := strconv.ParseFloat(fragments[1], 64)
		if err != nil {
			return errors.Wrapf(err, "bad score %q", fragments[1])
		}
		if _, _, err := set.Add(sortedset.MemberScore{Member: fragments[0], Score: score}); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	results := set.RangeByScore(scoreRange, sortedset.RangeArgs{
		Reverse:    cmd.Bool("reverse"),
		WithScores: true,
	})
	for _, result := range results {
		fmt.Printf("%s\t%v\n", result.Member, result.Score.MustGet())
	}
	fmt.Fprintf(os.Stderr, "%d of %d members in range\n", len(results), set.Len())
	return nil
}
