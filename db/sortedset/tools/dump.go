package main

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/ordkv/ordkv/storage/packedseq"
)

// dumpPackedSequence reads one value per stdin line, packs them all into a
// single sequence, and prints the resulting byte layout.
func dumpPackedSequence(ctx context.Context, cmd *cli.Command) error {
	seq := packedseq.New()

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		seq.Push([]byte(scanner.Text()), true)
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	fmt.Printf("total bytes: %d\n", seq.SizeBytes())
	fmt.Printf("entries:     %d\n", seq.NumEntries())
	fmt.Printf("tail offset: %d\n", seq.TailPos())

	pos, exists := seq.Index(0)
	for exists {
		value, _ := seq.Get(pos)
		kind := "str"
		if value.IsInt {
			kind = "int"
		}
		fmt.Printf("  @%-6d %s  %q\n", pos, kind, value.String())
		pos, exists = seq.Next(pos)
	}

	fmt.Printf("raw: %x\n", seq.Bytes())
	return nil
}
