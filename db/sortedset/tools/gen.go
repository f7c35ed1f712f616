package main

import (
	"context"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"

	"github.com/ordkv/ordkv/db/sortedset"
)

func generateMembers(ctx context.Context, cmd *cli.Command) error {
	count := int(cmd.Uint("count"))
	seed := cmd.Int("seed")
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	logger := logrus.New()
	if cmd.Bool("verbose") {
		logger.SetLevel(logrus.DebugLevel)
	}

	conversions := 0
	set := sortedset.New(sortedset.Args{})

	start := time.Now()
	lastEncoding := set.Encoding()
	for i := 0; i < count; i++ {
		member := uuid.Must(uuid.NewRandomFromReader(rng)).String()
		if _, _, err := set.Add(sortedset.MemberScore{
			Member: member,
			Score:  rng.NormFloat64() * 1000,
		}); err != nil {
			return err
		}

		if encoding := set.Encoding(); encoding != lastEncoding {
			conversions++
			logger.WithFields(logrus.Fields{
				"members":  set.Len(),
				"encoding": encodingName(encoding),
			}).Debug("representation converted")
			lastEncoding = encoding
		}
	}

	logger.WithFields(logrus.Fields{
		"members":     set.Len(),
		"encoding":    encodingName(set.Encoding()),
		"conversions": conversions,
		"elapsed":     time.Since(start),
	}).Info("load complete")
	return nil
}

func encodingName(encoding sortedset.Encoding) string {
	if encoding == sortedset.EncodingCompact {
		return "compact"
	}
	return "expanded"
}
