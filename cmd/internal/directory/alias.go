package directory

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/oklog/ulid/v2"
)

// Alias word lists. Aliases look like "amber-falcon-42": friendly enough for
// a feed, anonymous enough that the email never leaks.
var (
	aliasAdjectives = []string{
		"amber", "brisk", "calm", "dapper", "eager", "fuzzy", "gentle",
		"hazel", "ivory", "jolly", "keen", "lucid", "mellow", "nimble",
		"opal", "plucky", "quiet", "rustic", "sunny", "tidy", "vivid",
		"witty", "zesty",
	}
	aliasNouns = []string{
		"falcon", "birch", "comet", "dune", "ember", "fjord", "grove",
		"harbor", "inlet", "jasper", "kestrel", "lagoon", "meadow",
		"nebula", "orchid", "pine", "quill", "ridge", "sparrow", "tundra",
		"willow", "zephyr",
	}
)

// NewAlias generates a random display alias from the fixed word lists.
func NewAlias() (string, error) {
	adj, err := pick(aliasAdjectives)
	if err != nil {
		return "", err
	}
	noun, err := pick(aliasNouns)
	if err != nil {
		return "", err
	}
	n, err := rand.Int(rand.Reader, big.NewInt(100))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%s-%d", adj, noun, n.Int64()), nil
}

func pick(words []string) (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(words))))
	if err != nil {
		return "", err
	}
	return words[n.Int64()], nil
}

// NewStableID returns a new ULID string (26 chars).
// ULIDs are lexicographically sortable and work well in distributed systems.
func NewStableID(now time.Time) (string, error) {
	if now.IsZero() {
		now = time.Now().UTC()
	}

	id, err := ulid.New(ulid.Timestamp(now), rand.Reader)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
