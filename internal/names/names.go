// Package names generates memorable session name suffixes.
package names

import (
	"fmt"
	"math/rand"
)

var adjectives = []string{
	"brisk", "calm", "clever", "crisp", "deft", "eager", "fierce", "focused",
	"gritty", "hardy", "keen", "lively", "nimble", "patient", "quick", "quiet",
	"rapid", "ready", "sharp", "steady", "swift", "tidy", "tough", "vivid",
}

var animals = []string{
	"badger", "bee", "crane", "falcon", "ferret", "fox", "heron", "ibex",
	"lynx", "marten", "mole", "otter", "owl", "puffin", "raven", "robin",
	"stoat", "swallow", "swift", "tern", "viper", "vole", "wren", "yak",
}

// Random returns a kebab-case adjective/animal combo.
func Random(rng *rand.Rand) string {
	adjective := adjectives[rng.Intn(len(adjectives))]
	animal := animals[rng.Intn(len(animals))]
	return fmt.Sprintf("%s-%s", adjective, animal)
}

// Count returns the number of possible combinations.
func Count() int {
	return len(adjectives) * len(animals)
}
