package credentials

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// ErrMalformedCode is returned for input that cannot be an access code
var ErrMalformedCode = errors.New("malformed access code")

// Word lists for readable access codes
var adjectives = []string{
	"amber", "bright", "calm", "clever", "cosy", "daring", "eager", "gentle",
	"golden", "happy", "jolly", "kind", "lively", "lucky", "merry", "mighty",
	"noble", "patient", "quick", "quiet", "royal", "silver", "steady", "sunny",
	"swift", "tidy", "brave", "warm", "wise", "zesty",
}

var nouns = []string{
	"acorn", "badger", "beacon", "canyon", "comet", "dolphin", "falcon", "garden",
	"harbor", "island", "kettle", "lantern", "maple", "meadow", "otter", "panda",
	"pebble", "puffin", "rocket", "river", "sparrow", "summit", "thistle", "tiger",
	"tulip", "violet", "walrus", "willow", "yonder", "zephyr",
}

const digitCount = 4

// GenerateAccessCode returns a code in the form "adjective-noun-1234"
func GenerateAccessCode() (string, error) {
	adjective, err := randomElement(adjectives)
	if err != nil {
		return "", err
	}
	noun, err := randomElement(nouns)
	if err != nil {
		return "", err
	}

	n, err := rand.Int(rand.Reader, big.NewInt(10000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%s-%0*d", adjective, noun, digitCount, n.Int64()), nil
}

// Normalize lower-cases and trims a code typed by a person
func Normalize(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}

// LookupKey returns the word part of a code. It is stored in clear next to
// the hash so redemption only has to compare against a handful of rows.
func LookupKey(code string) (string, error) {
	parts := strings.Split(Normalize(code), "-")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || len(parts[2]) != digitCount {
		return "", ErrMalformedCode
	}
	for _, r := range parts[2] {
		if r < '0' || r > '9' {
			return "", ErrMalformedCode
		}
	}
	return parts[0] + "-" + parts[1], nil
}

// randomElement picks a random element from a string slice
func randomElement(slice []string) (string, error) {
	if len(slice) == 0 {
		return "", nil
	}

	num, err := rand.Int(rand.Reader, big.NewInt(int64(len(slice))))
	if err != nil {
		return "", err
	}

	return slice[num.Int64()], nil
}
