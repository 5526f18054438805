// Package predict serves word and next-letter suggestions for the current
// typing prefix. Lookups are bounded by the caller's context deadline; on
// timeout the scan pass simply runs without suggestions.
package predict

import (
	"bufio"
	"context"
	"embed"
	"fmt"
	"strings"
)

// Suggester is the engine-facing suggestion contract.
type Suggester interface {
	// Words returns up to k completions for prefix, best first.
	Words(ctx context.Context, prefix string, k int) ([]string, error)
	// Letters returns up to k likely next letters for prefix, best first.
	Letters(ctx context.Context, prefix string, k int) ([]string, error)
}

//go:embed words.txt
var wordData embed.FS

// checkEvery is how many words a lookup examines between context checks, so a
// cancelled lookup never runs the whole list.
const checkEvery = 512

// Frequency suggests from a rank-ordered word list.
type Frequency struct {
	words []string
}

// NewFrequency loads the embedded ranked list.
func NewFrequency() (*Frequency, error) {
	f, err := wordData.Open("words.txt")
	if err != nil {
		return nil, fmt.Errorf("open embedded word list: %w", err)
	}
	defer f.Close()

	var words []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		word := strings.TrimSpace(scanner.Text())
		if word == "" {
			continue
		}
		words = append(words, word)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read embedded word list: %w", err)
	}
	if len(words) == 0 {
		return nil, fmt.Errorf("embedded word list is empty")
	}
	return &Frequency{words: words}, nil
}

// Words returns the k highest-ranked completions of prefix. An empty prefix
// yields nothing; suggesting before the user has typed is just noise.
func (f *Frequency) Words(ctx context.Context, prefix string, k int) ([]string, error) {
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	if prefix == "" || k <= 0 {
		return nil, nil
	}

	var out []string
	for i, word := range f.words {
		if i%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if strings.HasPrefix(word, prefix) && word != prefix {
			out = append(out, word)
			if len(out) == k {
				break
			}
		}
	}
	return out, nil
}

// Letters ranks the next letter over all completions of prefix, weighting
// each completion by its list rank. An empty prefix ranks first letters.
func (f *Frequency) Letters(ctx context.Context, prefix string, k int) ([]string, error) {
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	if k <= 0 {
		return nil, nil
	}

	weights := make(map[rune]float64)
	for i, word := range f.words {
		if i%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if !strings.HasPrefix(word, prefix) || len(word) <= len(prefix) {
			continue
		}
		next := rune(word[len(prefix)])
		if next < 'a' || next > 'z' {
			continue
		}
		weights[next] += 1.0 / float64(i+1)
	}

	out := make([]string, 0, k)
	for len(out) < k && len(weights) > 0 {
		var best rune
		bestWeight := -1.0
		for r, w := range weights {
			if w > bestWeight || (w == bestWeight && r < best) {
				best = r
				bestWeight = w
			}
		}
		delete(weights, best)
		out = append(out, string(best))
	}
	return out, nil
}
