package packet

import (
	"bufio"
	"os"
	"strings"
)

// defaultSynonyms folds detector vocabularies onto the pipeline's label set.
var defaultSynonyms = map[string]string{
	"bicycle":    "bike",
	"motorcycle": "bike",
	"backpack":   "bag",
	"handbag":    "bag",
	"suitcase":   "bag",
	"truck":      "car",
	"bus":        "car",
}

// Normalizer maps raw detector labels to normalized pipeline labels.
type Normalizer struct {
	synonyms map[string]string
}

// NewNormalizer returns a Normalizer with the built-in synonym table.
func NewNormalizer() *Normalizer {
	m := make(map[string]string, len(defaultSynonyms))
	for k, v := range defaultSynonyms {
		m[k] = v
	}
	return &Normalizer{synonyms: m}
}

// LoadNormalizer reads "raw -> normalized" pairs (whitespace separated, one
// per line, '#' comments) on top of the defaults. A missing file is not an
// error: the defaults apply.
func LoadNormalizer(path string) (*Normalizer, error) {
	n := NewNormalizer()
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return n, nil
		}
		return nil, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			continue
		}
		n.synonyms[strings.ToLower(fields[0])] = strings.ToLower(fields[1])
	}
	return n, sc.Err()
}

// Normalize lowercases the label and folds synonyms. Unknown labels pass
// through lowercased.
func (n *Normalizer) Normalize(label string) string {
	l := strings.ToLower(strings.TrimSpace(label))
	if mapped, ok := n.synonyms[l]; ok {
		return mapped
	}
	return l
}
