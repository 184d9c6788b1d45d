package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Vocabulary is the set of controlled values a classification may use.
// Values outside a list are discarded during normalization, never corrected.
type Vocabulary struct {
	Types      []string `yaml:"types"`
	Categories []string `yaml:"categories"`
	Colors     []string `yaml:"colors"`
	Brands     []string `yaml:"brands"`
}

// LoadVocabulary reads a vocabulary YAML file. An empty path returns the
// built-in default lists.
func LoadVocabulary(path string) (Vocabulary, error) {
	if path == "" {
		return DefaultVocabulary(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Vocabulary{}, fmt.Errorf("read vocabulary %s: %w", path, err)
	}
	var v Vocabulary
	if err := yaml.Unmarshal(b, &v); err != nil {
		return Vocabulary{}, fmt.Errorf("parse vocabulary %s: %w", path, err)
	}
	return v, nil
}

// DefaultVocabulary returns the lists the store opened with.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		Types:      []string{"Shoes", "Clothes", "Bags", "Accessories"},
		Categories: []string{"Men", "Women", "Kids", "Unisex"},
		Colors: []string{
			"Black", "White", "Grey", "Red", "Blue", "Green",
			"Yellow", "Brown", "Beige", "Pink", "Purple", "Orange",
		},
		Brands: []string{
			"Nike", "Adidas", "Puma", "Zara", "H&M", "Levi's",
			"Gucci", "Prada", "Other",
		},
	}
}

func member(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
