package nlu

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"sync"

	"github.com/dtroode/telcoassist-server/internal/logger"
	"github.com/dtroode/telcoassist-server/internal/model"
)

var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}_]+|[^\p{L}\p{N}_\s]`)

// SlangNormalizer rewrites Malaysian chat slang into standard words before
// classification. The dictionary is loaded once on first use and is
// read-only afterwards.
type SlangNormalizer struct {
	storage model.ObjectStorage
	key     string
	logger  *logger.Logger

	once sync.Once
	dict map[string]string
}

// NewSlangNormalizer creates a normalizer reading key from storage. A nil
// storage disables normalization apart from lowercasing.
func NewSlangNormalizer(storage model.ObjectStorage, key string, logger *logger.Logger) *SlangNormalizer {
	return &SlangNormalizer{storage: storage, key: key, logger: logger}
}

// Normalize lowercases message, splits it into word and punctuation tokens
// and replaces every known slang token.
func (n *SlangNormalizer) Normalize(ctx context.Context, message string) string {
	n.once.Do(func() { n.dict = n.load(ctx) })

	tokens := tokenPattern.FindAllString(strings.ToLower(message), -1)
	for i, token := range tokens {
		if standard, ok := n.dict[token]; ok {
			tokens[i] = standard
		}
	}
	return strings.Join(tokens, " ")
}

func (n *SlangNormalizer) load(ctx context.Context) map[string]string {
	if n.storage == nil {
		return map[string]string{}
	}

	rc, err := n.storage.Download(ctx, n.key)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			n.logger.Error("SlangNormalizer: dictionary not found", "key", n.key)
		} else {
			n.logger.Error("SlangNormalizer: failed to download dictionary",
				"key", n.key,
				"error", err.Error())
		}
		return map[string]string{}
	}
	defer rc.Close()

	dict, err := parseSlangDictionary(rc)
	if err != nil {
		n.logger.Error("SlangNormalizer: failed to parse dictionary",
			"key", n.key,
			"error", err.Error())
		return map[string]string{}
	}

	n.logger.Info("SlangNormalizer: dictionary loaded", "mappings", len(dict))
	return dict
}

type slangDocument struct {
	Categories map[string]struct {
		Entries []slangEntry `json:"entries"`
	} `json:"categories"`
}

type slangEntry struct {
	Slang      json.RawMessage `json:"slang"`
	Standard   string          `json:"standard"`
	Bahasa     []string        `json:"bahasa"`
	English    []string        `json:"english"`
	Variations *struct {
		Slang   []string `json:"slang"`
		Bahasa  []string `json:"bahasa"`
		English []string `json:"english"`
	} `json:"variations"`
}

// parseSlangDictionary flattens the categorized dictionary into
// slang -> standard pairs. Four entry shapes are understood:
//
//	{"slang": "nk", "standard": "nak"}
//	{"slang": ["ape"], "bahasa": ["apa"], "english": ["what"]}
//	{"action": "deactivate", "variations": {"slang": [...], "bahasa": [...], "english": [...]}}
//	{"slang": [...], "bahasa": [...]} (question words, paired by position)
func parseSlangDictionary(r io.Reader) (map[string]string, error) {
	var doc slangDocument
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode dictionary: %w", err)
	}

	dict := make(map[string]string)
	for _, category := range doc.Categories {
		for _, entry := range category.Entries {
			addEntry(dict, entry)
		}
	}
	return dict, nil
}

func addEntry(dict map[string]string, e slangEntry) {
	var single string
	if err := json.Unmarshal(e.Slang, &single); err == nil && len(e.Slang) > 0 {
		slang := strings.ToLower(single)
		if slang == "" {
			return
		}
		standard := e.Standard
		if standard == "" {
			standard = slang
		}
		dict[slang] = standard
		return
	}

	var list []string
	if err := json.Unmarshal(e.Slang, &list); err == nil && len(e.Slang) > 0 {
		for idx, term := range list {
			term = strings.ToLower(term)
			switch {
			case idx < len(e.Bahasa):
				dict[term] = e.Bahasa[idx]
			case idx < len(e.English):
				dict[term] = e.English[idx]
			}
		}
		return
	}

	if v := e.Variations; v != nil {
		for _, term := range v.Slang {
			switch {
			case len(v.Bahasa) > 0:
				dict[strings.ToLower(term)] = v.Bahasa[0]
			case len(v.English) > 0:
				dict[strings.ToLower(term)] = v.English[0]
			}
		}
		for _, term := range firstN(v.English, 3) {
			dict[strings.ToLower(term)] = term
		}
		for _, term := range firstN(v.Bahasa, 3) {
			dict[strings.ToLower(term)] = term
		}
	}
}

func firstN(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
