package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/dustin/go-humanize"
)

// PreferredDefault — модель, выбранная по умолчанию, если она есть в каталоге.
const PreferredDefault = "gpt-3.5-turbo"

var ErrUnknownModel = errors.New("unknown model")

//go:embed catalog.toml
var catalogTOML string

//go:embed policy.md
var policyMarkdown string

// Entry — справочная запись о модели.
type Entry struct {
	ID            string `toml:"id" json:"id"`
	Description   string `toml:"description" json:"description"`
	ContextWindow int64  `toml:"context_window" json:"context_window"`
	TrainingData  string `toml:"training_data" json:"training_data"`
}

// ContextWindowText форматирует окно контекста как "128,000 tokens".
func (e Entry) ContextWindowText() string {
	return humanize.Comma(e.ContextWindow) + " tokens"
}

// Catalog — неизменяемый список моделей.
type Catalog struct {
	entries []Entry
}

type catalogFile struct {
	Model []Entry `toml:"model"`
}

// Parse разбирает каталог в формате TOML.
func Parse(src string) (*Catalog, error) {
	var f catalogFile
	if _, err := toml.Decode(src, &f); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if len(f.Model) == 0 {
		return nil, errors.New("catalog is empty")
	}
	seen := make(map[string]struct{}, len(f.Model))
	for _, e := range f.Model {
		if e.ID == "" {
			return nil, errors.New("catalog entry without id")
		}
		if _, dup := seen[e.ID]; dup {
			return nil, fmt.Errorf("duplicate catalog entry: %s", e.ID)
		}
		seen[e.ID] = struct{}{}
	}
	return &Catalog{entries: f.Model}, nil
}

// Default загружает встроенный каталог один раз за процесс.
var Default = sync.OnceValue(func() *Catalog {
	c, err := Parse(catalogTOML)
	if err != nil {
		panic(err)
	}
	return c
})

// Entries возвращает копию записей в порядке каталога.
func (c *Catalog) Entries() []Entry {
	return slices.Clone(c.entries)
}

// IDs возвращает идентификаторы моделей.
func (c *Catalog) IDs() []string {
	ids := make([]string, 0, len(c.entries))
	for _, e := range c.entries {
		ids = append(ids, e.ID)
	}
	return ids
}

func (c *Catalog) Contains(id string) bool {
	return slices.ContainsFunc(c.entries, func(e Entry) bool { return e.ID == id })
}

// Lookup возвращает запись модели или ErrUnknownModel.
func (c *Catalog) Lookup(id string) (Entry, error) {
	i := slices.IndexFunc(c.entries, func(e Entry) bool { return e.ID == id })
	if i < 0 {
		return Entry{}, fmt.Errorf("%w: %s", ErrUnknownModel, id)
	}
	return c.entries[i], nil
}

// DefaultModel — preferred, если она есть в каталоге, иначе первая запись.
func (c *Catalog) DefaultModel(preferred string) string {
	if c.Contains(preferred) {
		return preferred
	}
	return c.entries[0].ID
}

// PolicyMarkdown — справка о политике использования данных API (markdown).
func PolicyMarkdown() string { return policyMarkdown }
