// Package catalog is the authoritative list of sound effects and their base
// prices. Effects come from a YAML file, a directory of audio files, or both;
// file entries win over scanned ones.
package catalog

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"chatthief/internal/economy"

	"gopkg.in/yaml.v3"
)

var ErrNoSource = errors.New("catalog needs a file or a sounds directory")

var audioExts = map[string]bool{
	".mp3":  true,
	".wav":  true,
	".ogg":  true,
	".opus": true,
	".m4a":  true,
}

// File is the on-disk YAML shape:
//
//	default_price: 1
//	effects:
//	  clap: 1
//	  airhorn: 5
//
// An effect priced 0 uses default_price.
type File struct {
	DefaultPrice int64            `yaml:"default_price"`
	Effects      map[string]int64 `yaml:"effects"`
}

type Catalog struct {
	path      string
	soundsDir string
	log       *slog.Logger

	mu     sync.RWMutex
	prices map[string]int64
	names  []string
}

var _ economy.Catalog = (*Catalog)(nil)

// Load reads path and/or scans soundsDir. Either may be empty, not both.
func Load(path, soundsDir string, logger *slog.Logger) (*Catalog, error) {
	if path == "" && soundsDir == "" {
		return nil, ErrNoSource
	}
	if logger == nil {
		logger = slog.Default()
	}
	c := &Catalog{path: path, soundsDir: soundsDir, log: logger}
	if err := c.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

// FromPrices builds a fixed catalog. Zero or negative prices become
// economy.DefaultBasePrice.
func FromPrices(prices map[string]int64) *Catalog {
	c := &Catalog{log: slog.Default()}
	c.set(normalize(prices, economy.DefaultBasePrice))
	return c
}

// Default is the catalog seeded in memory mode.
func Default() *Catalog {
	return FromPrices(map[string]int64{
		"airhorn": 3,
		"bruh":    1,
		"clap":    1,
		"damn":    2,
		"hello":   1,
		"wow":     2,
	})
}

func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, len(c.names))
	copy(out, c.names)
	return out
}

func (c *Catalog) BasePrice(name string) (int64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.prices[name]
	return p, ok
}

func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.names)
}

// Reload re-reads every source. On error the previous contents stay live.
func (c *Catalog) Reload() error {
	prices := make(map[string]int64)
	if c.soundsDir != "" {
		scanned, err := scanDir(c.soundsDir)
		if err != nil {
			return err
		}
		for name := range scanned {
			prices[name] = economy.DefaultBasePrice
		}
	}
	if c.path != "" {
		f, err := readFile(c.path)
		if err != nil {
			return err
		}
		def := f.DefaultPrice
		if def < 1 {
			def = economy.DefaultBasePrice
		}
		for name := range prices {
			prices[name] = def
		}
		for name, p := range normalize(f.Effects, def) {
			prices[name] = p
		}
	}
	c.set(prices)
	c.log.Info("catalog loaded", "effects", len(prices))
	return nil
}

func (c *Catalog) set(prices map[string]int64) {
	names := make([]string, 0, len(prices))
	for name := range prices {
		names = append(names, name)
	}
	sort.Strings(names)
	c.mu.Lock()
	c.prices = prices
	c.names = names
	c.mu.Unlock()
}

func readFile(path string) (File, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("read catalog: %w", err)
	}
	var f File
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return File{}, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	return f, nil
}

// scanDir maps every audio file in dir to an effect named after its stem.
func scanDir(dir string) (map[string]struct{}, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("scan sounds dir: %w", err)
	}
	out := make(map[string]struct{})
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if !audioExts[ext] {
			continue
		}
		name := normalizeName(strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())))
		if name != "" {
			out[name] = struct{}{}
		}
	}
	return out, nil
}

func normalize(in map[string]int64, def int64) map[string]int64 {
	out := make(map[string]int64, len(in))
	for name, p := range in {
		name = normalizeName(name)
		if name == "" {
			continue
		}
		if p < 1 {
			p = def
		}
		out[name] = p
	}
	return out
}

// normalizeName returns "" for names that cannot be effects. "random" is
// reserved by the purchase path.
func normalizeName(name string) string {
	name = economy.NormalizeCommand(name)
	if name == economy.RandomCommand || strings.ContainsAny(name, " \t") {
		return ""
	}
	return name
}
