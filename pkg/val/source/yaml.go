package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/komsit37/val/pkg/val/types"
)

// YAMLSource loads ticker lists from a YAML file or a directory of them.
//
// File format:
//
//	tickers:
//	  - AAPL
//	  - sym: MSFT
//	  - name: semis
//	    tickers: [NVDA, AMD]
//
// Nested groups produce lists named by their path ("semis", "a/b").
type YAMLSource struct{}

// Load expects spec to be a string filepath.
func (YAMLSource) Load(ctx context.Context, spec any) ([]types.TickerList, error) {
	path, ok := spec.(string)
	if !ok {
		return nil, fmt.Errorf("yaml source expects filepath string spec")
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	if !info.IsDir() {
		lists, err := loadFile(path)
		if err != nil {
			return nil, err
		}
		base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		for i := range lists {
			if strings.TrimSpace(lists[i].Name) == "" {
				lists[i].Name = base
			}
		}
		return lists, nil
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(d.Name()))
		if ext == ".yaml" || ext == ".yml" {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)

	var all []types.TickerList
	for _, full := range files {
		lists, err := loadFile(full)
		if err != nil {
			return nil, err
		}
		// Prefix with the relative path (without extension), using forward slashes.
		rel, err := filepath.Rel(path, full)
		if err != nil {
			rel = filepath.Base(full)
		}
		prefix := filepath.ToSlash(strings.TrimSuffix(rel, filepath.Ext(rel)))
		for i := range lists {
			if strings.TrimSpace(lists[i].Name) == "" {
				lists[i].Name = prefix
			} else if prefix != "" {
				lists[i].Name = prefix + "/" + lists[i].Name
			}
		}
		all = append(all, lists...)
	}
	return all, nil
}

func loadFile(path string) ([]types.TickerList, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	lists, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return lists, nil
}

// Parse reads one YAML document into ticker lists. Tickers are uppercased
// and deduplicated within a list.
func Parse(data []byte) ([]types.TickerList, error) {
	var root map[string]any
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, err
	}
	node, ok := root["tickers"]
	if !ok || node == nil {
		return nil, fmt.Errorf("invalid yaml: missing 'tickers'")
	}

	var lists []types.TickerList
	var walk func(node any, path []string) error
	walk = func(node any, path []string) error {
		items, ok := node.([]any)
		if !ok {
			return fmt.Errorf("invalid yaml: 'tickers' under %q must be a list", strings.Join(path, "/"))
		}
		var leaf []string
		seen := map[string]struct{}{}
		add := func(sym string) {
			sym = strings.ToUpper(strings.TrimSpace(sym))
			if sym == "" {
				return
			}
			if _, ok := seen[sym]; ok {
				return
			}
			seen[sym] = struct{}{}
			leaf = append(leaf, sym)
		}
		var groups []map[string]any
		for _, e := range items {
			switch v := e.(type) {
			case string:
				add(v)
			case map[string]any:
				if _, ok := v["tickers"]; ok {
					groups = append(groups, v)
					continue
				}
				if sym, ok := v["sym"]; ok && sym != nil {
					add(fmt.Sprint(sym))
				}
			case nil:
			default:
				add(fmt.Sprint(v))
			}
		}
		if len(leaf) > 0 {
			lists = append(lists, types.TickerList{Name: strings.Join(path, "/"), Tickers: leaf})
		}
		for _, g := range groups {
			next := append([]string(nil), path...)
			if name, ok := g["name"].(string); ok && strings.TrimSpace(name) != "" {
				next = append(next, strings.TrimSpace(name))
			}
			if err := walk(g["tickers"], next); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(node, nil); err != nil {
		return nil, err
	}
	return lists, nil
}
