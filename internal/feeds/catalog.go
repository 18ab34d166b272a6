package feeds

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Category maps a topic family to its feed URLs.
type Category struct {
	Name  string   `yaml:"name"`
	Feeds []string `yaml:"feeds"`
}

// Catalog is the ordered topic -> feeds table.
//
//	fallback: general
//	categories:
//	  - name: technology
//	    feeds:
//	      - https://...
type Catalog struct {
	Fallback   string     `yaml:"fallback"`
	Categories []Category `yaml:"categories"`
}

// DefaultCatalog returns the catalog compiled into the binary.
func DefaultCatalog() (*Catalog, error) {
	return ParseCatalog(defaultCatalog)
}

// LoadCatalog reads a catalog override from path, or the embedded one when path is empty.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read feed catalog: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes and checks a YAML catalog.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode feed catalog: %w", err)
	}
	if len(c.Categories) == 0 {
		return nil, fmt.Errorf("feed catalog has no categories")
	}
	for i := range c.Categories {
		c.Categories[i].Name = strings.ToLower(strings.TrimSpace(c.Categories[i].Name))
	}
	c.Fallback = strings.ToLower(strings.TrimSpace(c.Fallback))
	if c.category(c.Fallback) == nil {
		return nil, fmt.Errorf("feed catalog fallback %q is not a category", c.Fallback)
	}
	return &c, nil
}

func (c *Catalog) category(name string) *Category {
	for i := range c.Categories {
		if c.Categories[i].Name == name {
			return &c.Categories[i]
		}
	}
	return nil
}

// SelectFeeds resolves topics to a de-duplicated URL list in first-seen order.
// A topic matches the first category where either name contains the other;
// unmatched topics pull in the fallback category. Blank topics are ignored.
func (c *Catalog) SelectFeeds(topics []string) []string {
	seen := make(map[string]struct{})
	var urls []string
	add := func(feeds []string) {
		for _, u := range feeds {
			if _, ok := seen[u]; ok {
				continue
			}
			seen[u] = struct{}{}
			urls = append(urls, u)
		}
	}

	for _, topic := range topics {
		t := strings.ToLower(strings.TrimSpace(topic))
		if t == "" {
			continue
		}
		matched := false
		for _, cat := range c.Categories {
			if strings.Contains(cat.Name, t) || strings.Contains(t, cat.Name) {
				add(cat.Feeds)
				matched = true
				break
			}
		}
		if !matched {
			add(c.category(c.Fallback).Feeds)
		}
	}
	return urls
}
