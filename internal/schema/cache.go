package schema

import (
	"fmt"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

// DefaultTables are the logical tables installed in every tenant database.
func DefaultTables() []*TableDef {
	return []*TableDef{
		{
			Key:          "amt",
			Title:        "잔액",
			DateColumn:   "reg_dt",
			DueColumn:    DueColumn,
			DefaultOrder: []string{"com_nm", "bank_nm", "acct_no", "reg_dt"},
		},
		{
			Key:          "trsc",
			Title:        "거래내역",
			DateColumn:   "trsc_dt",
			DueColumn:    DueColumn,
			DefaultOrder: []string{"bank_nm", "acct_no", "trsc_dt", "trsc_tm"},
		},
		{
			Key:          "stock",
			Title:        "증권",
			DateColumn:   "reg_dt",
			DueColumn:    DueColumn,
			DefaultOrder: []string{"stock_nm", "acct_no", "reg_dt"},
		},
	}
}

// Cache is the logical-table registry. Lookups are keyed by table key.
type Cache struct {
	mu     sync.RWMutex
	tables map[string]*TableDef
}

// NewCache returns a registry preloaded with DefaultTables.
func NewCache() *Cache {
	c := &Cache{tables: make(map[string]*TableDef)}
	for _, t := range DefaultTables() {
		c.tables[t.Key] = t
	}
	return c
}

// NewCacheFromTables builds a registry from explicit definitions (tests, config).
func NewCacheFromTables(tables ...*TableDef) *Cache {
	c := &Cache{tables: make(map[string]*TableDef, len(tables))}
	for _, t := range tables {
		c.tables[t.Key] = t
	}
	return c
}

type tablesFile struct {
	Tables []*TableDef `yaml:"tables"`
}

// LoadFile merges table definitions from a YAML file over the current set.
func (c *Cache) LoadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("schema cache load: %w", err)
	}
	var f tablesFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("schema cache decode: %w", err)
	}
	return c.Merge(f.Tables)
}

// Merge validates and installs table definitions, replacing same-key entries.
func (c *Cache) Merge(defs []*TableDef) error {
	for _, t := range defs {
		if t.Key == "" {
			return fmt.Errorf("table definition without key")
		}
		if t.DateColumn == "" {
			return fmt.Errorf("table %q: date_column is required", t.Key)
		}
		if t.DueColumn == "" {
			t.DueColumn = DueColumn
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range defs {
		c.tables[t.Key] = t
	}
	return nil
}

// Get returns the definition for a table key, or nil.
func (c *Cache) Get(key string) *TableDef {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tables[key]
}

// Lookup is Get with an explicit error for unknown keys.
func (c *Cache) Lookup(key string) (*TableDef, error) {
	if t := c.Get(key); t != nil {
		return t, nil
	}
	return nil, fmt.Errorf("unknown logical table %q", key)
}

// Keys returns the registered table keys in sorted order.
func (c *Cache) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]string, 0, len(c.tables))
	for k := range c.tables {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// TableCount returns the number of registered tables.
func (c *Cache) TableCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.tables)
}
