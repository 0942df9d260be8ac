// Package schema holds the static description of the analytics database:
// table purposes, typed columns and known join patterns. The catalog is
// embedded at build time and loaded once per process; it is the only
// schema knowledge the question pipeline ever sees.
package schema

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var catalogYAML []byte

// Column describes one column of a catalog table.
type Column struct {
	Name        string `yaml:"name"`
	Type        string `yaml:"type"`
	Description string `yaml:"description"`
}

// JoinHint describes a known join pattern from one table to another.
type JoinHint struct {
	To        string `yaml:"to"`
	Condition string `yaml:"condition"`
	Purpose   string `yaml:"purpose"`
}

// Table describes one table of the analytics database.
type Table struct {
	Name        string     `yaml:"name"`
	Description string     `yaml:"description"`
	Columns     []Column   `yaml:"columns"`
	JoinHints   []JoinHint `yaml:"join_hints"`
}

// Catalog is the full schema description.
type Catalog struct {
	Tables []Table `yaml:"tables"`

	byName map[string]*Table
}

// Load parses the embedded catalog. It fails only if the embedded file
// is malformed, which is a build problem rather than a runtime one.
func Load() (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(catalogYAML, &c); err != nil {
		return nil, fmt.Errorf("failed to parse embedded schema catalog: %w", err)
	}
	if len(c.Tables) == 0 {
		return nil, fmt.Errorf("schema catalog contains no tables")
	}
	c.byName = make(map[string]*Table, len(c.Tables))
	for i := range c.Tables {
		c.byName[strings.ToUpper(c.Tables[i].Name)] = &c.Tables[i]
	}
	return &c, nil
}

// Lookup returns the table with the given name, case-insensitively.
func (c *Catalog) Lookup(name string) (*Table, bool) {
	t, ok := c.byName[strings.ToUpper(strings.TrimSpace(name))]
	return t, ok
}

// TableNames returns all table names in sorted order.
func (c *Catalog) TableNames() []string {
	names := make([]string, 0, len(c.Tables))
	for _, t := range c.Tables {
		names = append(names, t.Name)
	}
	sort.Strings(names)
	return names
}

// Context renders the full catalog as readable text for the semantic
// analysis prompt: every table with its columns and join patterns.
func (c *Catalog) Context() string {
	var sb strings.Builder
	sb.WriteString("## Database Schema\n\n")
	for _, t := range c.Tables {
		writeTable(&sb, &t)
	}
	return sb.String()
}

// FocusedContext renders only the named tables, for the SQL synthesis
// prompt. Unknown names are skipped; the caller has already validated
// them against the catalog.
func (c *Catalog) FocusedContext(tables []string) string {
	var sb strings.Builder
	sb.WriteString("## Relevant Tables\n\n")
	for _, name := range tables {
		if t, ok := c.Lookup(name); ok {
			writeTable(&sb, t)
		}
	}
	return sb.String()
}

func writeTable(sb *strings.Builder, t *Table) {
	fmt.Fprintf(sb, "### %s\n%s\n\nColumns:\n", t.Name, t.Description)
	for _, col := range t.Columns {
		fmt.Fprintf(sb, "- %s (%s): %s\n", col.Name, col.Type, col.Description)
	}
	if len(t.JoinHints) > 0 {
		sb.WriteString("\nJoin patterns:\n")
		for _, j := range t.JoinHints {
			fmt.Fprintf(sb, "- %s ON %s (%s)\n", j.To, j.Condition, j.Purpose)
		}
	}
	sb.WriteString("\n")
}
