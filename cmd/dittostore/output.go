package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/disiqueira/gotree/v3"
	"github.com/dustin/go-humanize"
	"github.com/marmos91/dittostore/pkg/metadata"
	"gopkg.in/yaml.v3"
)

// entry is one listed file.
type entry struct {
	id   string
	data metadata.Record
}

type listOptions struct {
	removed bool
	tree    bool
	long    bool
}

// parseMeta converts key=value flags into a record. The result is never nil.
func parseMeta(pairs []string) (metadata.Record, error) {
	rec := metadata.Record{}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --meta %q: expected key=value", pair)
		}
		if key == metadata.PathField {
			return nil, fmt.Errorf("invalid --meta %q: %s is managed by the store", pair, metadata.PathField)
		}
		rec[key] = value
	}
	return rec, nil
}

// printRecord writes a record as YAML with the id first.
func printRecord(w io.Writer, id string, rec metadata.Record) error {
	data, err := yaml.Marshal(struct {
		ID     string          `yaml:"id"`
		Fields metadata.Record `yaml:"fields"`
	}{id, rec})
	if err != nil {
		return fmt.Errorf("render record %s: %w", id, err)
	}
	_, err = w.Write(data)
	return err
}

// printEntries renders entries as plain ids, a long table or a tree rooted
// at the store root.
func printEntries(w io.Writer, root string, entries []entry, opts listOptions) error {
	sort.Slice(entries, func(i, j int) bool { return entries[i].id < entries[j].id })

	switch {
	case opts.tree:
		_, err := io.WriteString(w, renderTree(root, entries))
		return err
	case opts.long:
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(tw, "ID\tSIZE\tMODIFIED\tNAME")
		for _, e := range entries {
			size, modified := "-", "-"
			if info, err := os.Stat(e.data.Path()); err == nil {
				size = humanize.Bytes(uint64(info.Size()))
				modified = humanize.Time(info.ModTime())
			}
			name := e.data.String(metadata.OriginalFileField)
			if name == "" {
				name = "-"
			}
			_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.id, size, modified, name)
		}
		return tw.Flush()
	default:
		for _, e := range entries {
			if _, err := fmt.Fprintln(w, e.id); err != nil {
				return err
			}
		}
		return nil
	}
}

// renderTree places every entry at its path relative to root. Entries whose
// path lies outside root are listed directly under the root node.
func renderTree(root string, entries []entry) string {
	tree := gotree.New(root)
	dirs := map[string]gotree.Tree{".": tree}

	var dirOf func(dir string) gotree.Tree
	dirOf = func(dir string) gotree.Tree {
		if node, ok := dirs[dir]; ok {
			return node
		}
		node := dirOf(filepath.Dir(dir)).Add(filepath.Base(dir))
		dirs[dir] = node
		return node
	}

	for _, e := range entries {
		rel, err := filepath.Rel(root, e.data.Path())
		if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
			tree.Add(e.id)
			continue
		}
		dirOf(filepath.Dir(rel)).Add(filepath.Base(rel))
	}

	return tree.Print()
}
