package filestore

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Names of the entries a store keeps directly under its root.
const (
	LockFileName       = ".locked"
	DescriptorFileName = "filestore.yaml"
	StoreDirName       = "filestore"
	DeletedDirName     = "deleted"
	RollbackDirName    = "rollback"
)

// Layout holds the resolved absolute paths of a store root.
type Layout struct {
	Root       string
	Store      string
	Deleted    string
	Rollback   string
	Descriptor string
	Lock       string
}

// NewLayout resolves root to an absolute, symlink-free path and derives the
// store paths from it.
func NewLayout(root string) (Layout, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return Layout{}, err
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}

	return Layout{
		Root:       abs,
		Store:      filepath.Join(abs, StoreDirName),
		Deleted:    filepath.Join(abs, DeletedDirName),
		Rollback:   filepath.Join(abs, RollbackDirName),
		Descriptor: filepath.Join(abs, DescriptorFileName),
		Lock:       filepath.Join(abs, LockFileName),
	}, nil
}

// Descriptor is the recovery record written once when a store is created.
type Descriptor struct {
	CreatedAt    time.Time `yaml:"created_at"`
	StorePath    string    `yaml:"store_path"`
	DeletedPath  string    `yaml:"deleted_path"`
	RollbackPath string    `yaml:"rollback_path"`
	CreatedBy    string    `yaml:"created_by"`
}

// ReadDescriptor parses the descriptor of the store at layout.
func ReadDescriptor(layout Layout) (*Descriptor, error) {
	data, err := os.ReadFile(layout.Descriptor)
	if err != nil {
		return nil, err
	}

	var d Descriptor
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parse %s: %w", layout.Descriptor, err)
	}
	return &d, nil
}

// validate checks that the descriptor describes layout and that every
// directory it names exists.
func (d *Descriptor) validate(layout Layout) error {
	dirs := []struct {
		recorded, expected string
	}{
		{d.StorePath, layout.Store},
		{d.DeletedPath, layout.Deleted},
		{d.RollbackPath, layout.Rollback},
	}

	for _, dir := range dirs {
		if dir.recorded != dir.expected {
			return fmt.Errorf("descriptor path %q does not match %q", dir.recorded, dir.expected)
		}
		info, err := os.Stat(dir.recorded)
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return fmt.Errorf("%s is not a directory", dir.recorded)
		}
	}
	return nil
}

func writeDescriptor(layout Layout, now time.Time) error {
	d := Descriptor{
		CreatedAt:    now.UTC(),
		StorePath:    layout.Store,
		DeletedPath:  layout.Deleted,
		RollbackPath: layout.Rollback,
		CreatedBy:    currentUser(),
	}

	data, err := yaml.Marshal(&d)
	if err != nil {
		return err
	}
	return os.WriteFile(layout.Descriptor, data, 0644)
}

func currentUser() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	if name := os.Getenv("USER"); name != "" {
		return name
	}
	return "unknown"
}
