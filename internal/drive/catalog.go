package drive

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"

	"karsync/internal/interfaces"
	"karsync/internal/models"
)

const (
	RemoteType    = "drive"
	DirectoryMime = "inode/directory"
)

// Catalog reads and registers Drive remotes through the rc daemon. Every
// call makes sure the daemon is up first.
type Catalog struct {
	client interfaces.RCloneClient
	daemon interfaces.DaemonManager
}

func NewCatalog(client interfaces.RCloneClient, daemon interfaces.DaemonManager) *Catalog {
	return &Catalog{client: client, daemon: daemon}
}

// Remotes returns the sorted names of configured Drive remotes
func (c *Catalog) Remotes(ctx context.Context) ([]string, error) {
	if err := c.daemon.EnsureRunning(ctx); err != nil {
		return nil, err
	}
	names, err := c.client.ListRemotesOfType(ctx, RemoteType)
	if err != nil {
		return nil, fmt.Errorf("failed to list remotes: %w", err)
	}
	return names, nil
}

// IsRegistered reports whether name is a configured Drive remote
func (c *Catalog) IsRegistered(ctx context.Context, name string) (bool, error) {
	names, err := c.Remotes(ctx)
	if err != nil {
		return false, err
	}
	return slices.Contains(names, name), nil
}

// Register stores token as the Drive remote name, replacing any previous one
func (c *Catalog) Register(ctx context.Context, name, token string) error {
	if err := c.daemon.EnsureRunning(ctx); err != nil {
		return err
	}

	req := models.RCloneConfigCreate{
		Name:       name,
		Type:       RemoteType,
		Parameters: map[string]interface{}{"token": token},
		Opt:        map[string]interface{}{"nonInteractive": true},
	}
	if err := c.client.ConfigCreate(ctx, req); err != nil {
		return fmt.Errorf("failed to create config: %w", err)
	}

	slog.Info("registered remote", "name", name, "type", RemoteType)
	return nil
}

// ListFiles lists the shared folder recursively
func (c *Catalog) ListFiles(ctx context.Context, source, remote string) ([]models.RemoteFile, error) {
	if strings.TrimSpace(remote) == "" {
		return nil, models.ErrMissingIdentity
	}
	if err := c.daemon.EnsureRunning(ctx); err != nil {
		return nil, err
	}

	items, err := c.client.ListFiles(ctx, SourceFs(remote, source))
	if err != nil {
		return nil, fmt.Errorf("list failed: %w", err)
	}
	return BuildListing(items), nil
}

// BuildListing converts rc entries, adds any parent directory the listing
// omitted, and sorts directories first then by name ignoring case.
func BuildListing(items []models.RCloneListItem) []models.RemoteFile {
	files := make([]models.RemoteFile, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		files = append(files, models.RemoteFile{
			Path:     item.Path,
			Name:     item.Name,
			IsDir:    item.IsDir,
			Size:     item.Size,
			MimeType: item.MimeType,
		})
		seen[item.Path] = struct{}{}
	}

	var parents []models.RemoteFile
	for _, f := range files {
		parts := strings.Split(f.Path, "/")
		for i := 1; i < len(parts); i++ {
			parent := strings.Join(parts[:i], "/")
			if _, ok := seen[parent]; ok {
				continue
			}
			seen[parent] = struct{}{}
			parents = append(parents, models.RemoteFile{
				Path:     parent,
				Name:     parts[i-1],
				IsDir:    true,
				MimeType: DirectoryMime,
			})
		}
	}
	files = append(files, parents...)

	sort.SliceStable(files, func(i, j int) bool {
		if files[i].IsDir != files[j].IsDir {
			return files[i].IsDir
		}
		return strings.ToLower(files[i].Name) < strings.ToLower(files[j].Name)
	})
	return files
}
