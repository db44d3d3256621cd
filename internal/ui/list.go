package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"

	"github.com/illegible-ink/crates/internal/catalog"
)

var _ list.Item = bundleItem{}

// bundleItem wraps [catalog.Bundle] to implement [list.Item].
type bundleItem struct {
	bundle catalog.Bundle
}

func (i bundleItem) FilterValue() string { return i.bundle.Name }
func (i bundleItem) Title() string       { return i.bundle.Name }
func (i bundleItem) Description() string {
	return fmt.Sprintf("%d playlists • %s", len(i.bundle.Playlists), i.bundle.DisplayPrice())
}
