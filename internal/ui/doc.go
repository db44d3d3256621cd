// Package ui implements an interactive terminal catalog browser using
// bubbletea's Elm architecture.
//
// The TUI provides a two-view workflow:
//  1. [BundleListView] : Browse the curated bundle catalog
//  2. [BundleDetailView] : Inspect a bundle's price and source playlists
//
// The [Model] implements bubbletea/Elm's standard Init/Update/View pattern.
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, q) with
// contextual help displayed via charmbracelet/bubbles/help.
package ui
