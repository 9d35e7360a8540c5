// Package plugins is the registry of kv storage plugins
// available to configuration and tools.
package plugins

import (
	"github.com/jrife/kvmux/storage/kv"
	"github.com/jrife/kvmux/storage/kv/plugins/badger"
	"github.com/jrife/kvmux/storage/kv/plugins/bbolt"
	"github.com/jrife/kvmux/storage/kv/plugins/memory"
)

var plugins []kv.Plugin

func init() {
	plugins = append(plugins, memory.Plugins()...)
	plugins = append(plugins, bbolt.Plugins()...)
	plugins = append(plugins, badger.Plugins()...)
}

// Plugin returns the plugin whose name matches the given name.
// It returns nil if no such plugin is found.
func Plugin(name string) kv.Plugin {
	for _, plugin := range plugins {
		if plugin.Name() == name {
			return plugin
		}
	}

	return nil
}

// Plugins lists all the plugins that are available
func Plugins() []kv.Plugin {
	return plugins
}
