package api

// Plugin lets external code observe an engine without modifying it.
// Plugins register exclusively through the public AddEventListener
// surface; they get no privileged internal access.
//
// Install returns a cleanup function that undoes everything the plugin
// wired up. Cleanup runs on Uninstall and on engine Close.
type Plugin interface {
	Name() string
	Install(e Engine) (cleanup func(), err error)
}

// PluginFunc adapts a named install function into a Plugin.
type PluginFunc struct {
	PluginName string
	InstallFn  func(e Engine) (func(), error)
}

var _ Plugin = PluginFunc{}

func (p PluginFunc) Name() string { return p.PluginName }

func (p PluginFunc) Install(e Engine) (func(), error) {
	if p.InstallFn == nil {
		return func() {}, nil
	}
	return p.InstallFn(e)
}

// CompositePlugin installs several plugins as one unit. Installation is
// all-or-nothing: if one member fails, the already-installed members are
// cleaned up and the error is returned.
type CompositePlugin struct {
	PluginName string
	Members    []Plugin
}

var _ Plugin = CompositePlugin{}

func (c CompositePlugin) Name() string {
	if c.PluginName != "" {
		return c.PluginName
	}
	return "composite"
}

func (c CompositePlugin) Install(e Engine) (func(), error) {
	cleanups := make([]func(), 0, len(c.Members))
	undo := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}
	for _, m := range c.Members {
		if m == nil {
			continue
		}
		cleanup, err := m.Install(e)
		if err != nil {
			undo()
			return nil, err
		}
		if cleanup != nil {
			cleanups = append(cleanups, cleanup)
		}
	}
	return undo, nil
}
