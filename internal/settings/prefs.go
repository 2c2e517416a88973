package settings

import (
	"github.com/spf13/viper"
)

// Viper keys for global gallery preferences. Defaults are registered by the
// CLI layer; these accessors are the only readers.
const (
	keyEnabledByDefault = "gallery.enabled_by_default"
	keyGroupWarning     = "gallery.group_categorization_warning_disabled"
)

// EnabledByDefault reports whether the gallery module is enabled for cases
// that carry no per-case override.
func EnabledByDefault() bool {
	return viper.GetBool(keyEnabledByDefault)
}

// SetEnabledByDefault updates the global default enablement preference.
func SetEnabledByDefault(enabled bool) {
	viper.Set(keyEnabledByDefault, enabled)
}

// GroupCategorizationWarningDisabled reports whether the bulk-categorization
// confirmation is suppressed.
func GroupCategorizationWarningDisabled() bool {
	return viper.GetBool(keyGroupWarning)
}

// SetGroupCategorizationWarningDisabled updates the warning suppression flag.
func SetGroupCategorizationWarningDisabled(disabled bool) {
	viper.Set(keyGroupWarning, disabled)
}
