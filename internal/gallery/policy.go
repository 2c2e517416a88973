package gallery

import (
	"strings"

	"github.com/sleuthgo/galleryd/internal/datamodel"
	"github.com/sleuthgo/galleryd/internal/settings"
)

// EnablementPolicy resolves whether the gallery module is active for a case:
// a non-blank per-case ENABLED setting wins; otherwise the global default
// preference applies. No case means disabled.
type EnablementPolicy struct{}

// NewEnablementPolicy creates the policy.
func NewEnablementPolicy() *EnablementPolicy {
	return &EnablementPolicy{}
}

// IsEnabledForCase reports whether the gallery module is enabled for theCase.
func (p *EnablementPolicy) IsEnabledForCase(theCase *datamodel.Case) bool {
	if theCase == nil {
		return false
	}
	setting := settings.NewCaseProperties(theCase).GetConfigSetting(ModuleName, settings.ENABLED)
	if strings.TrimSpace(setting) != "" {
		return strings.EqualFold(strings.TrimSpace(setting), "true")
	}
	return settings.EnabledByDefault()
}

// SetEnabledForCase persists a per-case override.
func (p *EnablementPolicy) SetEnabledForCase(theCase *datamodel.Case, enabled bool) error {
	if theCase == nil {
		return ErrNoCaseOpen
	}
	value := "false"
	if enabled {
		value = "true"
	}
	return settings.NewCaseProperties(theCase).SetConfigSetting(ModuleName, settings.ENABLED, value)
}
