package settings

import (
	"sort"
	"strings"

	"github.com/sleuthgo/galleryd/internal/datamodel"
)

// Tag settings live in the Tags namespace under the application property
// store, as semicolon-joined records of comma-separated attributes.
const (
	TagsSettingsName   = "Tags"
	TagNamesSettingKey = "TagNames"
)

// Standard tag names that must always exist.
var (
	standardTagNames = []string{"Bookmark", "Follow Up", "Notable Item"}
	notableTagNames  = map[string]bool{"Notable Item": true}
)

// TagNameDefinition is one tag type: display name, description, color and
// the known-status the tag denotes. Definitions are keyed by display name.
type TagNameDefinition struct {
	DisplayName string
	Description string
	Color       string
	Status      datamodel.KnownStatus
}

// IsNotable reports whether applying this tag marks content as notable.
func (d TagNameDefinition) IsNotable() bool {
	return d.Status == datamodel.KnownBad
}

// settingsFormat renders one definition as a settings record.
func (d TagNameDefinition) settingsFormat() string {
	return strings.Join([]string{d.DisplayName, d.Description, d.Color, d.Status.String()}, ",")
}

// ParseTagNameDefinitions decodes the TagNames setting value. Records have
// four comma-separated attributes; three-attribute records come from the
// legacy format, which carried no status, and are upgraded using the
// standard notable-tags list. Standard tags missing from the setting are
// appended so they always exist.
func ParseTagNameDefinitions(setting string) []TagNameDefinition {
	byName := make(map[string]TagNameDefinition)

	if setting != "" {
		for _, record := range strings.Split(setting, ";") {
			attrs := strings.Split(record, ",")
			switch len(attrs) {
			case 4:
				byName[attrs[0]] = TagNameDefinition{
					DisplayName: attrs[0],
					Description: attrs[1],
					Color:       attrs[2],
					Status:      datamodel.ParseKnownStatus(attrs[3]),
				}
			case 3:
				status := datamodel.KnownUnknown
				if notableTagNames[attrs[0]] {
					status = datamodel.KnownBad
				}
				byName[attrs[0]] = TagNameDefinition{
					DisplayName: attrs[0],
					Description: attrs[1],
					Color:       attrs[2],
					Status:      status,
				}
			}
		}
	}

	for _, name := range standardTagNames {
		if _, ok := byName[name]; ok {
			continue
		}
		status := datamodel.KnownUnknown
		if notableTagNames[name] {
			status = datamodel.KnownBad
		}
		byName[name] = TagNameDefinition{DisplayName: name, Status: status}
	}

	defs := make([]TagNameDefinition, 0, len(byName))
	for _, d := range byName {
		defs = append(defs, d)
	}
	sort.Slice(defs, func(i, j int) bool {
		return strings.ToLower(defs[i].DisplayName) < strings.ToLower(defs[j].DisplayName)
	})
	return defs
}

// FormatTagNameDefinitions encodes definitions as the TagNames setting value.
func FormatTagNameDefinitions(defs []TagNameDefinition) string {
	records := make([]string, 0, len(defs))
	for _, d := range defs {
		records = append(records, d.settingsFormat())
	}
	return strings.Join(records, ";")
}

// StandardTagNames returns the always-present tag display names.
func StandardTagNames() []string {
	out := make([]string, len(standardTagNames))
	copy(out, standardTagNames)
	return out
}

// LoadTagNameDefinitions reads tag definitions from the application property
// store, merging in the standard tags.
func LoadTagNameDefinitions(ps *PropertyStore) []TagNameDefinition {
	return ParseTagNameDefinitions(ps.GetConfigSetting(TagsSettingsName, TagNamesSettingKey))
}

// SaveTagNameDefinitions writes tag definitions to the application property
// store.
func SaveTagNameDefinitions(ps *PropertyStore, defs []TagNameDefinition) error {
	return ps.SetConfigSetting(TagsSettingsName, TagNamesSettingKey, FormatTagNameDefinitions(defs))
}
