package models

type ThemeMode string

const (
	ThemeModeLight  ThemeMode = "light"
	ThemeModeDark   ThemeMode = "dark"
	ThemeModeSystem ThemeMode = "system" // Follows host dark-mode preference
)

type FontSize string

const (
	FontSizeSmall  FontSize = "small"
	FontSizeMedium FontSize = "medium"
	FontSizeLarge  FontSize = "large"
)

type Density string

const (
	DensityCompact     Density = "compact"
	DensityStandard    Density = "standard"
	DensityComfortable Density = "comfortable"
)

type ColorPreset string

const (
	ColorPresetTechno     ColorPreset = "techno"
	ColorPresetOcean      ColorPreset = "ocean"
	ColorPresetForest     ColorPreset = "forest"
	ColorPresetSunset     ColorPreset = "sunset"
	ColorPresetMonochrome ColorPreset = "monochrome"
)

// Direction is the document text direction derived from the language.
type Direction string

const (
	DirectionLTR Direction = "ltr"
	DirectionRTL Direction = "rtl"
)

// SupportedLanguages lists the language tags the dashboard ships
// translations for.
var SupportedLanguages = []string{"en", "fr", "ar", "es", "de", "he"}

// rtlLanguages are the tags that map to a right-to-left script.
var rtlLanguages = map[string]bool{
	"ar": true,
	"he": true,
	"fa": true,
	"ur": true,
}

// DirectionFor returns the document direction for a language tag.
func DirectionFor(language string) Direction {
	if rtlLanguages[language] {
		return DirectionRTL
	}
	return DirectionLTR
}

// ValidPageSizes are the grid page sizes the UI offers.
var ValidPageSizes = []int{10, 25, 50, 100}

func (t ThemeMode) Valid() bool {
	switch t {
	case ThemeModeLight, ThemeModeDark, ThemeModeSystem:
		return true
	}
	return false
}

func (f FontSize) Valid() bool {
	switch f {
	case FontSizeSmall, FontSizeMedium, FontSizeLarge:
		return true
	}
	return false
}

func (d Density) Valid() bool {
	switch d {
	case DensityCompact, DensityStandard, DensityComfortable:
		return true
	}
	return false
}

func (c ColorPreset) Valid() bool {
	switch c {
	case ColorPresetTechno, ColorPresetOcean, ColorPresetForest, ColorPresetSunset, ColorPresetMonochrome:
		return true
	}
	return false
}

func ValidLanguage(tag string) bool {
	for _, l := range SupportedLanguages {
		if l == tag {
			return true
		}
	}
	return false
}

func ValidPageSize(size int) bool {
	for _, s := range ValidPageSizes {
		if s == size {
			return true
		}
	}
	return false
}
