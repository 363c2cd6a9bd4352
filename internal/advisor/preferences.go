package advisor

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/KaramelBytes/co2lens-cli/internal/analysis"
	"github.com/KaramelBytes/co2lens-cli/internal/utils"
)

// Preference keys accepted by ParsePreferences.
const (
	PrefFocusEntity    = "focus_entity"
	PrefEmissionTarget = "emission_target"
)

// PreferenceKeys lists the supported keys in display order.
var PreferenceKeys = []string{PrefFocusEntity, PrefEmissionTarget}

// Preferences are caller-held personalization inputs.
type Preferences struct {
	FocusEntity    string   `json:"focus_entity,omitempty" validate:"max=200"`
	EmissionTarget *float64 `json:"emission_target,omitempty" validate:"omitempty,gte=0"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// ParsePreferences converts key/value pairs into Preferences. "focus_country"
// is accepted as an alias of focus_entity; other unknown keys are rejected.
func ParsePreferences(kv map[string]string) (Preferences, error) {
	var p Preferences
	keys := make([]string, 0, len(kv))
	for k := range kv {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := strings.TrimSpace(kv[k])
		switch strings.ToLower(strings.TrimSpace(k)) {
		case PrefFocusEntity, "focus_country":
			p.FocusEntity = v
		case PrefEmissionTarget:
			if v == "" {
				continue
			}
			x, err := strconv.ParseFloat(strings.ReplaceAll(v, ",", ""), 64)
			if err != nil {
				return Preferences{}, fmt.Errorf("preference %s: %q is not a number", PrefEmissionTarget, v)
			}
			p.EmissionTarget = &x
		default:
			return Preferences{}, fmt.Errorf("unknown preference %q (supported: %s)", k, strings.Join(PreferenceKeys, ", "))
		}
	}
	if err := validate.Struct(p); err != nil {
		return Preferences{}, fmt.Errorf("invalid preferences: %w", err)
	}
	return p, nil
}

// Map renders the preferences back into key/value form.
func (p Preferences) Map() map[string]string {
	out := map[string]string{}
	if p.FocusEntity != "" {
		out[PrefFocusEntity] = p.FocusEntity
	}
	if p.EmissionTarget != nil {
		out[PrefEmissionTarget] = strconv.FormatFloat(*p.EmissionTarget, 'f', -1, 64)
	}
	return out
}

// Personalize derives preference-driven recommendations from ctx.
func Personalize(ctx *analysis.Context, p Preferences) []string {
	out := []string{}
	if ctx == nil {
		return out
	}
	if p.FocusEntity != "" {
		for _, e := range ctx.Entities {
			if strings.EqualFold(e, p.FocusEntity) {
				out = append(out, fmt.Sprintf("Focus on %s emission reduction strategies", e))
				break
			}
		}
	}
	if p.EmissionTarget != nil {
		if need := ctx.Total - *p.EmissionTarget; need > 0 {
			out = append(out, fmt.Sprintf("Need to reduce emissions by %s tonnes to meet target", utils.Thousands(need)))
		}
	}
	return out
}
