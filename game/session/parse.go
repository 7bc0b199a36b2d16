package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// ParseFilter builds a Filter from loosely typed arguments, as they arrive
// from query strings or tool calls. Lists may be given as arrays or as
// comma-separated strings. Empty values are ignored.
func ParseFilter(args map[string]any) (Filter, error) {
	var f Filter
	var err error
	wrap := func(key string, err error) error {
		return fmt.Errorf("%w: %s: %v", ErrInvalidFilter, key, err)
	}

	f.GameType = strings.TrimSpace(cast.ToString(args["game_type"]))
	if f.Tags, err = StringList(args["tags"]); err != nil {
		return f, wrap("tags", err)
	}
	if f.TagsAll, err = StringList(args["tags_all"]); err != nil {
		return f, wrap("tags_all", err)
	}
	statusArg := args["statuses"]
	if present(args["status"]) {
		statusArg = args["status"]
	}
	statuses, err := StringList(statusArg)
	if err != nil {
		return f, wrap("statuses", err)
	}
	for _, s := range statuses {
		f.Statuses = append(f.Statuses, Status(strings.ToLower(s)))
	}

	if present(args["include_completed"]) {
		v, err := cast.ToBoolE(args["include_completed"])
		if err != nil {
			return f, wrap("include_completed", err)
		}
		f.IncludeCompleted = &v
	}
	for key, dst := range map[string]**float64{
		"min_age_hours":  &f.MinAgeHours,
		"max_age_hours":  &f.MaxAgeHours,
		"min_idle_hours": &f.MinIdleHours,
		"max_idle_hours": &f.MaxIdleHours,
	} {
		if !present(args[key]) {
			continue
		}
		v, err := cast.ToFloat64E(args[key])
		if err != nil {
			return f, wrap(key, err)
		}
		*dst = &v
	}
	for key, dst := range map[string]**time.Time{
		"created_after":  &f.CreatedAfter,
		"created_before": &f.CreatedBefore,
	} {
		if !present(args[key]) {
			continue
		}
		v, err := cast.ToTimeE(args[key])
		if err != nil {
			return f, wrap(key, err)
		}
		*dst = &v
	}
	for key, dst := range map[string]*int{"limit": &f.Limit, "offset": &f.Offset} {
		if !present(args[key]) {
			continue
		}
		v, err := cast.ToIntE(args[key])
		if err != nil {
			return f, wrap(key, err)
		}
		*dst = v
	}
	return f, nil
}

// ParseCleanupCriteria overlays loosely typed arguments on base.
func ParseCleanupCriteria(args map[string]any, base CleanupCriteria) (CleanupCriteria, error) {
	c := base
	wrap := func(key string, err error) error {
		return fmt.Errorf("%w: %s: %v", ErrInvalidCriteria, key, err)
	}

	for key, dst := range map[string]*float64{
		"max_age_hours":  &c.MaxAgeHours,
		"max_idle_hours": &c.MaxIdleHours,
	} {
		if !present(args[key]) {
			continue
		}
		v, err := cast.ToFloat64E(args[key])
		if err != nil {
			return c, wrap(key, err)
		}
		*dst = v
	}
	for key, dst := range map[string]*bool{
		"keep_completed": &c.KeepCompleted,
		"keep_active":    &c.KeepActive,
		"dry_run":        &c.DryRun,
	} {
		if !present(args[key]) {
			continue
		}
		v, err := cast.ToBoolE(args[key])
		if err != nil {
			return c, wrap(key, err)
		}
		*dst = v
	}
	var err error
	if present(args["keep_tagged"]) {
		if c.KeepTagged, err = StringList(args["keep_tagged"]); err != nil {
			return c, wrap("keep_tagged", err)
		}
	}
	if present(args["exclude_game_types"]) {
		if c.ExcludeGameTypes, err = StringList(args["exclude_game_types"]); err != nil {
			return c, wrap("exclude_game_types", err)
		}
	}
	return c, nil
}

// StringList reads a list argument given as an array or a comma-separated
// string.
func StringList(v any) ([]string, error) {
	if !present(v) {
		return nil, nil
	}
	var raw []string
	if s, ok := v.(string); ok {
		raw = strings.Split(s, ",")
	} else {
		var err error
		if raw, err = cast.ToStringSliceE(v); err != nil {
			return nil, err
		}
	}
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out, nil
}

// IDList reads a list of session ids given as an array or a comma-separated
// string. Entries are trimmed but blanks are kept, so a bulk operation can
// report each of them as a failed item.
func IDList(v any) ([]string, error) {
	if v == nil {
		return nil, nil
	}
	var raw []string
	if s, ok := v.(string); ok {
		if strings.TrimSpace(s) == "" {
			return nil, nil
		}
		raw = strings.Split(s, ",")
	} else {
		var err error
		if raw, err = cast.ToStringSliceE(v); err != nil {
			return nil, err
		}
	}
	out := make([]string, len(raw))
	for i, s := range raw {
		out[i] = strings.TrimSpace(s)
	}
	return out, nil
}

func present(v any) bool {
	if v == nil {
		return false
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) != ""
	}
	return true
}
