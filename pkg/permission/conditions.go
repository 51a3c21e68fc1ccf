package permission

import (
	"fmt"
	"time"

	"github.com/mukhtar-github/taxpoynt-platform-sub003/pkg/roles"
)

// FlagChecker answers feature-flag conditions. Implemented by the feature
// evaluator; kept as a narrow interface here so the permission package does
// not depend on flag internals.
type FlagChecker interface {
	Enabled(flagKey string, subjectRoles []roles.Role, subjectPermissions []string, evalCtx map[string]any) bool
}

// ConditionInput carries the runtime state a condition is evaluated against.
type ConditionInput struct {
	Roles       []roles.Role
	Permissions []string
	Context     map[string]any
	Now         time.Time
	Flags       FlagChecker
}

// CheckCondition evaluates one condition against the supplied input. It
// returns whether the condition held and a human-readable description for the
// audit trail. Malformed condition data or context counts as a failed
// condition and never panics or errors.
func CheckCondition(cond Condition, input ConditionInput) (ok bool, description string) {
	description = cond.Description
	if description == "" {
		description = fmt.Sprintf("%s %s %v", cond.Type, cond.Operator, cond.Value)
	}

	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()

	switch cond.Type {
	case ConditionTenant:
		return compareValue(contextValue(input.Context, "tenant_id"), cond.Operator, cond.Value), description
	case ConditionOrganization:
		return compareValue(contextValue(input.Context, "organization_id"), cond.Operator, cond.Value), description
	case ConditionTime:
		return compareTime(input.Now, cond.Operator, cond.Value), description
	case ConditionFeatureFlag:
		key, isString := cond.Value.(string)
		if !isString || key == "" || input.Flags == nil {
			return false, description
		}
		return input.Flags.Enabled(key, input.Roles, input.Permissions, input.Context), description
	case ConditionCustom:
		spec, isMap := cond.Value.(map[string]any)
		if !isMap {
			return false, description
		}
		key, isString := spec["key"].(string)
		if !isString || key == "" {
			return false, description
		}
		return compareValue(contextValue(input.Context, key), cond.Operator, spec["value"]), description
	default:
		return false, description
	}
}

func contextValue(evalCtx map[string]any, key string) any {
	if evalCtx == nil {
		return nil
	}
	return evalCtx[key]
}

// compareValue applies equality and membership operators. Values are compared
// as their string forms so YAML/JSON catalogs and context maps interoperate.
func compareValue(actual any, op Operator, expected any) bool {
	if actual == nil {
		return false
	}
	actualStr := fmt.Sprintf("%v", actual)

	switch op {
	case OperatorEquals:
		return actualStr == fmt.Sprintf("%v", expected)
	case OperatorIn:
		return memberOf(actualStr, expected)
	case OperatorNotIn:
		return !memberOf(actualStr, expected)
	default:
		return false
	}
}

func memberOf(actual string, expected any) bool {
	switch list := expected.(type) {
	case []string:
		for _, v := range list {
			if actual == v {
				return true
			}
		}
	case []any:
		for _, v := range list {
			if actual == fmt.Sprintf("%v", v) {
				return true
			}
		}
	}
	return false
}

func compareTime(now time.Time, op Operator, value any) bool {
	switch op {
	case OperatorBefore:
		boundary, ok := parseTime(value)
		return ok && now.Before(boundary)
	case OperatorAfter:
		boundary, ok := parseTime(value)
		return ok && now.After(boundary)
	case OperatorBetween:
		window, isList := value.([]any)
		if !isList || len(window) != 2 {
			return false
		}
		from, okFrom := parseTime(window[0])
		until, okUntil := parseTime(window[1])
		return okFrom && okUntil && now.After(from) && now.Before(until)
	default:
		return false
	}
}

func parseTime(value any) (time.Time, bool) {
	switch v := value.(type) {
	case time.Time:
		return v, true
	case string:
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	default:
		return time.Time{}, false
	}
}
