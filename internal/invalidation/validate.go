package invalidation

import (
	"fmt"
	"strings"

	"promptliano-client/internal/domain"
	"promptliano-client/internal/errors"

	"go.uber.org/zap"
)

// ValidateConfig checks that every relationship and rule references only
// registered entity types. Dangling references would otherwise surface as
// silent no-ops at dispatch time, which is almost always a misconfiguration
// discovered far too late.
//
// Intended use: strict mode at startup in development builds (fail fast),
// warn-only in production where the lenient dispatch-time no-op is preferred
// over a crash.
func ValidateConfig(registry *domain.Registry, table *Table, rules []Rule) error {
	var problems []string

	for _, rel := range table.Declared() {
		if !registry.Contains(rel.Entity) {
			problems = append(problems, fmt.Sprintf("relationship declared for unregistered entity %q", rel.Entity))
		}
		for _, related := range rel.Related {
			if !registry.Contains(related) {
				problems = append(problems, fmt.Sprintf("relationship %q references unregistered entity %q", rel.Entity, related))
			}
		}
	}

	for _, rule := range rules {
		if !registry.Contains(rule.Entity) {
			problems = append(problems, fmt.Sprintf("rule %q declared for unregistered entity %q", rule.ID, rule.Entity))
		}
		if rule.Operation != OpAny && !rule.Operation.Valid() {
			problems = append(problems, fmt.Sprintf("rule %q has invalid operation %q", rule.ID, rule.Operation))
		}
		for _, target := range rule.Targets {
			if !registry.Contains(target.Entity) {
				problems = append(problems, fmt.Sprintf("rule %q targets unregistered entity %q", rule.ID, target.Entity))
			}
		}
	}

	if len(problems) == 0 {
		return nil
	}
	return errors.NewConfiguration(
		errors.CodeDanglingReference,
		"invalid invalidation config: "+strings.Join(problems, "; "),
	)
}

// ValidateOrWarn runs ValidateConfig and either returns the error (strict) or
// logs each problem and carries on (lenient).
func ValidateOrWarn(registry *domain.Registry, table *Table, rules []Rule, strict bool, logger *zap.Logger) error {
	err := ValidateConfig(registry, table, rules)
	if err == nil {
		return nil
	}
	if strict {
		return err
	}
	logger.Warn("invalidation config has dangling references; affected dispatches will no-op",
		zap.Error(err),
	)
	return nil
}
