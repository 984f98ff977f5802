package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// The version suffix leaves room for algorithm migration.
const (
	DomainClassSpec = "ctorder/class/v1"
	DomainPlan      = "ctorder/plan/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// SpecHash computes a content hash over a set of class declarations.
// The hash is independent of the order of specs but not of the order of
// bases or members inside a spec.
func SpecHash(specs []ClassSpec) (string, error) {
	byName := make(map[string]any, len(specs))
	for _, s := range specs {
		byName[s.Name] = classSpecObject(s)
	}
	canonical, err := MarshalCanonical(byName)
	if err != nil {
		return "", fmt.Errorf("SpecHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainClassSpec, canonical), nil
}

// PlanHash computes a content hash of a plan.
func PlanHash(p Plan) (string, error) {
	steps := make([]any, len(p.Steps))
	for i, s := range p.Steps {
		steps[i] = map[string]any{
			"kind":   string(s.Kind),
			"target": s.Target,
			"class":  s.Class,
		}
	}
	obj := map[string]any{
		"class":        p.Class,
		"most_derived": p.MostDerived,
		"steps":        steps,
		"references":   append([]string{}, p.References...),
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("PlanHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainPlan, canonical), nil
}

// MustPlanHash is like PlanHash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustPlanHash(p Plan) string {
	h, err := PlanHash(p)
	if err != nil {
		panic(err)
	}
	return h
}

func classSpecObject(s ClassSpec) map[string]any {
	bases := make([]any, len(s.Bases))
	for i, b := range s.Bases {
		bases[i] = map[string]any{"class": b.Class, "virtual": b.Virtual}
	}
	members := make([]any, len(s.Members))
	for i, m := range s.Members {
		obj := map[string]any{"name": m.Name, "type": m.Type}
		if m.Default != nil {
			obj["default"] = initObject(*m.Default)
		}
		members[i] = obj
	}
	ctors := make(map[string]any, len(s.Constructors))
	for name, c := range s.Constructors {
		inits := make([]any, len(c.Inits))
		for i, e := range c.Inits {
			inits[i] = map[string]any{"target": e.Target, "init": initObject(e.Init)}
		}
		obj := map[string]any{"inits": inits, "body": actionsArray(c.Body)}
		if c.Delegate != nil {
			obj["delegate"] = initObject(*c.Delegate)
		}
		ctors[name] = obj
	}
	methods := make(map[string]any, len(s.Methods))
	for name, m := range s.Methods {
		methods[name] = map[string]any{"pure": m.Pure, "body": actionsArray(m.Body)}
	}
	return map[string]any{
		"name":         s.Name,
		"bases":        bases,
		"members":      members,
		"constructors": ctors,
		"destructor": map[string]any{
			"virtual": s.Destructor.Virtual,
			"body":    actionsArray(s.Destructor.Body),
		},
		"methods": methods,
	}
}

func initObject(i InitSpec) map[string]any {
	return map[string]any{"constructor": i.Constructor, "arg": i.Arg}
}

func actionsArray(actions []Action) []any {
	out := make([]any, len(actions))
	for i, a := range actions {
		out[i] = map[string]any{"op": a.Op, "value": a.Value}
	}
	return out
}
