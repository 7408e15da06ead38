package resolver

// MRO returns the method-resolution order for a class: the class itself
// followed by its ancestors, left-to-right depth-first over INHERITS,
// cycle-safe. It is memoized per table instance.
//
// Base references that do not resolve to a registered class (an external
// base, or a name the ingester never matched) are skipped rather than
// halting the walk — MRO is best-effort over what pass 1 actually saw.
func (t *Table) MRO(classQN string) []string {
	t.mu.Lock()
	if cached, ok := t.mroCache[classQN]; ok {
		t.mu.Unlock()
		return cached
	}
	t.mu.Unlock()

	visited := make(map[string]bool)
	order := t.linearize(classQN, visited)

	t.mu.Lock()
	t.mroCache[classQN] = order
	t.mu.Unlock()
	return order
}

func (t *Table) linearize(classQN string, visited map[string]bool) []string {
	if visited[classQN] {
		// Cycle: return what we have so far without the repeated node.
		return nil
	}
	visited[classQN] = true

	t.mu.RLock()
	info, ok := t.classes[classQN]
	t.mu.RUnlock()
	if !ok {
		return []string{classQN}
	}

	order := []string{classQN}
	for _, base := range info.Bases {
		baseQN := t.resolveBaseReference(base, classQN)
		if baseQN == "" {
			continue
		}
		order = append(order, t.linearize(baseQN, visited)...)
	}
	return order
}

// resolveBaseReference resolves a raw base-class reference (as written in
// source) to a registered class QN, using the same-module and import-alias
// rules. Returns "" if it cannot be resolved against what pass 1 saw.
func (t *Table) resolveBaseReference(base, classQN string) string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if _, ok := t.classes[base]; ok {
		return base
	}

	moduleQN := moduleOf(classQN)
	candidate := moduleQN + "." + base
	if _, ok := t.classes[candidate]; ok {
		return candidate
	}

	if aliases, ok := t.importAliases[moduleQN]; ok {
		if target, ok := aliases[base]; ok {
			if _, ok := t.classes[target]; ok {
				return target
			}
		}
	}

	for qn := range t.classes {
		if simpleName(qn) == base {
			return qn
		}
	}
	return ""
}

func moduleOf(qn string) string {
	for i := len(qn) - 1; i >= 0; i-- {
		if qn[i] == '.' {
			return qn[:i]
		}
	}
	return qn
}
