package schema

// ActiveAliases returns the alias of t and of every table t is directly
// related to, through key relations or explicit joins.
func (t *Table) ActiveAliases() map[string]bool {
	active := map[string]bool{t.alias: true}
	for _, r := range append(t.Relations(), t.Joins()...) {
		if r.sourceAlias != "" {
			active[r.sourceAlias] = true
		}
		if r.targetAlias != "" {
			active[r.targetAlias] = true
		}
	}
	return active
}

// ResolveJoins returns the relations needed to reach tables referenced by
// t's statements that are not already active. For each such alias the
// owning table's relations are searched for the first one with an active
// endpoint. Resolution is a single hop: an alias two or more hops away is
// left unresolved.
func ResolveJoins(t *Table) []*Relation {
	active := t.ActiveAliases()

	var resolved RelationSet
	for _, stmt := range t.statements {
		alias := stmt.Alias()
		if alias == "" || active[alias] {
			continue
		}
		owner, ok := t.schema.TableByAlias(alias)
		if !ok {
			continue
		}
		for _, r := range owner.Relations() {
			if active[r.sourceAlias] || active[r.targetAlias] {
				resolved.Add(r)
				break
			}
		}
	}
	return resolved.All()
}
