package completion

import (
	"github.com/leapstack-labs/dashql/pkg/catalog"
	"github.com/leapstack-labs/dashql/pkg/core"
)

// completeQualified proposes the children of the objects a dotted path
// names: columns of aliases and tables, tables of schemas and schemas of
// databases.
func (e *engine) completeQualified(path []string) {
	switch len(path) {
	case 1:
		if t := e.resolveAlias(path[0]); t != nil {
			e.addColumns(t)
		} else {
			e.addColumnsOf(catalog.QualifiedTableName{Table: path[0]})
		}
		e.addSchemasOf(path[0])
		e.addTablesOf(catalog.QualifiedSchemaName{Schema: path[0]})
	case 2:
		e.addColumnsOf(catalog.QualifiedTableName{Schema: path[0], Table: path[1]})
		e.addTablesOf(catalog.QualifiedSchemaName{Database: path[0], Schema: path[1]})
	case 3:
		e.addColumnsOf(catalog.QualifiedTableName{Database: path[0], Schema: path[1], Table: path[2]})
	}
}

func (e *engine) qualify(name catalog.QualifiedTableName) catalog.QualifiedTableName {
	if e.snap != nil {
		return e.snap.Qualify(name)
	}
	return name.Qualify(catalog.DefaultDatabase, catalog.DefaultSchema)
}

// addDotted adds a candidate matching the text typed after the dot.
func (e *engine) addDotted(label string, tag core.NameTags, modifier int, obj Object) {
	match, ok := matchScore(label, e.query)
	if !ok {
		return
	}
	c := e.add(label, tag, e.scores.score(tag)+modifier+match)
	c.external = true
	c.Objects = append(c.Objects, obj)
}

// resolveAlias looks the name up in the cursor's scopes, innermost first.
func (e *engine) resolveAlias(alias string) *catalog.Table {
	if e.analyzed == nil {
		return nil
	}
	for _, sid := range e.cur.Scopes {
		if t, ok := e.analyzed.Scopes[sid].ResolveAlias(alias); ok {
			return t
		}
	}
	return nil
}

func (e *engine) resolveTable(name catalog.QualifiedTableName) *catalog.Table {
	name = e.qualify(name)
	if e.analyzed != nil {
		if t := e.analyzed.ResolveTable(name); t != nil {
			return t
		}
	}
	if e.snap == nil {
		return nil
	}
	ignore := core.NullID
	if e.analyzed != nil {
		ignore = e.analyzed.ExternalID()
	}
	t, err := e.snap.ResolveTable(name, ignore)
	if err != nil {
		return nil
	}
	return t
}

func (e *engine) addColumnsOf(name catalog.QualifiedTableName) {
	if t := e.resolveTable(name); t != nil {
		e.addColumns(t)
	}
}

func (e *engine) addColumns(t *catalog.Table) {
	db, schema := e.catalogIDs(t.Name.SchemaName())
	for i, col := range t.Columns {
		e.addDotted(col.Name, core.NameTagColumn, DotColumnScoreModifier, Object{
			Kind:        ObjectColumn,
			DatabaseID:  db,
			SchemaID:    schema,
			TableID:     t.ObjectID,
			ColumnIndex: uint32(i),
		})
	}
}

func (e *engine) addTablesOf(name catalog.QualifiedSchemaName) {
	if name.Database == "" {
		name.Database = e.qualify(catalog.QualifiedTableName{}).Database
	}
	db, schema := e.catalogIDs(name)
	add := func(table string, id core.ExternalObjectID) {
		e.addDotted(table, core.NameTagTable, DotTableScoreModifier, Object{
			Kind:        ObjectTable,
			DatabaseID:  db,
			SchemaID:    schema,
			TableID:     id,
			ColumnIndex: core.NullID,
		})
	}
	if e.analyzed != nil {
		for _, t := range e.analyzed.Tables() {
			if t.Name.SchemaName() == name {
				add(t.Name.Table, t.ObjectID)
			}
		}
	}
	if e.flat == nil {
		return
	}
	for _, s := range e.flat.Schemas {
		if s.Name != name.Schema || e.flat.Databases[s.FlatParentIdx].Name != name.Database {
			continue
		}
		for _, t := range e.flat.Tables[s.ChildBegin : s.ChildBegin+s.ChildCount] {
			add(t.Name, t.ObjectID)
		}
	}
}

func (e *engine) addSchemasOf(database string) {
	db, _ := e.catalogIDs(catalog.QualifiedSchemaName{Database: database})
	add := func(schema string, id uint32) {
		e.addDotted(schema, core.NameTagSchema, DotSchemaScoreModifier, Object{
			Kind:        ObjectSchema,
			DatabaseID:  db,
			SchemaID:    id,
			TableID:     core.NullExternalObjectID,
			ColumnIndex: core.NullID,
		})
	}
	if e.analyzed != nil {
		for _, s := range e.analyzed.SchemaDecls {
			if s.DatabaseName == database {
				add(s.SchemaName, s.SchemaID)
			}
		}
	}
	if e.flat == nil {
		return
	}
	for _, d := range e.flat.Databases {
		if d.Name != database {
			continue
		}
		for _, s := range e.flat.Schemas[d.ChildBegin : d.ChildBegin+d.ChildCount] {
			add(s.Name, s.SchemaID)
		}
	}
}

// catalogIDs returns the ids of a database and schema, preferring the
// script's own declarations.
func (e *engine) catalogIDs(name catalog.QualifiedSchemaName) (uint32, uint32) {
	db, schema := core.NullID, core.NullID
	if e.analyzed != nil {
		for _, s := range e.analyzed.SchemaDecls {
			if s.DatabaseName == name.Database {
				db = s.DatabaseID
				if s.SchemaName == name.Schema {
					return s.DatabaseID, s.SchemaID
				}
			}
		}
	}
	if e.snap == nil {
		return db, schema
	}
	if id, ok := e.snap.DatabaseID(name.Database); ok {
		db = id
	}
	if id, ok := e.snap.SchemaID(name); ok {
		schema = id
	}
	return db, schema
}
