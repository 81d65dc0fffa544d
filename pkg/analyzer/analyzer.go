package analyzer

import (
	"log/slog"
	"strings"
	"time"

	"github.com/leapstack-labs/dashql/pkg/catalog"
	"github.com/leapstack-labs/dashql/pkg/core"
	"github.com/leapstack-labs/dashql/pkg/names"
	"github.com/leapstack-labs/dashql/pkg/parser"
)

// Option configures an analysis.
type Option func(*pass)

// WithOrigin sets the origin reported by the analyzed script. Scripts that
// are analyzed repeatedly must pass a stable origin so that reloading them
// into the catalog replaces their previous entry. Defaults to the parsed
// script.
func WithOrigin(origin any) Option {
	return func(p *pass) {
		if origin != nil {
			p.origin = origin
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *pass) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// Analyze resolves the names of a parsed script against a catalog snapshot.
// The script's own external id in the snapshot must be free or owned by an
// earlier analysis with the same origin, otherwise a *catalog.CollisionError
// is returned. Table names declared by two catalog entries of equal rank
// fail the same way.
func Analyze(parsed *parser.ParsedScript, snap *catalog.Snapshot, opts ...Option) (*AnalyzedScript, error) {
	if parsed == nil {
		return nil, core.ErrScriptNotParsed
	}
	if snap == nil {
		return nil, core.ErrNullPointer
	}
	start := time.Now()
	p := newPass(parsed, snap)
	for _, opt := range opts {
		opt(p)
	}
	p.out.origin = p.origin

	if err := p.checkOwnership(); err != nil {
		return nil, err
	}
	p.visit()
	if err := p.finish(); err != nil {
		return nil, err
	}
	p.out.Duration = time.Since(start)
	p.logger.Debug("script analyzed",
		"external_id", p.externalID,
		"tables", len(p.tables),
		"table_refs", len(p.out.TableRefs),
		"column_refs", len(p.out.ColumnRefs),
		"errors", len(p.out.Errors),
		"duration", p.out.Duration)
	return p.out, nil
}

type pendingColumn struct {
	name   string
	nodeID uint32
	loc    core.Location
}

// nodeState collects what a subtree contributes until a scope claims it.
type nodeState struct {
	scopes     []uint32
	columns    []pendingColumn
	tableRefs  []uint32
	columnRefs []uint32
}

type pass struct {
	parsed     *parser.ParsedScript
	nodes      []core.Node
	snap       *catalog.Snapshot
	logger     *slog.Logger
	origin     any
	externalID uint32
	names      *names.Registry
	out        *AnalyzedScript
	states     []nodeState

	tables         []*catalog.Table
	tableIDs       map[*catalog.Table][2]uint32
	databaseIDs    map[string]uint32
	schemaIDs      map[catalog.QualifiedSchemaName]uint32
	nextDatabaseID uint32
	nextSchemaID   uint32
}

func newPass(parsed *parser.ParsedScript, snap *catalog.Snapshot) *pass {
	registry := parsed.Names.Clone()
	p := &pass{
		parsed:         parsed,
		nodes:          parsed.Nodes,
		snap:           snap,
		logger:         slog.New(slog.DiscardHandler),
		origin:         parsed,
		externalID:     parsed.ExternalID,
		names:          registry,
		states:         make([]nodeState, len(parsed.Nodes)),
		tableIDs:       make(map[*catalog.Table][2]uint32),
		databaseIDs:    make(map[string]uint32),
		schemaIDs:      make(map[catalog.QualifiedSchemaName]uint32),
		nextDatabaseID: snap.NextDatabaseID(),
		nextSchemaID:   snap.NextSchemaID(),
	}
	p.out = &AnalyzedScript{
		Parsed:         parsed,
		CatalogVersion: snap.Version(),
		externalID:     parsed.ExternalID,
		names:          registry,
		scopeRoots:     make(map[uint32]uint32),
	}
	if id, ok := registry.Lookup(snap.DefaultDatabase()); ok {
		registry.AddTags(id, core.NameTagDatabase)
	}
	if id, ok := registry.Lookup(snap.DefaultSchema()); ok {
		registry.AddTags(id, core.NameTagSchema)
	}
	return p
}

func (p *pass) checkOwnership() error {
	e, ok := p.snap.Entry(p.externalID)
	if !ok {
		return nil
	}
	if se, isScript := e.(catalog.ScriptEntry); isScript && se.Kind() == catalog.EntryScript && se.Origin() == p.origin {
		return nil
	}
	return &catalog.CollisionError{ExternalID: p.externalID, First: e.ExternalID(), Second: p.externalID}
}

func (p *pass) visit() {
	for i := range p.nodes {
		id := uint32(i)
		st := &p.states[id]
		switch p.nodes[id].Type {
		case core.NodeColumnDef:
			if nameID, ok := p.parsed.Child(id, core.AttrColumnDefName); ok && p.nodes[nameID].Type == core.NodeName {
				st.columns = append(st.columns, pendingColumn{
					name:   p.tagName(nameID, core.NameTagColumn),
					nodeID: id,
					loc:    p.nodes[id].Loc,
				})
			}
			p.mergeChildren(st, id)
		case core.NodeColumnRef:
			p.addColumnRef(st, id)
			p.mergeChildren(st, id)
		case core.NodeTableRef:
			p.addTableRef(st, id)
			p.mergeChildren(st, id)
		case core.NodeSelect:
			p.mergeChildren(st, id)
			p.createScope(st, id)
		case core.NodeCreate:
			p.mergeChildren(st, id)
			p.declareTable(st, id)
			p.createScope(st, id)
		case core.NodeCreateAs:
			p.mergeChildren(st, id)
			p.declareTableAs(id)
		default:
			p.mergeChildren(st, id)
		}
	}
}

func (p *pass) mergeChildren(dst *nodeState, id uint32) {
	begin, end := p.nodes[id].Children()
	for i := begin; i < end; i++ {
		src := &p.states[i]
		dst.scopes = append(dst.scopes, src.scopes...)
		dst.columns = append(dst.columns, src.columns...)
		dst.tableRefs = append(dst.tableRefs, src.tableRefs...)
		dst.columnRefs = append(dst.columnRefs, src.columnRefs...)
		*src = nodeState{}
	}
}

func (p *pass) createScope(st *nodeState, nodeID uint32) {
	sid := uint32(len(p.out.Scopes))
	stmt, _ := p.parsed.StatementOf(nodeID)
	for _, child := range st.scopes {
		p.out.Scopes[child].Parent = sid
	}
	for _, ref := range st.tableRefs {
		p.out.TableRefs[ref].ScopeID = sid
	}
	for _, ref := range st.columnRefs {
		p.out.ColumnRefs[ref].ScopeID = sid
	}
	p.out.Scopes = append(p.out.Scopes, NameScope{
		ID:          sid,
		NodeID:      nodeID,
		StatementID: stmt,
		Parent:      core.NullID,
		Children:    st.scopes,
		TableRefs:   st.tableRefs,
		ColumnRefs:  st.columnRefs,
		tables:      make(map[string]*catalog.Table),
	})
	p.out.scopeRoots[nodeID] = sid
	*st = nodeState{scopes: []uint32{sid}}
}

func (p *pass) tagName(nameID uint32, tag core.NameTags) string {
	id := p.nodes[nameID].ChildrenBeginOrValue
	p.names.AddTags(id, tag)
	return p.names.Text(id)
}

// namePath returns the NAME node ids of a name path array. Trailing dots are
// skipped, any other element makes the path unusable.
func (p *pass) namePath(arrayID uint32) []uint32 {
	if arrayID == core.NullID || p.nodes[arrayID].Type != core.NodeArray {
		return nil
	}
	begin, end := p.nodes[arrayID].Children()
	path := make([]uint32, 0, end-begin)
	for i := begin; i < end; i++ {
		switch p.nodes[i].Type {
		case core.NodeTrailingDot:
		case core.NodeName:
			path = append(path, i)
		default:
			return nil
		}
	}
	return path
}

func (p *pass) readTableName(arrayID uint32) (catalog.QualifiedTableName, bool) {
	path := p.namePath(arrayID)
	var name catalog.QualifiedTableName
	switch len(path) {
	case 3:
		name.Database = p.tagName(path[0], core.NameTagDatabase)
		name.Schema = p.tagName(path[1], core.NameTagSchema)
		name.Table = p.tagName(path[2], core.NameTagTable)
	case 2:
		name.Schema = p.tagName(path[0], core.NameTagSchema)
		name.Table = p.tagName(path[1], core.NameTagTable)
	case 1:
		name.Table = p.tagName(path[0], core.NameTagTable)
	default:
		return name, false
	}
	return p.snap.Qualify(name), true
}

func (p *pass) readColumnName(arrayID uint32) (alias, column string, ok bool) {
	path := p.namePath(arrayID)
	switch len(path) {
	case 2:
		return p.tagName(path[0], core.NameTagAlias), p.tagName(path[1], core.NameTagColumn), true
	case 1:
		return "", p.tagName(path[0], core.NameTagColumn), true
	default:
		return "", "", false
	}
}

func (p *pass) addColumnRef(st *nodeState, id uint32) {
	pathID, ok := p.parsed.Child(id, core.AttrColumnRefPath)
	if !ok {
		return
	}
	alias, column, ok := p.readColumnName(pathID)
	if !ok {
		return
	}
	idx := uint32(len(p.out.ColumnRefs))
	p.out.ColumnRefs = append(p.out.ColumnRefs, ColumnReference{
		ID:          core.NewExternalObjectID(p.externalID, idx),
		NodeID:      id,
		PathNodeID:  pathID,
		StatementID: core.NullID,
		ScopeID:     core.NullID,
		Loc:         p.nodes[id].Loc,
		TableAlias:  alias,
		Column:      column,
		DatabaseID:  core.NullID,
		SchemaID:    core.NullID,
		TableID:     core.NullExternalObjectID,
		ColumnIndex: core.NullID,
	})
	st.columnRefs = append(st.columnRefs, idx)
}

func (p *pass) addTableRef(st *nodeState, id uint32) {
	nameID, ok := p.parsed.Child(id, core.AttrTableRefName)
	if !ok {
		return
	}
	name, ok := p.readTableName(nameID)
	if !ok {
		return
	}
	var alias string
	if aliasID, ok := p.parsed.Child(id, core.AttrTableRefAlias); ok && p.nodes[aliasID].Type == core.NodeName {
		alias = p.tagName(aliasID, core.NameTagAlias)
	}
	idx := uint32(len(p.out.TableRefs))
	p.out.TableRefs = append(p.out.TableRefs, TableReference{
		ID:          core.NewExternalObjectID(p.externalID, idx),
		NodeID:      id,
		NameNodeID:  nameID,
		StatementID: core.NullID,
		ScopeID:     core.NullID,
		Loc:         p.nodes[id].Loc,
		Name:        name,
		Alias:       alias,
		DatabaseID:  core.NullID,
		SchemaID:    core.NullID,
		TableID:     core.NullExternalObjectID,
	})
	st.tableRefs = append(st.tableRefs, idx)
}

func (p *pass) declareTable(st *nodeState, id uint32) {
	columns := st.columns
	st.columns = nil
	nameID, ok := p.parsed.Child(id, core.AttrCreateTableName)
	if !ok {
		return
	}
	name, ok := p.readTableName(nameID)
	if !ok {
		return
	}
	out := make([]catalog.Column, 0, len(columns))
	for _, c := range columns {
		out = append(out, catalog.Column{Name: c.name, NodeID: c.nodeID, Loc: c.loc})
	}
	p.addTable(id, name, out)
}

// declareTableAs declares the table of CREATE TABLE AS with the output
// column names of its query that can be named.
func (p *pass) declareTableAs(id uint32) {
	nameID, ok := p.parsed.Child(id, core.AttrCreateTableName)
	if !ok {
		return
	}
	name, ok := p.readTableName(nameID)
	if !ok {
		return
	}
	var columns []catalog.Column
	if stmtID, ok := p.parsed.Child(id, core.AttrCreateAsStatement); ok {
		columns = p.resultColumns(stmtID)
	}
	p.addTable(id, name, columns)
}

func (p *pass) resultColumns(selectID uint32) []catalog.Column {
	// The first input of a set operation names the columns.
	for {
		inputID, ok := p.parsed.Child(selectID, core.AttrSelectCombineInput)
		if !ok {
			break
		}
		begin, end := p.nodes[inputID].Children()
		if begin == end {
			break
		}
		selectID = begin
	}
	targetsID, ok := p.parsed.Child(selectID, core.AttrSelectTargets)
	if !ok {
		return nil
	}
	var columns []catalog.Column
	begin, end := p.nodes[targetsID].Children()
	for i := begin; i < end; i++ {
		if p.nodes[i].Type != core.NodeResultTarget {
			continue
		}
		name := ""
		if nameID, ok := p.parsed.Child(i, core.AttrResultTargetName); ok {
			name = p.tagName(nameID, core.NameTagColumn)
		} else if valueID, ok := p.parsed.Child(i, core.AttrResultTargetValue); ok && p.nodes[valueID].Type == core.NodeColumnRef {
			if pathID, ok := p.parsed.Child(valueID, core.AttrColumnRefPath); ok {
				if path := p.namePath(pathID); len(path) > 0 {
					name = p.names.Text(p.nodes[path[len(path)-1]].ChildrenBeginOrValue)
				}
			}
		}
		if name != "" {
			columns = append(columns, catalog.Column{Name: name, NodeID: i, Loc: p.nodes[i].Loc})
		}
	}
	return columns
}

func (p *pass) addTable(nodeID uint32, name catalog.QualifiedTableName, columns []catalog.Column) {
	db, schema := p.registerSchema(name.Database, name.Schema)
	t := catalog.NewTable(core.NewExternalObjectID(p.externalID, uint32(len(p.tables))), name, columns)
	t.NodeID = nodeID
	t.Loc = p.nodes[nodeID].Loc
	t.StatementID, _ = p.parsed.StatementOf(nodeID)
	p.tables = append(p.tables, t)
	p.tableIDs[t] = [2]uint32{db, schema}
}

// registerSchema returns catalog ids for a declared schema. Names the
// catalog does not know yet get the ids the catalog will assign when the
// script is loaded.
func (p *pass) registerSchema(database, schema string) (uint32, uint32) {
	dbID, ok := p.databaseIDs[database]
	if !ok {
		if id, found := p.snap.DatabaseID(database); found {
			dbID = id
		} else {
			dbID = p.nextDatabaseID
			p.nextDatabaseID++
		}
		p.databaseIDs[database] = dbID
		p.out.Databases = append(p.out.Databases, DatabaseDeclaration{Name: database, DatabaseID: dbID})
	}
	key := catalog.QualifiedSchemaName{Database: database, Schema: schema}
	schemaID, ok := p.schemaIDs[key]
	if !ok {
		if id, found := p.snap.SchemaID(key); found {
			schemaID = id
		} else {
			schemaID = p.nextSchemaID
			p.nextSchemaID++
		}
		p.schemaIDs[key] = schemaID
		p.out.SchemaDecls = append(p.out.SchemaDecls, SchemaDeclaration{
			DatabaseName: database,
			SchemaName:   schema,
			DatabaseID:   dbID,
			SchemaID:     schemaID,
		})
	}
	return dbID, schemaID
}

// catalogIDs returns the database and schema ids of a resolved table.
func (p *pass) catalogIDs(t *catalog.Table) (uint32, uint32) {
	if ids, ok := p.tableIDs[t]; ok {
		return ids[0], ids[1]
	}
	db, ok := p.snap.DatabaseID(t.Name.Database)
	if !ok {
		db = core.NullID
	}
	schema, ok := p.snap.SchemaID(t.Name.SchemaName())
	if !ok {
		schema = core.NullID
	}
	return db, schema
}

func (p *pass) finish() error {
	p.out.TableIndex = catalog.NewTableIndex(p.tables)

	var stack []uint32
	for i := len(p.out.Scopes) - 1; i >= 0; i-- {
		if p.out.Scopes[i].Parent == core.NullID {
			stack = append(stack, uint32(i))
		}
	}
	for len(stack) > 0 {
		sid := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if err := p.resolveTableRefs(sid); err != nil {
			return err
		}
		p.resolveColumnRefs(sid)
		children := p.out.Scopes[sid].Children
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, children[i])
		}
	}

	for i := range p.out.TableRefs {
		p.out.TableRefs[i].StatementID, _ = p.parsed.StatementOf(p.out.TableRefs[i].NodeID)
	}
	for i := range p.out.ColumnRefs {
		p.out.ColumnRefs[i].StatementID, _ = p.parsed.StatementOf(p.out.ColumnRefs[i].NodeID)
	}
	p.buildIndexes()
	return nil
}

func (p *pass) resolveTableRefs(sid uint32) error {
	scope := &p.out.Scopes[sid]
	for _, ri := range scope.TableRefs {
		ref := &p.out.TableRefs[ri]
		t := p.out.TableIndex.ResolveTable(ref.Name)
		if t == nil {
			var err error
			if t, err = p.snap.ResolveTable(ref.Name, p.externalID); err != nil {
				return err
			}
		}
		if t == nil {
			continue
		}
		ref.Resolved = true
		ref.TableID = t.ObjectID
		ref.DatabaseID, ref.SchemaID = p.catalogIDs(t)

		alias := ref.Alias
		if alias == "" {
			alias = t.Name.Table
		}
		if _, dup := scope.tables[alias]; dup {
			p.out.Errors = append(p.out.Errors, &Error{
				Type:    ErrDuplicateTableAlias,
				NodeID:  ref.NodeID,
				Loc:     ref.Loc,
				Message: "duplicate table alias " + names.Quote(alias),
			})
			continue
		}
		scope.tables[alias] = t
		scope.aliases = append(scope.aliases, alias)
	}
	return nil
}

func (p *pass) resolveColumnRefs(sid uint32) {
	pending := make([]uint32, 0, len(p.out.Scopes[sid].ColumnRefs))
	pending = append(pending, p.out.Scopes[sid].ColumnRefs...)
	for target := sid; target != core.NullID && len(pending) > 0; target = p.out.Scopes[target].Parent {
		scope := &p.out.Scopes[target]
		next := pending[:0]
		for _, ci := range pending {
			if !p.resolveColumn(&p.out.ColumnRefs[ci], scope) {
				next = append(next, ci)
			}
		}
		pending = next
	}
}

// resolveColumn binds a column reference within one scope. It returns true
// once the reference needs no further lookup: it was bound or found ambiguous.
func (p *pass) resolveColumn(ref *ColumnReference, scope *NameScope) bool {
	if ref.TableAlias != "" {
		t, ok := scope.tables[ref.TableAlias]
		if !ok {
			return false
		}
		idx, ok := t.ColumnIndex(ref.Column)
		if !ok {
			return false
		}
		p.bindColumn(ref, t, idx)
		return true
	}

	type candidate struct {
		alias string
		table *catalog.Table
		index int
	}
	var candidates []candidate
	for _, alias := range scope.aliases {
		t := scope.tables[alias]
		if idx, ok := t.ColumnIndex(ref.Column); ok {
			candidates = append(candidates, candidate{alias: alias, table: t, index: idx})
		}
	}
	switch len(candidates) {
	case 0:
		return false
	case 1:
		p.bindColumn(ref, candidates[0].table, candidates[0].index)
		return true
	}
	var msg strings.Builder
	msg.WriteString("column reference is ambiguous, candidates: ")
	for i, c := range candidates {
		if i > 0 {
			msg.WriteString(", ")
		}
		msg.WriteString(names.Quote(c.alias))
		msg.WriteByte('.')
		msg.WriteString(names.Quote(ref.Column))
	}
	p.out.Errors = append(p.out.Errors, &Error{
		Type:    ErrColumnRefAmbiguous,
		NodeID:  ref.NodeID,
		Loc:     ref.Loc,
		Message: msg.String(),
	})
	return true
}

func (p *pass) bindColumn(ref *ColumnReference, t *catalog.Table, idx int) {
	ref.Resolved = true
	ref.TableID = t.ObjectID
	ref.ColumnIndex = uint32(idx)
	ref.DatabaseID, ref.SchemaID = p.catalogIDs(t)
}
