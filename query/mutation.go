package query

import "sort"

// Insert adds one row to an entity.
type Insert struct {
	Entity Entity
	Values map[string]interface{}
}

func (*Insert) statement() {}

func (ins *Insert) Canonical(w Writer) {
	w.WriteString("insert ")
	ins.Entity.Canonical(w)
	w.WriteString(" set ")
	writeAssignments(w, ins.Values)
}

// Update modifies the rows matched by Where.
type Update struct {
	Entity Entity
	Set    map[string]interface{}
	Where  Expression
}

func (*Update) statement() {}

func (u *Update) Canonical(w Writer) {
	w.WriteString("update ")
	u.Entity.Canonical(w)
	w.WriteString(" set ")
	writeAssignments(w, u.Set)
	if u.Where != nil {
		w.WriteString(" where ")
		u.Where.Canonical(w)
	}
}

// Delete removes the rows matched by Where.
type Delete struct {
	Entity Entity
	Where  Expression
}

func (*Delete) statement() {}

func (d *Delete) Canonical(w Writer) {
	w.WriteString("delete ")
	d.Entity.Canonical(w)
	if d.Where != nil {
		w.WriteString(" where ")
		d.Where.Canonical(w)
	}
}

func writeAssignments(w Writer, m map[string]interface{}) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for i, k := range keys {
		if i > 0 {
			w.WriteByte(',')
		}
		w.WriteString(k)
		w.WriteByte('=')
		writeValue(w, m[k])
	}
}
