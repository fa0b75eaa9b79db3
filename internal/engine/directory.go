package engine

import "sort"

// Directory caches the user's groups as last resolved. A full record always
// replaces what is cached; a partial view built from a pointer is only used
// while no full record is known.
type Directory struct {
	groups map[string]GroupView
}

func NewDirectory() *Directory {
	return &Directory{groups: make(map[string]GroupView)}
}

// Upsert stores v and reports whether the directory changed.
func (d *Directory) Upsert(v GroupView) bool {
	cur, ok := d.groups[v.ID]
	if ok && v.Partial && !cur.Partial {
		if cur.IsOwner == v.IsOwner {
			return false
		}
		cur.IsOwner = cur.IsOwner || v.IsOwner
		d.groups[v.ID] = cur
		return true
	}
	if ok && !v.Partial {
		v.IsOwner = v.IsOwner || cur.IsOwner
	}
	d.groups[v.ID] = v
	return true
}

func (d *Directory) Get(id string) (GroupView, bool) {
	v, ok := d.groups[id]
	return v, ok
}

// List returns every group, oldest first.
func (d *Directory) List() []GroupView {
	out := make([]GroupView, 0, len(d.groups))
	for _, v := range d.groups {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt < out[j].CreatedAt
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (d *Directory) Reset() {
	clear(d.groups)
}

func (d *Directory) Len() int {
	return len(d.groups)
}
