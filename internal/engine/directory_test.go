package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDirectory_FullReplacesPartial(t *testing.T) {
	d := NewDirectory()

	assert.True(t, d.Upsert(GroupView{Group: Group{ID: "g1", Name: "pointer name"}, Partial: true}))
	v, _ := d.Get("g1")
	assert.True(t, v.Partial)

	assert.True(t, d.Upsert(GroupView{Group: Group{ID: "g1", Name: "Team", Description: "full"}}))
	v, _ = d.Get("g1")
	assert.False(t, v.Partial)
	assert.Equal(t, "Team", v.Name)
	assert.Equal(t, "full", v.Description)
}

func TestDirectory_PartialNeverOverwritesFull(t *testing.T) {
	d := NewDirectory()
	d.Upsert(GroupView{Group: Group{ID: "g1", Name: "Team"}})

	assert.False(t, d.Upsert(GroupView{Group: Group{ID: "g1", Name: "stale"}, Partial: true}))
	v, _ := d.Get("g1")
	assert.Equal(t, "Team", v.Name)
	assert.False(t, v.Partial)
}

func TestDirectory_OwnerFlagIsSticky(t *testing.T) {
	d := NewDirectory()
	d.Upsert(GroupView{Group: Group{ID: "g1"}, IsOwner: true, Partial: true})
	d.Upsert(GroupView{Group: Group{ID: "g1", Name: "Team"}})

	v, _ := d.Get("g1")
	assert.True(t, v.IsOwner)
}

func TestDirectory_ListOrderAndReset(t *testing.T) {
	d := NewDirectory()
	d.Upsert(GroupView{Group: Group{ID: "b", CreatedAt: 2}})
	d.Upsert(GroupView{Group: Group{ID: "a", CreatedAt: 2}})
	d.Upsert(GroupView{Group: Group{ID: "c", CreatedAt: 1}})

	var ids []string
	for _, v := range d.List() {
		ids = append(ids, v.ID)
	}
	assert.Equal(t, []string{"c", "a", "b"}, ids)

	d.Reset()
	assert.Equal(t, 0, d.Len())
	assert.Empty(t, d.List())
}
