package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func smallCatalog() *Catalog {
	return &Catalog{
		Facilitators: []string{"Glen", "Lock"},
		TimeSlots:    []string{"10 AM", "11 AM"},
		Rooms: []Room{
			{Name: "Beach 201", Capacity: 18},
			{Name: "Loft 206", Capacity: 55},
		},
		Activities: []Activity{
			{Name: "A1", ExpectedEnrollment: 10, PreferredFacilitators: []string{"Glen"}},
			{Name: "A2", ExpectedEnrollment: 10},
			{Name: "B1", ExpectedEnrollment: 10},
			{Name: "B2", ExpectedEnrollment: 10},
		},
		SameCoursePairs: []SectionPair{
			{First: "A1", Second: "A2"},
			{First: "B1", Second: "B2"},
		},
		CrossCoursePairs: []SectionPair{
			{First: "A1", Second: "B1"},
		},
		SpecialBuildings:       []string{"Beach"},
		ReducedLoadFacilitator: "Lock",
	}
}

func TestCatalog_Validate(t *testing.T) {
	require.NoError(t, smallCatalog().Validate())

	tests := []struct {
		name   string
		modify func(c *Catalog)
	}{
		{"没有负责人", func(c *Catalog) { c.Facilitators = nil }},
		{"没有时间段", func(c *Catalog) { c.TimeSlots = nil }},
		{"没有教室", func(c *Catalog) { c.Rooms = nil }},
		{"没有活动", func(c *Catalog) { c.Activities = nil }},
		{"负责人重复", func(c *Catalog) { c.Facilitators = append(c.Facilitators, "Glen") }},
		{"时间段为空", func(c *Catalog) { c.TimeSlots[1] = "" }},
		{"教室容量为 0", func(c *Catalog) { c.Rooms[0].Capacity = 0 }},
		{"教室重复", func(c *Catalog) { c.Rooms[1].Name = "Beach 201" }},
		{"预计人数为负", func(c *Catalog) { c.Activities[0].ExpectedEnrollment = -1 }},
		{"活动重复", func(c *Catalog) { c.Activities[1].Name = "A1" }},
		{"同课程规则数量不对", func(c *Catalog) { c.SameCoursePairs = c.SameCoursePairs[:1] }},
		{"分班规则引用未知活动", func(c *Catalog) { c.CrossCoursePairs[0].Second = "C1" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := smallCatalog()
			tt.modify(c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestCatalog_Lookups(t *testing.T) {
	c := smallCatalog()

	assert.Equal(t, []string{"A1", "A2", "B1", "B2"}, c.ActivityNames())
	assert.Equal(t, 2, c.ActivityIndex("B1"))
	assert.Equal(t, -1, c.ActivityIndex("C1"))
	assert.Equal(t, 1, c.TimeSlotIndex("11 AM"))
	assert.Equal(t, -1, c.TimeSlotIndex("5 PM"))

	capacity, ok := c.RoomCapacity("Loft 206")
	assert.True(t, ok)
	assert.Equal(t, 55, capacity)
	_, ok = c.RoomCapacity("Frank 119")
	assert.False(t, ok)

	assert.True(t, c.HasFacilitator("Lock"))
	assert.False(t, c.HasFacilitator("Tyler"))
}

func TestCatalog_IsSpecialBuilding(t *testing.T) {
	c := smallCatalog()

	assert.True(t, c.IsSpecialBuilding("Beach 201"))
	assert.False(t, c.IsSpecialBuilding("Loft 206"))
	assert.False(t, c.IsSpecialBuilding(""))
}
