package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

func TestSharedPolicyIsShared(t *testing.T) {
	policy := NewSharedPolicy(nil)
	catalog := testCatalog()

	pe, _ := catalog.Subject("pe")
	math, _ := catalog.Subject("math")
	net, _ := catalog.Subject("net")
	acct, _ := catalog.Subject("acct")

	assert.True(t, policy.IsShared(pe, catalog.Classes, "c1"), "explicit flag wins")
	assert.False(t, policy.IsShared(math, catalog.Classes, "c1"), "common subjects are per class")
	assert.True(t, policy.IsShared(net, catalog.Classes, "c1"), "c2 shares the ict major")
	assert.False(t, policy.IsShared(net, catalog.Classes[:1], "c1"), "no other ict class")
	assert.False(t, policy.IsShared(acct, catalog.Classes, "c3"), "only one biz class")
}

func TestSharedPolicyGeneralMajorsAreConfigurable(t *testing.T) {
	subject := models.Subject{ID: "civics", MajorID: "common"}
	classes := []models.Class{{ID: "a", MajorID: "common"}, {ID: "b", MajorID: "common"}}

	assert.False(t, NewSharedPolicy(nil).IsShared(subject, classes, "a"))
	assert.True(t, NewSharedPolicy([]string{"general"}).IsShared(subject, classes, "a"))
}

func TestSharedPolicySiblingsAreSymmetric(t *testing.T) {
	policy := NewSharedPolicy(nil)
	catalog := testCatalog()
	date := day(2024, 3, 4)
	s1 := classSession(sessionFields{id: "s1", class: "c1", subject: "net", teacher: "t2", room: "LAB", date: date, start: 1, count: 2})
	s2 := classSession(sessionFields{id: "s2", class: "c2", subject: "net", teacher: "t2", room: "LAB", date: date, start: 1, count: 2})
	other := classSession(sessionFields{id: "s3", class: "c1", subject: "net", teacher: "t2", room: "LAB", date: date, start: 3, count: 2})
	all := []models.Session{s1, other, s2}

	fromFirst := policy.Siblings(s1, all, catalog)
	fromSecond := policy.Siblings(s2, all, catalog)

	require.Len(t, fromFirst, 2)
	assert.Equal(t, fromFirst, fromSecond)
	assert.Equal(t, []string{"s1", "s2"}, SessionIDs(fromFirst))
}

func TestSharedPolicySiblingsSingletonForUnsharedSubject(t *testing.T) {
	policy := NewSharedPolicy(nil)
	date := day(2024, 3, 4)
	s1 := classSession(sessionFields{id: "s1", class: "c1", subject: "math", teacher: "t1", room: "R101", date: date, start: 1, count: 2})
	s2 := classSession(sessionFields{id: "s2", class: "c2", subject: "math", teacher: "t1", room: "R101", date: date, start: 1, count: 2})

	group := policy.Siblings(s1, []models.Session{s1, s2}, testCatalog())
	assert.Equal(t, []string{"s1"}, SessionIDs(group))
}

func TestSharedPolicySiblingsIncludesUnsavedCandidate(t *testing.T) {
	policy := NewSharedPolicy(nil)
	date := day(2024, 3, 4)
	saved := classSession(sessionFields{id: "s1", class: "c1", subject: "net", teacher: "t2", room: "LAB", date: date, start: 1, count: 2})
	draft := classSession(sessionFields{class: "c2", subject: "net", teacher: "t2", room: "LAB", date: date, start: 1, count: 2})

	group := policy.Siblings(draft, []models.Session{saved}, testCatalog())
	require.Len(t, group, 2)
	assert.Equal(t, "c2", group[0].ClassID)
	assert.Equal(t, "s1", group[1].ID)
}

func TestSharedPolicySharedClasses(t *testing.T) {
	policy := NewSharedPolicy(nil)
	catalog := testCatalog()
	net, _ := catalog.Subject("net")
	pe, _ := catalog.Subject("pe")

	var ids []string
	for _, class := range policy.SharedClasses(net, catalog.Classes, "c2") {
		ids = append(ids, class.ID)
	}
	assert.Equal(t, []string{"c2", "c1"}, ids)

	assert.Len(t, policy.SharedClasses(pe, catalog.Classes, "c1"), 3)
}
