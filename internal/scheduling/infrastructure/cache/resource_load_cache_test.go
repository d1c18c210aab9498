package cache

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestResourceLoadCache_KeyIsNamespacedByProjectAndScenario(t *testing.T) {
	c := &ResourceLoadCache{}
	projectID := uuid.New()

	keyA := c.key(projectID, 0, "dev")
	keyB := c.key(projectID, 1, "dev")
	assert.NotEqual(t, keyA, keyB, "different scenarios must not share a cache key")

	otherProject := uuid.New()
	keyC := c.key(otherProject, 0, "dev")
	assert.NotEqual(t, keyA, keyC, "different projects must not share a cache key")
}

func TestResourceLoadCache_KeyIsStableForSameInputs(t *testing.T) {
	c := &ResourceLoadCache{}
	projectID := uuid.New()
	assert.Equal(t, c.key(projectID, 2, "dev"), c.key(projectID, 2, "dev"))
}
