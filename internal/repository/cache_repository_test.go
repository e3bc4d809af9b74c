package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	appErrors "github.com/noah-isme/timetable-engine/pkg/errors"
)

func TestCacheRepositoryWithoutClient(t *testing.T) {
	repo := NewCacheRepository(nil, "timetable:")
	ctx := context.Background()

	var dest map[string]string
	assert.ErrorIs(t, repo.Get(ctx, "conflicts:1", &dest), appErrors.ErrCacheMiss)
	assert.NoError(t, repo.Set(ctx, "conflicts:1", map[string]string{"a": "b"}, time.Minute))
	assert.NoError(t, repo.DeleteByPattern(ctx, "conflicts:*"))
	assert.Equal(t, "timetable:conflicts:1", repo.key("conflicts:1"))
}
