package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorRoundTrip(t *testing.T) {
	token, err := EncodeCursor(Cursor{ID: "42", CreatedAt: "2024-01-02T00:00:00Z"})
	require.NoError(t, err)

	cursor, err := DecodeCursor(token)
	require.NoError(t, err)
	assert.Equal(t, "42", cursor.ID)
}

func TestBuildCursorPageInfoTrimsLookAhead(t *testing.T) {
	ids := []int{1, 2, 3}
	rows := []*int{&ids[0], &ids[1], &ids[2]}

	page, info := BuildCursorPageInfo(rows, 2, func(v *int) string { return string(rune('0' + *v)) })
	assert.Len(t, page, 2)
	assert.True(t, info.HasMore)
	assert.Equal(t, "2", info.NextPageToken)

	page, info = BuildCursorPageInfo(rows, 5, func(v *int) string { return "" })
	assert.Len(t, page, 3)
	assert.False(t, info.HasMore)
}

func TestLimitClamps(t *testing.T) {
	assert.Equal(t, 10, Pagination{}.Limit())
	assert.Equal(t, 250, Pagination{PageSize: 1000}.Limit())
	assert.Equal(t, 25, Pagination{PageSize: 25}.Limit())
}
