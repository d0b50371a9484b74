package imap

import (
	"testing"

	"github.com/HALDRO/IMAP-Viewer-sub001/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderPageRange(t *testing.T) {
	tests := []struct {
		name                 string
		total, offset, limit uint32
		start, end           uint32
		ok                   bool
	}{
		{"first page of 120", 120, 0, 50, 71, 120, true},
		{"second page of 120", 120, 50, 50, 21, 70, true},
		{"short last page", 120, 100, 50, 1, 20, true},
		{"page smaller than limit", 30, 0, 50, 1, 30, true},
		{"single message", 1, 0, 50, 1, 1, true},
		{"offset at end", 120, 120, 50, 0, 0, false},
		{"offset past end", 120, 200, 50, 0, 0, false},
		{"empty mailbox", 0, 0, 50, 0, 0, false},
		{"zero limit", 120, 0, 0, 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end, ok := headerPageRange(tt.total, tt.offset, tt.limit)
			require.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.start, start)
			assert.Equal(t, tt.end, end)
		})
	}
}

func TestFirstPageIsNewestFirst(t *testing.T) {
	// 120 messages, sequence number == UID. Page 0 with limit 50 covers
	// sequence numbers 71..120 and comes back newest first.
	const total, limit = 120, 50

	start, end, ok := headerPageRange(total, 0, limit)
	require.True(t, ok)

	var headers []models.EmailHeader
	for seq := start; seq <= end; seq++ {
		headers = append(headers, models.EmailHeader{UID: seq})
	}
	reverseHeaders(headers)

	page := models.NewPaginatedHeaders(headers, 0, limit, total)
	require.Len(t, page.Headers, 50)
	assert.Equal(t, uint32(120), page.Headers[0].UID)
	assert.Equal(t, uint32(71), page.Headers[49].UID)
	for i := 1; i < len(page.Headers); i++ {
		assert.Less(t, page.Headers[i].UID, page.Headers[i-1].UID)
	}
	assert.True(t, page.HasMore)
}

func TestReverseHeaders(t *testing.T) {
	headers := []models.EmailHeader{{UID: 1}, {UID: 2}, {UID: 3}}
	reverseHeaders(headers)
	assert.Equal(t, uint32(3), headers[0].UID)
	assert.Equal(t, uint32(1), headers[2].UID)

	reverseHeaders(nil) // must not panic
}
