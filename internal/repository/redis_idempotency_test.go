package repository

import (
	"testing"
	"time"

	"github.com/GoPolymarket/guardgate/internal/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdemRecordEncoding(t *testing.T) {
	in := middleware.IdempotencyRecord{
		Status:    201,
		Body:      []byte(`{"ok":true}`),
		CreatedAt: time.Unix(1_737_500_000, 0).UTC(),
	}
	out, err := decodeIdemRecord(encodeIdemRecord(in))
	require.NoError(t, err)
	assert.Equal(t, in, *out)

	_, err = decodeIdemRecord("not json")
	assert.Error(t, err)
}
