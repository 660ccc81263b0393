package repository

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDatasetName(t *testing.T) {
	assert.Equal(t, "2026East_allmatch_result-J1", DatasetName("docs/csv/2026East_allmatch_result-J1.csv"))
	assert.Equal(t, "plain", DatasetName("plain"))
}

func TestNullable(t *testing.T) {
	assert.Nil(t, nullable(sql.NullInt32{}))
	assert.Equal(t, int32(3), nullable(sql.NullInt32{Int32: 3, Valid: true}))
}
