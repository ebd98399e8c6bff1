package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTableNames(t *testing.T) {
	tests := []struct {
		name     string
		model    interface{ TableName() string }
		expected string
	}{
		{"BenchmarkInfo", &BenchmarkInfo{}, "benchmark_infos"},
		{"Run", &Run{}, "runs"},
		{"Failure", &Failure{}, "failures"},
		{"Vote", &Vote{}, "votes"},
		{"ContactPoint", &ContactPoint{}, "contact_points"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.model.TableName())
		})
	}
}

func TestDatabaseModelsComplete(t *testing.T) {
	assert.Len(t, DatabaseModels, 5)
}
