package server

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/adrianliechti/bookman/pkg/catalog"
	"github.com/adrianliechti/bookman/pkg/erpnext"
)

func TestToSchema(t *testing.T) {
	for _, tool := range catalog.Tools {
		schema := toSchema(tool.Parameters)

		require.NotNil(t, schema, tool.Name)
		require.Equal(t, "object", schema.Type, tool.Name)
	}

	schema := toSchema(catalog.Tools[0].Parameters)
	require.Contains(t, schema.Properties, "doctype")
	require.Equal(t, []string{"doctype"}, schema.Required)
}

func TestIsFailure(t *testing.T) {
	require.False(t, isFailure(erpnext.Envelope{Success: true}))
	require.True(t, isFailure(erpnext.Envelope{Success: false}))
	require.False(t, isFailure(map[string]any{"success": false}))
}

func TestNewRegistersCatalog(t *testing.T) {
	s := New(erpnext.New("http://localhost:8000"))
	require.NotNil(t, s.handler)
}
