package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNotFoundErrorCarriesID(t *testing.T) {
	err := TokenNotFoundError(4)
	require.EqualError(t, err, "token id: 4 not found")
	require.ErrorIs(t, err, ErrNotFound)

	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	require.Equal(t, int64(4), nf.ID)

	err = AttributeNotFoundError(9)
	require.EqualError(t, err, "token attribute id: 9 not found")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestInvalidEdgeError(t *testing.T) {
	err := InvalidEdgeError(EdgeCategory, 3, 3)
	require.ErrorIs(t, err, ErrInvalidEdge)
	require.Contains(t, err.Error(), "to itself")
}

func TestEdgeKind(t *testing.T) {
	require.Equal(t, "tag_category", EdgeCategory.Table())
	require.Equal(t, "tag_synonym", EdgeSynonym.Table())
	require.Equal(t, "tag_representative", EdgeRepresentative.Table())
	require.False(t, EdgeKind(0).Valid())
	require.Equal(t, "EdgeKind(7)", EdgeKind(7).String())
}

func TestListOptionsWithDefaults(t *testing.T) {
	require.Equal(t, ListOptions{Limit: DefaultListLimit}, ListOptions{Skip: -1}.WithDefaults())
	require.Equal(t, ListOptions{Skip: 5, Limit: 3, Desc: true}, ListOptions{Skip: 5, Limit: 3, Desc: true}.WithDefaults())
}

func TestUniqueIDs(t *testing.T) {
	require.Nil(t, UniqueIDs(nil))
	require.Equal(t, []int64{3, 1, 2}, UniqueIDs([]int64{3, 1, 3, 2, 1}))
}

func TestValidateName(t *testing.T) {
	require.ErrorIs(t, ValidateName("", 10), ErrInvalidName)
	require.ErrorIs(t, ValidateName("abcdef", 5), ErrInvalidName)
	require.NoError(t, ValidateName("ünïcode", 7))
	require.NoError(t, ValidateName("anything", 0))
}

func TestNormalizeAttributeName(t *testing.T) {
	require.Equal(t, "artist", NormalizeAttributeName("  Artist "))
}

type fakeProvider struct{ engine string }

func (f fakeProvider) RunMigrations(context.Context, MigrationConfig) error { return nil }
func (f fakeProvider) GetCurrentVersion(context.Context, MigrationConfig) (int64, error) {
	return 0, errors.New("unused")
}
func (f fakeProvider) GetSupportedEngine() string { return f.engine }

func TestMigratorRegistryBasic(t *testing.T) {
	r := NewMigratorRegistry()
	r.RegisterProvider(fakeProvider{engine: "sqlite"})
	r.RegisterProvider(fakeProvider{engine: "mysql"})

	p, ok := r.GetProvider("sqlite")
	require.True(t, ok)
	require.Equal(t, "sqlite", p.GetSupportedEngine())

	_, ok = r.GetProvider("oracle")
	require.False(t, ok)

	require.Equal(t, []string{"mysql", "sqlite"}, r.GetSupportedEngines())
}
