package catalog

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/salon-storefront/internal/cart"
)

const staticDoc = `{"salons":{
	"7":{"services":[3,1,2],"stylists":{"1":[10,11],"2":[11,12],"3":[13]}},
	"8":{"stylists":{"5":[1],"4":[2],"x":[3]}}
}}`

func TestReadStatic(t *testing.T) {
	s, err := ReadStatic(strings.NewReader(staticDoc))
	require.NoError(t, err)

	menu, err := s.Menu(context.Background(), "7")
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 1, 2}, menu.ServiceIDs)
	assert.Equal(t, []int64{11}, menu.Stylists.Common([]int64{1, 2}))

	menu, err = s.Menu(context.Background(), "8")
	require.NoError(t, err)
	assert.Equal(t, []int64{4, 5}, menu.ServiceIDs)

	_, err = s.Menu(context.Background(), "9")
	assert.ErrorIs(t, err, ErrUnknownSalon)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	require.NoError(t, os.WriteFile(path, []byte(staticDoc), 0o600))

	s, err := LoadFile(path)
	require.NoError(t, err)
	_, err = s.Menu(context.Background(), "7")
	assert.NoError(t, err)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestNewStatic(t *testing.T) {
	s := NewStatic(map[string]cart.Menu{"1": {ServiceIDs: []int64{9}}})
	menu, err := s.Menu(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, []int64{9}, menu.ServiceIDs)
}
