package cart

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

var sampleStylists = StylistsMap{
	1: {10, 11},
	2: {11, 12},
	3: {13},
}

func TestCommonStylists(t *testing.T) {
	assert.Equal(t, []int64{11}, sampleStylists.Common([]int64{1, 2}))
	assert.Equal(t, []int64{10, 11}, sampleStylists.Common([]int64{1}))
	assert.Empty(t, sampleStylists.Common([]int64{1, 2, 3}))
	assert.Empty(t, sampleStylists.Common(nil))
	assert.Empty(t, sampleStylists.Common([]int64{99}))
}

func TestCommonKeepsFirstServiceOrder(t *testing.T) {
	m := StylistsMap{1: {30, 20, 10}, 2: {10, 20, 30}}
	assert.Equal(t, []int64{30, 20, 10}, m.Common([]int64{1, 2}))
	assert.Equal(t, []int64{10, 20, 30}, m.Common([]int64{2, 1}))
}

func TestHasCommon(t *testing.T) {
	assert.True(t, sampleStylists.HasCommon(nil))
	assert.True(t, sampleStylists.HasCommon([]int64{3}))
	assert.False(t, sampleStylists.HasCommon([]int64{99}))
	assert.True(t, sampleStylists.HasCommon([]int64{1, 2}))
	assert.False(t, sampleStylists.HasCommon([]int64{1, 3}))
}

func TestParseStylistsMapNormalizes(t *testing.T) {
	m := ParseStylistsMap([]byte(`{"1":[10,"11",10],"x":[1],"2":"nope","3":[],"4":[null,"a"],"5.5":[1],"6":[7]}`))
	assert.Equal(t, StylistsMap{1: {10, 11}, 6: {7}}, m)
	assert.Equal(t, []int64{1, 6}, m.ServiceIDs())
}

func TestParseStylistsMapInvalid(t *testing.T) {
	assert.Empty(t, ParseStylistsMap([]byte(`[1,2]`)))
	assert.Empty(t, ParseStylistsMap([]byte(`{`)))
}

func TestReadStylistsMapFromPage(t *testing.T) {
	page := `<html><body>
<div class="services"></div>
<script id="service-stylists-map" type="application/json">{"1": [10, 11], "2": [11, 12]}</script>
</body></html>`

	m := ReadStylistsMap(strings.NewReader(page), "")
	assert.Equal(t, StylistsMap{1: {10, 11}, 2: {11, 12}}, m)
}

func TestReadStylistsMapMissingElement(t *testing.T) {
	assert.Empty(t, ReadStylistsMap(strings.NewReader(`<html><body></body></html>`), "service-stylists-map"))
	assert.Empty(t, ReadStylistsMap(strings.NewReader(`<script id="m">not json</script>`), "m"))
}
