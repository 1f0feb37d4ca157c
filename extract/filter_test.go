package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilter_Controls(t *testing.T) {
	rec := extractHTML(t, `
		<div class="date-control" aria-label="Date range"><span>Last 28 days</span></div>
		<select name="country" data-ds-value="Germany"><option>France</option><option>Germany</option></select>
		<div class="filter-chip"><div>Device</div><div>Mobile</div><div>Tablet</div></div>`)

	require.Len(t, rec.Filters, 3)
	assert.Equal(t, "Date range", rec.Filters[0].Name)
	assert.Equal(t, "Last 28 days", rec.Filters[0].Value)
	assert.Equal(t, "country", rec.Filters[1].Name)
	assert.Equal(t, "Germany", rec.Filters[1].Value)
	assert.Equal(t, "Device", rec.Filters[2].Name)
	assert.Equal(t, "Mobile, Tablet", rec.Filters[2].Value)
}

func TestFilter_SelectWithoutLiveValue(t *testing.T) {
	rec := extractHTML(t, `<select aria-label="Region"><option>All</option><option selected>EMEA</option></select>`)

	require.Len(t, rec.Filters, 1)
	assert.Equal(t, "Region", rec.Filters[0].Name)
	assert.Equal(t, "EMEA", rec.Filters[0].Value)
}

func TestFilter_ContainerWithSelect(t *testing.T) {
	rec := extractHTML(t, `<div class="filter"><span>Channel</span>
		<select data-ds-value="Organic"><option>Paid</option><option>Organic</option></select></div>`)

	require.Len(t, rec.Filters, 1)
	assert.Equal(t, "Channel", rec.Filters[0].Name)
	assert.Equal(t, "Organic", rec.Filters[0].Value)
}

func TestFilter_ToolbarAroundWidgetsIsSkipped(t *testing.T) {
	rec := extractHTML(t, `<div class="controls-panel">
		<table><tr><td>1</td></tr></table>
	</div>`)

	assert.Len(t, rec.Tables, 1)
	assert.Empty(t, rec.Filters)
}
