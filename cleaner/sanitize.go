package cleaner

import "github.com/microcosm-cc/bluemonday"

// newPolicy keeps structural text markup and drops everything executable,
// styling and the data-ds-* annotations added before snapshotting.
func newPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowElements("section", "article", "header", "footer")
	return p
}
