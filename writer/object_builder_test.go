package writer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wudi/linpdf/internal/testutil"
	"github.com/wudi/linpdf/ir/semantic"
)

// Two pages referencing the same *semantic.XObject pointer must collapse
// onto a single indirect object, so the collector classifies it shared
// rather than duplicating it per page (§4.3).
func TestObjectBuilderSharesXObjectByPointerIdentity(t *testing.T) {
	img, err := testutil.NewImageXObject(4, 4)
	require.NoError(t, err)

	page := func() *semantic.Page {
		return &semantic.Page{
			MediaBox:  semantic.Rectangle{URX: 200, URY: 200},
			Resources: &semantic.Resources{XObjects: map[string]*semantic.XObject{"Im1": img}},
			Contents:  []semantic.ContentStream{{RawBytes: []byte("q /Im1 Do Q\n")}},
		}
	}
	doc := &semantic.Document{Pages: []*semantic.Page{page(), page()}}

	b, err := newObjectBuilder(doc, Config{}).build()
	require.NoError(t, err)

	referencingPages := 0
	for _, pref := range b.pageRefs {
		if strings.Contains(string(serializePrimitive(b.objects[pref])), "/XObject") {
			referencingPages++
		}
	}
	require.Equal(t, 2, referencingPages, "both pages should reference /XObject resources")

	imageStreamCount := 0
	for _, obj := range b.objects {
		if strings.Contains(string(serializePrimitive(obj)), "/Subtype /Image") {
			imageStreamCount++
		}
	}
	require.Equal(t, 1, imageStreamCount, "the shared image must be emitted as exactly one indirect object")
}
