package sanitize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripHTML(t *testing.T) {
	cases := map[string]string{
		"hola":                                   "hola",
		"<b>precio</b> del kit":                  "precio del kit",
		"&lt;script&gt;alert(1)&lt;/script&gt;x": "alert(1)x",
		"  espacios  ":                           "espacios",
		"3 &amp; 4":                              "3 & 4",
	}
	for in, want := range cases {
		assert.Equal(t, want, StripHTML(in), in)
	}
}

func TestText(t *testing.T) {
	assert.Equal(t, "línea 1\nlínea 2\tfin", Text("línea 1\nlínea 2\tfin\x00\x07"))
}

func TestName(t *testing.T) {
	assert.Equal(t, "Ana María", Name("  Ana\n  <i>María</i> "))
	assert.Equal(t, "", Name("<br/>"))
}
