package clients

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"acme logistics", "Acme Logistics"},
		{"ACME LOGISTICS", "Acme Logistics"},
		{"  acme   logistics  ", "Acme Logistics"},
		{"distribuidora del sur", "Distribuidora Del Sur"},
		{"maría gonzález", "María González"},
		{"ñandú transportes", "Ñandú Transportes"},
		{"", ""},
		{"   ", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, NormalizeName(tc.in), "in=%q", tc.in)
	}
}
