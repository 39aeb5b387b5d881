package auth_test

import (
	"testing"

	"colabtrack/internal/auth"

	"github.com/stretchr/testify/assert"
)

func TestStripBearer(t *testing.T) {
	cases := map[string]string{
		"Bearer abc.def.ghi":     "abc.def.ghi",
		"bearer abc.def.ghi":     "abc.def.ghi",
		"  BEARER   abc.def.ghi ": "abc.def.ghi",
		"abc.def.ghi":            "abc.def.ghi",
		"":                       "",
	}
	for in, want := range cases {
		assert.Equal(t, want, auth.StripBearer(in), in)
	}
}
