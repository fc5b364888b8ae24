package logx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnonymizeIP(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"192.168.10.42:5555", "192.168.10.0"},
		{"10.0.0.7", "10.0.0.0"},
		{"[::ffff:203.0.113.9]:8080", "203.0.113.0"},
		{"127.0.0.1:80", "127.0.0.1"},
		{"[2001:db8:1:2:3:4:5:6]:443", "2001:db8:1:2::"},
		{"not-an-ip", "unknown_ip"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, anonymizeIP(tc.in), tc.in)
	}
}
