package numtext

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"1.2万", 12000},
		{"10.5K", 10500},
		{"", 0},
		{"abc", 0},
		{"粉丝 3.4万", 34000},
		{"1.5 万", 15000},
		{"2亿", 200000000},
		{"1,234", 1234},
		{"999", 999},
		{"3.7M", 3700000},
		{"1B", 1000000000},
		{"2.5w", 25000},
		{"10k", 10000},
		{"12 comments", 12},
		{"12 Likes", 12},
		{"8.9K likes", 8900},
		{".5K", 500},
		{"0.99", 0},
		{"-5", 5},
		{"10.5 K", 10500},
		{"1.2 M", 1200000},
		{"3 B", 3000000000},
		{"12 K views", 12000},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Parse(c.in), "Parse(%q)", c.in)
	}
}

func TestParse_NeverNegativeOrOverflow(t *testing.T) {
	for _, in := range []string{"-1万", "99999999999999999999B", "1e9", "万", "K", "..", "\x00\xff"} {
		got := Parse(in)
		assert.GreaterOrEqual(t, got, int64(0), in)
	}
	assert.Equal(t, int64(math.MaxInt64), Parse("99999999999999999999B"))
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "0", Format(0))
	assert.Equal(t, "999", Format(999))
	assert.Equal(t, "1.5K", Format(1500))
	assert.Equal(t, "1.2万", Format(12000))
	assert.Equal(t, "3.0亿", Format(300000000))
}
